package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"propchat/internal/utils"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// ExportTranscript returns the chat history as an xlsx spreadsheet.
func (h *Handlers) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	chatID, ok := int64Param(r, "chatID")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}
	chat, ok := h.participantChat(w, r, chatID, user)
	if !ok {
		return
	}

	msgs, err := h.store.GetChatMessages(r.Context(), chat.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("load messages for export")
		writeJSONError(w, http.StatusInternalServerError, "Could not load messages")
		return
	}

	names := make(map[int64]string, 2)
	for _, id := range []int64{chat.BuyerID, chat.SellerID} {
		if u, err := h.store.GetUserByID(r.Context(), id); err == nil {
			names[id] = utils.GetUserDisplayName(u)
		}
	}

	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	data, err := utils.BuildTranscriptXLSX(chat, msgs, names, loc)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("build transcript")
		writeJSONError(w, http.StatusInternalServerError, "Could not build transcript")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"chat_%d.xlsx\"", chat.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ChatQRCode returns a PNG QR code linking to the chat page.
func (h *Handlers) ChatQRCode(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	chatID, ok := int64Param(r, "chatID")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}
	chat, ok := h.participantChat(w, r, chatID, user)
	if !ok {
		return
	}

	size := defaultQRSize
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 {
		size = min(s, maxQRSize)
	}

	png, err := utils.GenerateChatQRCode(h.publicBaseURL, chat.ID, size)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("generate chat QR code")
		writeJSONError(w, http.StatusInternalServerError, "Could not generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
