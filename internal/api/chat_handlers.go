package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"propchat/internal/constants"
	"propchat/internal/db"
	"propchat/internal/models"
	"propchat/internal/utils"
)

// sendMessageRequest is the body of POST /chat/send-message.
type sendMessageRequest struct {
	ChatID  int64  `json:"chat_id"`
	Content string `json:"content"`
}

// GetMessages returns the full history of a chat and marks the counterparty's messages read.
func (h *Handlers) GetMessages(w http.ResponseWriter, r *http.Request) {
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
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("load chat messages")
		writeJSONError(w, http.StatusInternalServerError, "Could not load messages")
		return
	}

	if n, err := h.store.MarkMessagesRead(r.Context(), chat.ID, user.ID); err != nil {
		h.log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("mark messages read")
	} else if n > 0 {
		h.log.Debug().Int64("chat_id", chat.ID).Int64("marked", n).Msg("messages marked read")
	}

	writeJSON(w, http.StatusOK, messagesResponse{Messages: toMessageRecords(msgs, user.ID)})
}

// GetUpdates returns messages newer than the last_timestamp query parameter.
// A missing or "null" cursor returns the whole history.
func (h *Handlers) GetUpdates(w http.ResponseWriter, r *http.Request) {
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

	var (
		msgs []models.ChatMessage
		err  error
	)
	cursor := r.URL.Query().Get("last_timestamp")
	if cursor == "" || cursor == "null" {
		msgs, err = h.store.GetChatMessages(r.Context(), chat.ID)
	} else {
		since, perr := utils.ParseTimestamp(cursor)
		if perr != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid last_timestamp")
			return
		}
		msgs, err = h.store.GetChatMessagesSince(r.Context(), chat.ID, since)
	}
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("load chat updates")
		writeJSONError(w, http.StatusInternalServerError, "Could not load messages")
		return
	}

	writeJSON(w, http.StatusOK, messagesResponse{Messages: toMessageRecords(msgs, user.ID)})
}

// SendMessage stores a text message from the caller.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeJSONError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if req.ChatID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}
	chat, ok := h.participantChat(w, r, req.ChatID, user)
	if !ok {
		return
	}

	msg, err := h.store.AddChatMessage(r.Context(), models.ChatMessage{
		ChatID:   chat.ID,
		SenderID: user.ID,
		Content:  req.Content,
	})
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("store chat message")
		writeJSONError(w, http.StatusInternalServerError, "Could not send message")
		return
	}
	h.metrics.MessagesStoredTotal.WithLabelValues("text").Inc()
	h.dispatchNotification(user, chat, msg)

	writeJSON(w, http.StatusOK, sentMessageResponse{
		ID:        msg.ID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
		SenderID:  msg.SenderID,
	})
}

// StartChat returns the chat between the caller and another user about a property,
// creating it on first contact.
func (h *Handlers) StartChat(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}
	propertyID, ok := int64Param(r, "propertyID")
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "Invalid property ID")
		return
	}
	otherID, ok := int64Param(r, "otherUserID")
	if !ok || otherID == user.ID {
		writeJSONError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	other, err := h.store.GetUserByID(r.Context(), otherID)
	if errors.Is(err, db.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", otherID).Msg("load chat counterparty")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	buyerID, sellerID := user.ID, other.ID
	if user.UserType == constants.USER_TYPE_SELLER {
		buyerID, sellerID = other.ID, user.ID
	}

	chat, created, err := h.store.GetOrCreateChat(r.Context(), propertyID, buyerID, sellerID)
	if err != nil {
		h.log.Error().Err(err).Int64("property_id", propertyID).Msg("get or create chat")
		writeJSONError(w, http.StatusInternalServerError, "Could not open chat")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.log.Info().Int64("chat_id", chat.ID).Int64("property_id", propertyID).Msg("chat created")
	}
	writeJSON(w, status, chatResponse{Chat: chat, Counterparty: other.ID})
}

// MyChats lists the caller's chats, most recently active first.
func (h *Handlers) MyChats(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}

	chats, err := h.store.ListChatsForUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", user.ID).Msg("list chats")
		writeJSONError(w, http.StatusInternalServerError, "Could not load chats")
		return
	}

	out := make([]chatResponse, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatResponse{Chat: c, Counterparty: c.Counterparty(user.ID)})
	}
	writeJSONSuccess(w, "Chats retrieved", out)
}
