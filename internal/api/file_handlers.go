package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"propchat/internal/constants"
	"propchat/internal/models"
	"propchat/internal/utils"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

// SendFile stores an uploaded attachment and posts it to the chat as a message.
func (h *Handlers) SendFile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "User context not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, maxSizeMessage(h.maxFileSize))
			return
		}
		writeJSONError(w, http.StatusBadRequest, "Failed to parse multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	chatID, err := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "Invalid chat ID")
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()

	safeName := utils.SecureFilename(handler.Filename)
	if err := utils.ValidateChatFile(safeName, handler.Size, h.maxFileSize); err != nil {
		switch {
		case errors.Is(err, utils.ErrFileTooLarge):
			writeJSONError(w, http.StatusRequestEntityTooLarge, maxSizeMessage(h.maxFileSize))
		case errors.Is(err, utils.ErrEmptyFilename):
			writeJSONError(w, http.StatusBadRequest, "No selected file")
		default:
			writeJSONError(w, http.StatusBadRequest, "File type not allowed")
		}
		return
	}

	chat, ok := h.participantChat(w, r, chatID, user)
	if !ok {
		return
	}

	storedName := utils.UniqueUploadName(h.now(), safeName)
	written, err := h.saveUpload(file, storedName)
	if err != nil {
		h.log.Error().Err(err).Str("file", storedName).Msg("save chat attachment")
		writeJSONError(w, http.StatusInternalServerError, "Could not save file")
		return
	}

	fileType := handler.Header.Get("Content-Type")
	if fileType == "" || fileType == "application/octet-stream" {
		fileType = utils.GetContentType(utils.FileExtension(safeName))
	}

	msg, err := h.store.AddChatMessage(r.Context(), models.ChatMessage{
		ChatID:   chat.ID,
		SenderID: user.ID,
		Content:  constants.FileSentPrefix + safeName,
		FileURL:  models.NewNullString(storedName),
		FileName: models.NewNullString(safeName),
		FileType: models.NewNullString(fileType),
	})
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chat.ID).Msg("store file message")
		os.Remove(filepath.Join(h.uploadDir, storedName))
		writeJSONError(w, http.StatusInternalServerError, "Could not send file")
		return
	}
	h.metrics.MessagesStoredTotal.WithLabelValues("file").Inc()
	h.metrics.UploadedBytesTotal.Add(float64(written))
	h.dispatchNotification(user, chat, msg)

	writeJSON(w, http.StatusOK, sentFileResponse{
		ID:        msg.ID,
		Content:   msg.Content,
		FileURL:   downloadPath(storedName),
		FileName:  safeName,
		FileType:  fileType,
		IsSender:  true,
		Timestamp: msg.CreatedAt,
	})
}

// saveUpload copies src into the upload directory under name.
func (h *Handlers) saveUpload(src io.Reader, name string) (int64, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	destPath := filepath.Join(h.uploadDir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", destPath, err)
	}
	n, err := io.Copy(dest, src)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("write %s: %w", destPath, err)
	}
	return n, nil
}

// DownloadFile serves a stored attachment as a download.
func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !utils.ValidStoredName(filename) {
		writeJSONError(w, http.StatusBadRequest, "Invalid filename")
		return
	}

	filePath := filepath.Join(h.uploadDir, filename)
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, http.StatusNotFound, "File not found")
		} else {
			h.log.Error().Err(err).Str("file", filename).Msg("stat attachment")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	if fileInfo.IsDir() {
		writeJSONError(w, http.StatusBadRequest, "Not a file")
		return
	}

	w.Header().Set("Content-Type", utils.GetContentType(utils.FileExtension(filename)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "private, max-age=86400")
	w.Header().Set("Expires", time.Now().Add(24*time.Hour).Format(http.TimeFormat))
	http.ServeFile(w, r, filePath)
}

func maxSizeMessage(limit int64) string {
	return fmt.Sprintf("File too large. Maximum size is %dMB", limit>>20)
}
