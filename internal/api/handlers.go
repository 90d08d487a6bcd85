package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"propchat/internal/constants"
	"propchat/internal/db"
	"propchat/internal/metrics"
	"propchat/internal/models"
	"propchat/internal/notify"
)

// Handlers serves the chat API. Create it with NewHandlers.
type Handlers struct {
	store         db.Store
	notifier      notify.Notifier
	metrics       *metrics.Metrics
	log           zerolog.Logger
	uploadDir     string
	publicBaseURL string
	maxFileSize   int64
	now           func() time.Time

	notifications sync.WaitGroup
}

// NewHandlers wires the handlers to their dependencies.
func NewHandlers(deps ApiDependencies) *Handlers {
	n := deps.Notifier
	if n == nil {
		n = notify.Noop{}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Handlers{
		store:         deps.Store,
		notifier:      n,
		metrics:       m,
		log:           deps.Log,
		uploadDir:     deps.UploadDir,
		publicBaseURL: deps.PublicBaseURL,
		maxFileSize:   constants.MaxChatFileSize,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until in-flight notifications finish.
func (h *Handlers) Wait() {
	h.notifications.Wait()
}

// jsonResponse - вспомогательная структура для стандартного ответа API
type jsonResponse struct {
	Status  string      `json:"status"` // "success" или "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// messageRecord is one element of the {messages:[...]} list the sync loop reads.
type messageRecord struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	SenderID  int64             `json:"sender_id"`
	Timestamp time.Time         `json:"timestamp"`
	IsSender  bool              `json:"is_sender"`
	FileURL   models.NullString `json:"file_url"`
	FileName  models.NullString `json:"file_name"`
	FileType  models.NullString `json:"file_type"`
}

type messagesResponse struct {
	Messages []messageRecord `json:"messages"`
}

// sentMessageResponse is the reply to /chat/send-message.
type sentMessageResponse struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	FileURL   models.NullString `json:"file_url"`
	FileName  models.NullString `json:"file_name"`
	FileType  models.NullString `json:"file_type"`
	CreatedAt time.Time         `json:"created_at"`
	SenderID  int64             `json:"sender_id"`
}

// sentFileResponse is the reply to /chat/send-file.
type sentFileResponse struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	FileURL   string    `json:"file_url"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	IsSender  bool      `json:"is_sender"`
	Timestamp time.Time `json:"timestamp"`
}

type chatResponse struct {
	models.Chat
	Counterparty int64 `json:"counterparty_id"`
}

// downloadPath is the relative URL of a stored attachment.
func downloadPath(stored string) string {
	return constants.ROUTE_DOWNLOAD + stored
}

func toMessageRecord(m models.ChatMessage, viewerID int64) messageRecord {
	rec := messageRecord{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.SenderID,
		Timestamp: m.CreatedAt,
		IsSender:  m.SenderID == viewerID,
		FileName:  m.FileName,
		FileType:  m.FileType,
	}
	if m.HasAttachment() {
		rec.FileURL = models.NewNullString(downloadPath(m.FileURL.String))
	}
	return rec
}

func toMessageRecords(msgs []models.ChatMessage, viewerID int64) []messageRecord {
	out := make([]messageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageRecord(m, viewerID))
	}
	return out
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, jsonResponse{Status: "success", Message: message, Data: data})
}

// int64Param reads a positive integer URL parameter.
func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// participantChat loads the chat named by the chatID URL parameter and checks
// that user takes part in it. It writes the error response itself.
func (h *Handlers) participantChat(w http.ResponseWriter, r *http.Request, chatID int64, user models.User) (models.Chat, bool) {
	chat, err := h.store.GetChat(r.Context(), chatID)
	if errors.Is(err, db.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "Chat not found")
		return models.Chat{}, false
	}
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("load chat")
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return models.Chat{}, false
	}
	if !chat.HasParticipant(user.ID) {
		writeJSONError(w, http.StatusForbidden, "Unauthorized")
		return models.Chat{}, false
	}
	return chat, true
}

// dispatchNotification informs the counterparty without holding up the response.
func (h *Handlers) dispatchNotification(from models.User, chat models.Chat, msg models.ChatMessage) {
	h.notifications.Add(1)
	go func() {
		defer h.notifications.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		recipient, err := h.store.GetUserByID(ctx, chat.Counterparty(from.ID))
		if err != nil {
			h.log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("notification recipient lookup failed")
			h.metrics.NotificationsTotal.WithLabelValues("error").Inc()
			return
		}
		err = h.notifier.NotifyNewMessage(ctx, recipient, from, chat, msg)
		switch {
		case err == nil:
			h.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		case errors.Is(err, notify.ErrNoTelegramChat):
			h.metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
		default:
			h.log.Warn().Err(err).Int64("chat_id", chat.ID).Msg("notification failed")
			h.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		}
	}()
}

// GetClientConfig returns the fixed limits the browser and terminal clients apply locally.
func (h *Handlers) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	exts := make([]string, 0, len(constants.AllowedChatExtensions))
	for ext := range constants.AllowedChatExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	writeJSONSuccess(w, "Config retrieved", map[string]any{
		"poll_interval_seconds":    int(constants.MessagePollInterval / time.Second),
		"updates_interval_seconds": int(constants.UpdatesPollInterval / time.Second),
		"max_file_size":            constants.MaxChatFileSize,
		"widget_max_file_size":     constants.WidgetMaxFileSize,
		"allowed_extensions":       exts,
	})
}
