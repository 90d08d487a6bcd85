package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"propchat/internal/config"
	"propchat/internal/db"
	"propchat/internal/metrics"
	"propchat/internal/notify"
)

// ApiDependencies содержит зависимости для обработчиков API.
type ApiDependencies struct {
	Config        *config.Config
	Store         db.Store
	Notifier      notify.Notifier
	Metrics       *metrics.Metrics
	Log           zerolog.Logger
	UploadDir     string
	PublicBaseURL string
	AuthSecret    string
	AuthMaxAge    time.Duration
}

// withConfigDefaults fills unset fields from Config.
func (d ApiDependencies) withConfigDefaults() ApiDependencies {
	if d.Config == nil {
		return d
	}
	if d.UploadDir == "" {
		d.UploadDir = d.Config.UploadDir
	}
	if d.PublicBaseURL == "" {
		d.PublicBaseURL = d.Config.PublicBaseURL
	}
	if d.AuthSecret == "" {
		d.AuthSecret = d.Config.AuthSecret
	}
	if d.AuthMaxAge == 0 {
		d.AuthMaxAge = d.Config.AuthMaxAge
	}
	return d
}

// SetupRoutes настраивает все маршруты для API и возвращает обработчики,
// чтобы main мог дождаться отправки уведомлений при остановке.
func SetupRoutes(r chi.Router, deps ApiDependencies) *Handlers {
	deps = deps.withConfigDefaults()
	h := NewHandlers(deps)

	r.Use(MetricsMiddleware(h.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSONSuccess(w, "ok", nil)
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/api/client-config", h.GetClientConfig)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.AuthSecret, deps.AuthMaxAge, deps.Store, deps.Log))

		r.Route("/chat", func(r chi.Router) {
			r.Get("/messages/{chatID}", h.GetMessages)
			r.Post("/send-message", h.SendMessage)
			r.Post("/send-file", h.SendFile)
			r.Get("/download/{filename}", h.DownloadFile)
			r.Get("/updates/{chatID}", h.GetUpdates)
			r.Get("/my-chats", h.MyChats)
			r.Post("/property/{propertyID}/chat/{otherUserID}", h.StartChat)
			r.Get("/{chatID}/export.xlsx", h.ExportTranscript)
			r.Get("/{chatID}/qr.png", h.ChatQRCode)
		})
	})
	return h
}
