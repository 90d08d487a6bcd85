// Package metrics provides Prometheus collectors for the chat server and sync client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors. Each instance owns its registry so tests
// can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat store
	MessagesStoredTotal *prometheus.CounterVec
	UploadedBytesTotal  prometheus.Counter
	NotificationsTotal  *prometheus.CounterVec

	// Sync client
	PollTicksTotal   *prometheus.CounterVec
	RenderedMessages prometheus.Gauge
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "propchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	m.MessagesStoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_messages_stored_total",
			Help: "Chat messages persisted, by kind",
		},
		[]string{"kind"},
	)
	m.UploadedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "propchat_uploaded_bytes_total",
			Help: "Bytes of chat attachments written to disk",
		},
	)
	m.NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_notifications_total",
			Help: "New-message notifications, by outcome",
		},
		[]string{"status"},
	)
	m.PollTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propchat_sync_poll_ticks_total",
			Help: "Sync loop poll ticks, by outcome",
		},
		[]string{"result"},
	)
	m.RenderedMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "propchat_sync_rendered_messages",
			Help: "Messages currently rendered by the sync loop",
		},
	)

	m.Registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.MessagesStoredTotal,
		m.UploadedBytesTotal,
		m.NotificationsTotal,
		m.PollTicksTotal,
		m.RenderedMessages,
	)
	return m
}
