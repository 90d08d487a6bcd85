package chatsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"propchat/internal/constants"
	"propchat/internal/metrics"
)

// Cursor is the server timestamp of the newest rendered message, passed back
// verbatim. The zero value asks for the whole conversation.
type Cursor string

// String returns the query value for the cursor; "null" when unset.
func (c Cursor) String() string {
	if c == "" {
		return "null"
	}
	return string(c)
}

// IsZero reports whether the cursor is unset.
func (c Cursor) IsZero() bool {
	return c == ""
}

// Follower appends new messages using the updates endpoint and a timestamp
// cursor instead of refetching the whole conversation.
type Follower struct {
	chatID   int64
	baseURL  string
	api      API
	view     View
	log      zerolog.Logger
	metrics  *metrics.Metrics
	interval time.Duration

	mu     sync.Mutex
	cursor Cursor
}

// NewFollower creates a follower for the conversation in cfg.
func NewFollower(cfg Config) *Follower {
	return &Follower{
		chatID:   cfg.ChatID,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		api:      cfg.API,
		view:     cfg.View,
		log:      cfg.Log.With().Int64("chat_id", cfg.ChatID).Str("mode", "follow").Logger(),
		metrics:  cfg.Metrics,
		interval: constants.UpdatesPollInterval,
	}
}

// Cursor returns the current cursor.
func (f *Follower) Cursor() Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// Tick fetches messages newer than the cursor, appends them in server order
// and moves the cursor to the last one.
func (f *Follower) Tick(ctx context.Context) error {
	cursor := f.Cursor()
	recs, err := f.api.FetchUpdates(ctx, f.chatID, cursor)
	if err != nil {
		f.observe("error")
		f.log.Error().Err(err).Str("cursor", cursor.String()).Msg("fetch updates failed")
		return err
	}
	if len(recs) == 0 {
		f.observe("unchanged")
		return nil
	}

	for _, rec := range recs {
		f.view.Append(EntryFromRecord(rec, f.baseURL))
	}
	f.view.ScrollToBottom()

	last := recs[len(recs)-1]
	next := Cursor(last.Timestamp)
	if next.IsZero() {
		next = Cursor(last.CreatedAt)
	}
	f.mu.Lock()
	f.cursor = next
	f.mu.Unlock()

	f.observe("rendered")
	return nil
}

func (f *Follower) observe(result string) {
	if f.metrics != nil {
		f.metrics.PollTicksTotal.WithLabelValues(result).Inc()
	}
}

// Run calls Tick every updates interval until ctx is done.
func (f *Follower) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = f.Tick(ctx)
		}
	}
}
