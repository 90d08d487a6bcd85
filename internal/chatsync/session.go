// Package chatsync keeps a rendered chat conversation in step with the chat server.
package chatsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"propchat/internal/constants"
	"propchat/internal/metrics"
	"propchat/internal/utils"
)

var (
	ErrEmptyMessage  = errors.New("chatsync: empty message")
	ErrSessionClosed = errors.New("chatsync: session closed")
)

// Config describes the conversation a Session follows.
type Config struct {
	ChatID  int64
	BaseURL string // server root used to resolve relative attachment URLs
	API     API
	View    View

	Log     zerolog.Logger
	Metrics *metrics.Metrics // optional
}

// Upload is a file picked for sending.
type Upload struct {
	Name string
	Size int64
	Body io.Reader
}

// UploadFromFile describes an open file as an Upload.
func UploadFromFile(f *os.File) (Upload, error) {
	info, err := f.Stat()
	if err != nil {
		return Upload{}, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	if info.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", f.Name())
	}
	return Upload{Name: info.Name(), Size: info.Size(), Body: f}, nil
}

// Session is the state of one open conversation view: which chat it shows,
// how many messages are rendered and the polling timer.
type Session struct {
	chatID  int64
	baseURL string
	api     API
	view    View
	log     zerolog.Logger
	metrics *metrics.Metrics

	maxFileSize  int64
	pollInterval time.Duration

	// syncMu is held from request to render by every operation that changes
	// the list, so rendered always matches a count the server reported.
	syncMu sync.Mutex

	mu       sync.Mutex
	rendered int

	done      chan struct{}
	closeOnce sync.Once
}

// Open creates the session for a conversation. Call LoadAll to render it and
// Run to keep it current; Close tears it down.
func Open(cfg Config) (*Session, error) {
	if cfg.ChatID <= 0 {
		return nil, fmt.Errorf("chatsync: invalid chat id %d", cfg.ChatID)
	}
	if cfg.API == nil || cfg.View == nil {
		return nil, fmt.Errorf("chatsync: API and View are required")
	}
	return &Session{
		chatID:       cfg.ChatID,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		api:          cfg.API,
		view:         cfg.View,
		log:          cfg.Log.With().Int64("chat_id", cfg.ChatID).Logger(),
		metrics:      cfg.Metrics,
		maxFileSize:  constants.MaxChatFileSize,
		pollInterval: constants.MessagePollInterval,
		done:         make(chan struct{}),
	}, nil
}

// ChatID returns the conversation the session shows.
func (s *Session) ChatID() int64 {
	return s.chatID
}

// Rendered returns how many messages the session has rendered.
// PollTick re-renders only when the server reports more than this.
func (s *Session) Rendered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

// Close stops Run. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// replace renders entries in place of everything shown so far.
func (s *Session) replace(entries []Entry) {
	s.mu.Lock()
	s.rendered = len(entries)
	s.mu.Unlock()

	s.view.Replace(entries)
	s.view.ScrollToBottom()
	if s.metrics != nil {
		s.metrics.RenderedMessages.Set(float64(len(entries)))
	}
}

func (s *Session) append(e Entry) {
	s.mu.Lock()
	s.rendered++
	n := s.rendered
	s.mu.Unlock()

	s.view.Append(e)
	s.view.ScrollToBottom()
	if s.metrics != nil {
		s.metrics.RenderedMessages.Set(float64(n))
	}
}

// LoadAll fetches the whole conversation and replaces what is rendered.
// An empty list leaves the view as it is. Errors are logged and returned;
// the rendered state is untouched on error.
func (s *Session) LoadAll(ctx context.Context) error {
	if s.closed() {
		return ErrSessionClosed
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	recs, err := s.api.FetchMessages(ctx, s.chatID)
	if err != nil {
		s.log.Error().Err(err).Msg("load messages failed")
		return err
	}
	if len(recs) > 0 {
		s.replace(EntriesFromRecords(recs, s.baseURL))
	}
	s.log.Debug().Int("messages", len(recs)).Msg("conversation loaded")
	return nil
}

// SendText posts a trimmed, non-empty message and appends the server's copy.
// The input is disabled while the request runs.
func (s *Session) SendText(ctx context.Context, content string) error {
	if s.closed() {
		return ErrSessionClosed
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	s.view.SetInputEnabled(false)
	defer s.view.SetInputEnabled(true)

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	rec, err := s.api.SendText(ctx, s.chatID, content)
	if err != nil {
		s.log.Error().Err(err).Msg("send message failed")
		return err
	}
	// The send-message reply carries no is_sender flag.
	rec.IsSender = true

	s.append(EntryFromRecord(rec, s.baseURL))
	s.view.ClearInput()
	return nil
}

// SendAttachment uploads a file and appends the returned message. Files over
// the size ceiling are refused with an alert before any request is made.
func (s *Session) SendAttachment(ctx context.Context, up Upload) error {
	if s.closed() {
		return ErrSessionClosed
	}
	if up.Size > s.maxFileSize {
		s.view.Alert(fmt.Sprintf("File %s is too large. Maximum size is %dMB.", up.Name, s.maxFileSize>>20))
		return fmt.Errorf("%w: %s is %d bytes", utils.ErrFileTooLarge, up.Name, up.Size)
	}

	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	rec, err := s.api.SendFile(ctx, s.chatID, up.Name, up.Body)
	if err != nil {
		s.log.Error().Err(err).Str("file", up.Name).Msg("send file failed")
		return err
	}
	rec.IsSender = true

	s.append(EntryFromRecord(rec, s.baseURL))
	return nil
}

// PollTick refetches the whole conversation and re-renders it when the server
// has more messages than are shown.
func (s *Session) PollTick(ctx context.Context) error {
	if s.closed() {
		return ErrSessionClosed
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	recs, err := s.api.FetchMessages(ctx, s.chatID)
	if err != nil {
		s.observeTick("error")
		s.log.Error().Err(err).Msg("poll failed")
		return err
	}

	if len(recs) <= s.Rendered() {
		s.observeTick("unchanged")
		return nil
	}
	s.replace(EntriesFromRecords(recs, s.baseURL))
	s.observeTick("rendered")
	s.log.Debug().Int("messages", len(recs)).Msg("new messages rendered")
	return nil
}

func (s *Session) observeTick(result string) {
	if s.metrics != nil {
		s.metrics.PollTicksTotal.WithLabelValues(result).Inc()
	}
}

// Run calls PollTick every poll interval until ctx is done or the session is
// closed. Poll errors never stop the loop.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			_ = s.PollTick(ctx)
		}
	}
}
