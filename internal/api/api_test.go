package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"propchat/internal/constants"
	"propchat/internal/db"
	"propchat/internal/logger"
	"propchat/internal/metrics"
	"propchat/internal/models"
	"propchat/internal/utils"
)

const testSecret = "test-secret"

type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.ChatMessage
}

func (n *recordingNotifier) NotifyNewMessage(_ context.Context, _, _ models.User, _ models.Chat, msg models.ChatMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, msg)
	return nil
}

type testEnv struct {
	router   http.Handler
	handlers *Handlers
	store    *db.MemoryStore
	notifier *recordingNotifier
	uploads  string

	buyer, seller, stranger models.User
	chat                    models.Chat
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	env := &testEnv{
		store:    db.NewMemoryStore(),
		notifier: &recordingNotifier{},
		uploads:  t.TempDir(),
	}
	var err error
	if env.buyer, err = env.store.CreateUser(ctx, models.User{Username: "alice", UserType: constants.USER_TYPE_BUYER}); err != nil {
		t.Fatal(err)
	}
	if env.seller, err = env.store.CreateUser(ctx, models.User{Username: "bob", UserType: constants.USER_TYPE_SELLER}); err != nil {
		t.Fatal(err)
	}
	if env.stranger, err = env.store.CreateUser(ctx, models.User{Username: "eve", UserType: constants.USER_TYPE_BUYER}); err != nil {
		t.Fatal(err)
	}
	if env.chat, _, err = env.store.GetOrCreateChat(ctx, 42, env.buyer.ID, env.seller.ID); err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	env.handlers = SetupRoutes(r, ApiDependencies{
		Store:         env.store,
		Notifier:      env.notifier,
		Metrics:       metrics.New(),
		Log:           logger.Nop(),
		UploadDir:     env.uploads,
		PublicBaseURL: "https://homes.example.com",
		AuthSecret:    testSecret,
	})
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, user models.User, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user.ID != 0 {
		req.Header.Set(constants.AuthHeader, utils.SignAuth(testSecret, user.ID, time.Now()))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) sendText(t *testing.T, user models.User, chatID int64, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"chat_id": chatID, "content": content})
	return e.do(t, user, http.MethodPost, "/chat/send-message", body, "application/json")
}

func multipartFile(t *testing.T, chatID string, name string, data []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", chatID); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func decodeMessages(t *testing.T, w *httptest.ResponseRecorder) []messageRecord {
	t.Helper()
	var resp messagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode messages: %v, body=%s", err, w.Body.String())
	}
	return resp.Messages
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, models.User{}, http.MethodGet, "/healthz", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := env.do(t, models.User{}, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "propchat_http_requests_total") {
		t.Errorf("expected request counter in metrics output")
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, models.User{}, http.MethodGet, "/chat/my-chats", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth header, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/chat/my-chats", nil)
	req.Header.Set(constants.AuthHeader, utils.SignAuth("wrong", env.buyer.ID, time.Now()))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad signature, got %d", w.Code)
	}

	w = env.do(t, models.User{ID: 999}, http.MethodGet, "/chat/my-chats", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestSendMessageAndLoadHistory(t *testing.T) {
	env := newTestEnv(t)

	w := env.sendText(t, env.buyer, env.chat.ID, "  Is the flat still available?  ")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var sent sentMessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Content != "Is the flat still available?" {
		t.Errorf("expected trimmed content, got %q", sent.Content)
	}
	if sent.CreatedAt.IsZero() || sent.SenderID != env.buyer.ID {
		t.Errorf("unexpected record %+v", sent)
	}
	if !strings.Contains(w.Body.String(), `"created_at"`) {
		t.Errorf("response lacks created_at: %s", w.Body.String())
	}

	env.sendText(t, env.seller, env.chat.ID, "Yes it is")

	w = env.do(t, env.seller, http.MethodGet, "/chat/messages/1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	msgs := decodeMessages(t, w)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].IsSender || !msgs[1].IsSender {
		t.Errorf("is_sender must be relative to the caller: %+v", msgs)
	}
	if msgs[0].FileURL.Valid {
		t.Errorf("text message must not carry file_url")
	}

	env.handlers.Wait()
	if len(env.notifier.calls) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(env.notifier.calls))
	}
}

func TestGetMessagesMarksRead(t *testing.T) {
	env := newTestEnv(t)
	env.sendText(t, env.buyer, env.chat.ID, "hello")

	env.do(t, env.seller, http.MethodGet, "/chat/messages/1", nil, "")

	n, err := env.store.MarkMessagesRead(context.Background(), env.chat.ID, env.seller.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected messages already read by GET, %d left unread", n)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv(t)

	if w := env.sendText(t, env.buyer, env.chat.ID, "   "); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty content, got %d", w.Code)
	}
	if w := env.sendText(t, env.stranger, env.chat.ID, "hi"); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-participant, got %d", w.Code)
	}
	if w := env.sendText(t, env.buyer, 77, "hi"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown chat, got %d", w.Code)
	}
	w := env.do(t, env.buyer, http.MethodPost, "/chat/send-message", []byte("{"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
	var errResp jsonResponse
	json.Unmarshal(w.Body.Bytes(), &errResp)
	if errResp.Status != "error" || errResp.Message == "" {
		t.Errorf("expected error envelope, got %s", w.Body.String())
	}
}

func TestGetMessagesForbiddenForStranger(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, env.stranger, http.MethodGet, "/chat/messages/1", nil, ""); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := env.do(t, env.buyer, http.MethodGet, "/chat/messages/abc", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
}

func TestSendFileAndDownload(t *testing.T) {
	env := newTestEnv(t)
	content := []byte("%PDF-1.4 floor plan")

	body, ct := multipartFile(t, "1", "floor plan.pdf", content)
	w := env.do(t, env.buyer, http.MethodPost, "/chat/send-file", body, ct)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var sent sentFileResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatal(err)
	}
	if sent.FileName != "floor_plan.pdf" {
		t.Errorf("expected sanitized name, got %q", sent.FileName)
	}
	if sent.Content != "Sent file: floor_plan.pdf" {
		t.Errorf("unexpected content %q", sent.Content)
	}
	if !sent.IsSender || sent.Timestamp.IsZero() {
		t.Errorf("unexpected record %+v", sent)
	}
	if !strings.HasPrefix(sent.FileURL, constants.ROUTE_DOWNLOAD) || !strings.HasSuffix(sent.FileURL, "_floor_plan.pdf") {
		t.Fatalf("unexpected file_url %q", sent.FileURL)
	}

	stored := strings.TrimPrefix(sent.FileURL, constants.ROUTE_DOWNLOAD)
	if _, err := os.Stat(filepath.Join(env.uploads, stored)); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	w = env.do(t, env.seller, http.MethodGet, sent.FileURL, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on download, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Errorf("downloaded bytes differ")
	}
	if !strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment") {
		t.Errorf("expected attachment disposition, got %q", w.Header().Get("Content-Disposition"))
	}

	msgs := decodeMessages(t, env.do(t, env.seller, http.MethodGet, "/chat/messages/1", nil, ""))
	if len(msgs) != 1 || msgs[0].FileURL.String != sent.FileURL || msgs[0].FileType.String != "application/pdf" {
		t.Errorf("history does not carry the attachment: %+v", msgs)
	}
}

func TestSendFileRejections(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartFile(t, "1", "virus.exe", []byte("MZ"))
	if w := env.do(t, env.buyer, http.MethodPost, "/chat/send-file", body, ct); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for disallowed extension, got %d", w.Code)
	}

	big := bytes.Repeat([]byte("x"), int(constants.MaxChatFileSize)+1)
	body, ct = multipartFile(t, "1", "big.png", big)
	if w := env.do(t, env.buyer, http.MethodPost, "/chat/send-file", body, ct); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversized file, got %d", w.Code)
	}

	body, ct = multipartFile(t, "1", "note.txt", []byte("hi"))
	if w := env.do(t, env.stranger, http.MethodPost, "/chat/send-file", body, ct); w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-participant, got %d", w.Code)
	}

	entries, _ := os.ReadDir(env.uploads)
	if len(entries) != 0 {
		t.Errorf("rejected uploads must not be stored, found %d files", len(entries))
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(t, env.buyer, http.MethodGet, "/chat/download/..secret", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if w := env.do(t, env.buyer, http.MethodGet, "/chat/download/missing.pdf", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestUpdatesHonorCursor(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	n := 0
	env.store.WithClock(func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	})

	env.sendText(t, env.buyer, env.chat.ID, "one")
	env.sendText(t, env.seller, env.chat.ID, "two")
	env.sendText(t, env.buyer, env.chat.ID, "three")

	all := decodeMessages(t, env.do(t, env.buyer, http.MethodGet, "/chat/updates/1?last_timestamp=null", nil, ""))
	if len(all) != 3 {
		t.Fatalf("expected full history for null cursor, got %d", len(all))
	}

	cursor := all[0].Timestamp.Format(time.RFC3339Nano)
	newer := decodeMessages(t, env.do(t, env.buyer, http.MethodGet, "/chat/updates/1?last_timestamp="+cursor, nil, ""))
	if len(newer) != 2 || newer[0].Content != "two" {
		t.Fatalf("expected messages strictly after cursor, got %+v", newer)
	}

	if w := env.do(t, env.buyer, http.MethodGet, "/chat/updates/1?last_timestamp=soon", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad cursor, got %d", w.Code)
	}
}

func TestStartChatIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, env.stranger, http.MethodPost, "/chat/property/9/chat/2", nil, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	var first chatResponse
	json.Unmarshal(w.Body.Bytes(), &first)
	if first.BuyerID != env.stranger.ID || first.SellerID != env.seller.ID {
		t.Errorf("roles not assigned from user type: %+v", first.Chat)
	}

	w = env.do(t, env.seller, http.MethodPost, "/chat/property/9/chat/3", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing chat, got %d", w.Code)
	}
	var second chatResponse
	json.Unmarshal(w.Body.Bytes(), &second)
	if second.ID != first.ID {
		t.Errorf("expected same chat, got %d and %d", first.ID, second.ID)
	}

	if w := env.do(t, env.seller, http.MethodPost, "/chat/property/9/chat/2", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 when chatting with yourself, got %d", w.Code)
	}
	if w := env.do(t, env.seller, http.MethodPost, "/chat/property/9/chat/404", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", w.Code)
	}
}

func TestMyChats(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, env.seller, http.MethodGet, "/chat/my-chats", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Status string         `json:"status"`
		Data   []chatResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Counterparty != env.buyer.ID {
		t.Fatalf("unexpected chats %+v", resp.Data)
	}
}

func TestExportAndQRCode(t *testing.T) {
	env := newTestEnv(t)
	env.sendText(t, env.buyer, env.chat.ID, "hello")

	w := env.do(t, env.buyer, http.MethodGet, "/chat/1/export.xlsx", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Errorf("expected a zip-based xlsx body")
	}

	w = env.do(t, env.seller, http.MethodGet, "/chat/1/qr.png?size=128", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("expected PNG body")
	}

	if w := env.do(t, env.stranger, http.MethodGet, "/chat/1/export.xlsx", nil, ""); w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestClientConfig(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, models.User{}, http.MethodGet, "/api/client-config", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data struct {
			PollIntervalSeconds int   `json:"poll_interval_seconds"`
			MaxFileSize         int64 `json:"max_file_size"`
			WidgetMaxFileSize   int64 `json:"widget_max_file_size"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.PollIntervalSeconds != 15 || resp.Data.MaxFileSize != 5<<20 || resp.Data.WidgetMaxFileSize != 10<<20 {
		t.Errorf("unexpected client config %+v", resp.Data)
	}
}
