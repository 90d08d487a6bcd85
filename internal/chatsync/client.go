package chatsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"propchat/internal/constants"
)

// ErrMalformedResponse is returned when a response body is not the expected JSON.
var ErrMalformedResponse = errors.New("chatsync: malformed response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chatsync: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("chatsync: server returned %d: %s", e.StatusCode, e.Message)
}

// API is the set of chat endpoints the sync loop consumes.
type API interface {
	FetchMessages(ctx context.Context, chatID int64) ([]Record, error)
	FetchUpdates(ctx context.Context, chatID int64, cursor Cursor) ([]Record, error)
	SendText(ctx context.Context, chatID int64, content string) (Record, error)
	SendFile(ctx context.Context, chatID int64, name string, body io.Reader) (Record, error)
}

// Client talks to the chat server over HTTP.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
}

var _ API = (*Client)(nil)

// NewClient creates a client for the server at baseURL. auth is sent verbatim
// in the X-Chat-Auth header. A nil hc uses a client with a 30 s timeout.
func NewClient(baseURL, auth string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		http:    hc,
	}
}

// BaseURL returns the server root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type messagesEnvelope struct {
	Messages []Record `json:"messages"`
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *Client) FetchMessages(ctx context.Context, chatID int64) ([]Record, error) {
	var env messagesEnvelope
	if err := c.do(ctx, http.MethodGet, constants.ROUTE_MESSAGES+strconv.FormatInt(chatID, 10), nil, "", &env); err != nil {
		return nil, err
	}
	return env.Messages, nil
}

func (c *Client) FetchUpdates(ctx context.Context, chatID int64, cursor Cursor) ([]Record, error) {
	q := url.Values{}
	q.Set("last_timestamp", cursor.String())
	path := constants.ROUTE_UPDATES + strconv.FormatInt(chatID, 10) + "?" + q.Encode()

	var env messagesEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, "", &env); err != nil {
		return nil, err
	}
	return env.Messages, nil
}

func (c *Client) SendText(ctx context.Context, chatID int64, content string) (Record, error) {
	body, err := json.Marshal(map[string]any{"chat_id": chatID, "content": content})
	if err != nil {
		return Record{}, fmt.Errorf("encode message: %w", err)
	}
	var rec Record
	err = c.do(ctx, http.MethodPost, constants.ROUTE_SEND_MESSAGE, bytes.NewReader(body), "application/json", &rec)
	return rec, err
}

func (c *Client) SendFile(ctx context.Context, chatID int64, name string, body io.Reader) (Record, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return Record{}, fmt.Errorf("write chat_id field: %w", err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return Record{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return Record{}, fmt.Errorf("read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return Record{}, fmt.Errorf("close multipart body: %w", err)
	}

	var rec Record
	err = c.do(ctx, http.MethodPost, constants.ROUTE_SEND_FILE, &buf, mw.FormDataContentType(), &rec)
	return rec, err
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.auth != "" {
		req.Header.Set(constants.AuthHeader, c.auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil {
			statusErr.Message = env.Message
		}
		return statusErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}
