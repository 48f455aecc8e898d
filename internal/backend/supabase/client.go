// Package supabase implements the backend interfaces against a hosted
// Supabase project: GoTrue for the session user, PostgREST for preferences
// and transcripts, and an edge function for server-side transcription.
//
// Usage:
//
//	c, err := supabase.New("https://xyz.supabase.co", anonKey,
//	    supabase.WithAccessToken(token),
//	)
//	user, ok, err := c.CurrentUser(ctx)
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/boardroom/internal/backend"
)

const (
	defaultTimeout = 30 * time.Second

	// maxResponseBytes bounds every response body read from the project.
	maxResponseBytes = 4 << 20

	// TranscribeFunction is the edge function invoked by TranscribeAudio.
	TranscribeFunction = "transcribe-audio"
)

var (
	_ backend.Users            = (*Client)(nil)
	_ backend.Preferences      = (*Client)(nil)
	_ backend.Transcripts      = (*Client)(nil)
	_ backend.TranscriptLister = (*Client)(nil)
	_ backend.AudioTranscriber = (*Client)(nil)
	_ backend.Pinger           = (*Client)(nil)
)

// APIError is returned when the project answers with a non-2xx status.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithAccessToken sets the user JWT sent as the bearer token. Without it the
// anon key is used and CurrentUser reports no session.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = token }
}

// WithHTTPClient replaces the HTTP client. The default has a 30 s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client talks to a Supabase project over HTTPS. It is safe for concurrent
// use.
type Client struct {
	baseURL     string
	anonKey     string
	accessToken string
	httpClient  *http.Client
}

// New creates a Client for the project at baseURL authenticated with anonKey.
func New(baseURL, anonKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("supabase: baseURL must not be empty")
	}
	if anonKey == "" {
		return nil, errors.New("supabase: anonKey must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// CurrentUser implements [backend.Users] via GET /auth/v1/user. A missing
// access token or a 401 reply reports no session without an error.
func (c *Client) CurrentUser(ctx context.Context) (backend.User, bool, error) {
	if c.accessToken == "" {
		return backend.User{}, false, nil
	}
	var u struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	err := c.do(ctx, "current user", http.MethodGet, "/auth/v1/user", nil, nil, &u)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return backend.User{}, false, nil
	}
	if err != nil {
		return backend.User{}, false, err
	}
	if u.ID == "" {
		return backend.User{}, false, nil
	}
	return backend.User{ID: u.ID, Email: u.Email}, true, nil
}

// TranscriptionPreference implements [backend.Preferences].
func (c *Client) TranscriptionPreference(ctx context.Context, userID string) (string, error) {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("select", "transcription_provider")
	q.Set("limit", "1")

	var rows []struct {
		Provider *string `json:"transcription_provider"`
	}
	if err := c.do(ctx, "transcription preference", http.MethodGet, "/rest/v1/user_preferences", q, nil, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].Provider == nil {
		return "", nil
	}
	return *rows[0].Provider, nil
}

type transcriptionRow struct {
	ID        string    `json:"id,omitempty"`
	MeetingID string    `json:"meeting_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
}

// SaveTranscription implements [backend.Transcripts].
func (c *Client) SaveTranscription(ctx context.Context, t backend.Transcription) error {
	row := transcriptionRow{
		MeetingID: t.MeetingID,
		Content:   t.Content,
		Timestamp: t.Timestamp.UTC(),
		Speaker:   t.Speaker,
	}
	return c.do(ctx, "save transcription", http.MethodPost, "/rest/v1/transcriptions", nil, row, nil)
}

// ListTranscriptions implements [backend.TranscriptLister].
func (c *Client) ListTranscriptions(ctx context.Context, meetingID string) ([]backend.Transcription, error) {
	q := url.Values{}
	q.Set("meeting_id", "eq."+meetingID)
	q.Set("select", "id,meeting_id,content,timestamp,speaker")
	q.Set("order", "timestamp.asc")

	var rows []transcriptionRow
	if err := c.do(ctx, "list transcriptions", http.MethodGet, "/rest/v1/transcriptions", q, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]backend.Transcription, len(rows))
	for i, r := range rows {
		out[i] = backend.Transcription{
			ID:        r.ID,
			MeetingID: r.MeetingID,
			Content:   r.Content,
			Timestamp: r.Timestamp,
			Speaker:   r.Speaker,
		}
	}
	return out, nil
}

// TranscribeAudio implements [backend.AudioTranscriber] by invoking the
// transcribe-audio edge function.
func (c *Client) TranscribeAudio(ctx context.Context, audioBase64, meetingID string) (backend.TranscribeResult, error) {
	req := struct {
		Audio     string `json:"audio"`
		MeetingID string `json:"meetingId"`
	}{audioBase64, meetingID}

	var res struct {
		backend.TranscribeResult
		Error string `json:"error"`
	}
	if err := c.do(ctx, "transcribe audio", http.MethodPost, "/functions/v1/"+TranscribeFunction, nil, req, &res); err != nil {
		return backend.TranscribeResult{}, err
	}
	if res.Error != "" {
		return backend.TranscribeResult{}, fmt.Errorf("supabase: transcribe audio: %s", res.Error)
	}
	return res.TranscribeResult, nil
}

// Ping implements [backend.Pinger] via the GoTrue health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/auth/v1/health", nil, nil, nil)
}

// do performs one JSON request. body, when non-nil, is encoded as the request
// payload; out, when non-nil, receives the decoded response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("supabase: %s: encode request: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("supabase: %s: create request: %w", op, err)
	}
	token := c.accessToken
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost && strings.HasPrefix(path, "/rest/") {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase: %s: http request: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("supabase: %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("supabase: %s: decode response: %w", op, err)
	}
	return nil
}
