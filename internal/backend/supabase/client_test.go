package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/boardroom/internal/backend"
	"github.com/MrWong99/boardroom/internal/backend/supabase"
)

type request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// fakeProject is a recording stand-in for a Supabase project.
type fakeProject struct {
	mu       sync.Mutex
	requests []request
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeProject(t *testing.T) (*fakeProject, *httptest.Server) {
	t.Helper()
	fp := &fakeProject{routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.requests = append(fp.requests, request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		h := fp.routes[r.Method+" "+r.URL.Path]
		fp.mu.Unlock()
		if h == nil {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (fp *fakeProject) handle(pattern string, status int, body string) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.routes[pattern] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func (fp *fakeProject) last(t *testing.T) request {
	t.Helper()
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if len(fp.requests) == 0 {
		t.Fatal("no requests recorded")
	}
	return fp.requests[len(fp.requests)-1]
}

func newClient(t *testing.T, url string, opts ...supabase.Option) *supabase.Client {
	t.Helper()
	c, err := supabase.New(url, "anon-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := supabase.New("", "k"); err == nil {
		t.Error("expected error for empty baseURL")
	}
	if _, err := supabase.New("http://x", ""); err == nil {
		t.Error("expected error for empty anon key")
	}
}

func TestCurrentUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		token   string
		status  int
		body    string
		wantOK  bool
		wantID  string
		wantErr bool
	}{
		{name: "signed in", token: "jwt", status: 200, body: `{"id":"u-1","email":"ceo@example.com"}`, wantOK: true, wantID: "u-1"},
		{name: "expired token", token: "jwt", status: 401, body: `{"msg":"expired"}`},
		{name: "no token", token: ""},
		{name: "server error", token: "jwt", status: 500, body: "boom", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fp, srv := newFakeProject(t)
			fp.handle("GET /auth/v1/user", tt.status, tt.body)
			c := newClient(t, srv.URL, supabase.WithAccessToken(tt.token))

			u, ok, err := c.CurrentUser(context.Background())
			if tt.wantErr {
				var apiErr *supabase.APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
					t.Fatalf("err = %v, want APIError %d", err, tt.status)
				}
				return
			}
			if err != nil {
				t.Fatalf("CurrentUser: %v", err)
			}
			if ok != tt.wantOK || u.ID != tt.wantID {
				t.Errorf("got (%+v, %v), want id %q ok %v", u, ok, tt.wantID, tt.wantOK)
			}
			if tt.token != "" {
				req := fp.last(t)
				if got := req.Header.Get("Authorization"); got != "Bearer "+tt.token {
					t.Errorf("Authorization = %q", got)
				}
				if got := req.Header.Get("apikey"); got != "anon-key" {
					t.Errorf("apikey = %q", got)
				}
			}
		})
	}
}

func TestTranscriptionPreference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"stored", `[{"transcription_provider":"browser"}]`, "browser"},
		{"null column", `[{"transcription_provider":null}]`, ""},
		{"no row", `[]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fp, srv := newFakeProject(t)
			fp.handle("GET /rest/v1/user_preferences", 200, tt.body)
			c := newClient(t, srv.URL, supabase.WithAccessToken("jwt"))

			got, err := c.TranscriptionPreference(context.Background(), "u-1")
			if err != nil {
				t.Fatalf("TranscriptionPreference: %v", err)
			}
			if got != tt.want {
				t.Errorf("preference = %q, want %q", got, tt.want)
			}
			q := fp.last(t).Query
			for _, want := range []string{"user_id=eq.u-1", "select=transcription_provider"} {
				if !strings.Contains(q, want) {
					t.Errorf("query %q missing %q", q, want)
				}
			}
		})
	}
}

func TestSaveTranscription(t *testing.T) {
	t.Parallel()

	fp, srv := newFakeProject(t)
	fp.handle("POST /rest/v1/transcriptions", 201, "")
	c := newClient(t, srv.URL, supabase.WithAccessToken("jwt"))

	ts := time.Date(2024, 5, 2, 10, 30, 0, 0, time.FixedZone("EAT", 3*3600))
	err := c.SaveTranscription(context.Background(), backend.Transcription{
		MeetingID: "m-1",
		Content:   "we approve the budget",
		Timestamp: ts,
		Speaker:   backend.SpeakerUnknown,
	})
	if err != nil {
		t.Fatalf("SaveTranscription: %v", err)
	}

	req := fp.last(t)
	if got := req.Header.Get("Prefer"); got != "return=minimal" {
		t.Errorf("Prefer = %q", got)
	}
	var row map[string]string
	if err := json.Unmarshal([]byte(req.Body), &row); err != nil {
		t.Fatalf("decode body %q: %v", req.Body, err)
	}
	want := map[string]string{
		"meeting_id": "m-1",
		"content":    "we approve the budget",
		"timestamp":  "2024-05-02T07:30:00Z",
		"speaker":    "Unknown",
	}
	for k, v := range want {
		if row[k] != v {
			t.Errorf("row[%q] = %q, want %q", k, row[k], v)
		}
	}
	if _, ok := row["id"]; ok {
		t.Error("empty id should be omitted")
	}
}

func TestListTranscriptions(t *testing.T) {
	t.Parallel()

	fp, srv := newFakeProject(t)
	fp.handle("GET /rest/v1/transcriptions", 200,
		`[{"id":"1","meeting_id":"m-1","content":"hello","timestamp":"2024-05-02T07:30:00Z","speaker":"Unknown"}]`)
	c := newClient(t, srv.URL)

	got, err := c.ListTranscriptions(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("ListTranscriptions: %v", err)
	}
	if len(got) != 1 || got[0].Content != "hello" || got[0].ID != "1" {
		t.Fatalf("got %+v", got)
	}
	if !strings.Contains(fp.last(t).Query, "order=timestamp.asc") {
		t.Errorf("query %q not ordered", fp.last(t).Query)
	}
}

func TestTranscribeAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
		wantErr  bool
	}{
		{name: "ok", status: 200, body: `{"text":"next agenda item","meetingId":"m-1"}`, wantText: "next agenda item"},
		{name: "function error field", status: 200, body: `{"error":"quota exceeded"}`, wantErr: true},
		{name: "bad gateway", status: 502, body: `{"error":"upstream"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fp, srv := newFakeProject(t)
			fp.handle("POST /functions/v1/transcribe-audio", tt.status, tt.body)
			c := newClient(t, srv.URL, supabase.WithAccessToken("jwt"))

			res, err := c.TranscribeAudio(context.Background(), "AAEC", "m-1")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("TranscribeAudio: %v", err)
			}
			if res.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", res.Text, tt.wantText)
			}

			var sent map[string]string
			if err := json.Unmarshal([]byte(fp.last(t).Body), &sent); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if sent["audio"] != "AAEC" || sent["meetingId"] != "m-1" {
				t.Errorf("sent = %v", sent)
			}
		})
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	fp, srv := newFakeProject(t)
	fp.handle("GET /auth/v1/health", 200, `{"name":"GoTrue"}`)
	c := newClient(t, srv.URL)

	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	srv.Close()
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error after server close")
	}
}
