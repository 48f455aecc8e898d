package transcribefn_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/boardroom/internal/backend"
	backendmock "github.com/MrWong99/boardroom/internal/backend/mock"
	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/internal/transcribefn"
	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
	sttmock "github.com/MrWong99/boardroom/pkg/provider/stt/mock"
)

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("EAT", 3*3600))

const meeting = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

func newService(t *testing.T, tr stt.Transcriber, b *backendmock.Backend, opts ...transcribefn.Option) *transcribefn.Service {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	base := []transcribefn.Option{
		transcribefn.WithMetrics(m),
		transcribefn.WithClock(func() time.Time { return fixedNow }),
	}
	return transcribefn.New(tr, b, append(base, opts...)...)
}

func post(t *testing.T, h http.Handler, body string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, transcribefn.Path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, out
}

func requestBody(t *testing.T, data []byte, meetingID string) string {
	t.Helper()
	b, err := json.Marshal(map[string]string{
		"audio":     base64.StdEncoding.EncodeToString(data),
		"meetingId": meetingID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestServeHTTP_TranscribesAndStores(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: stt.Transcript{Text: "  revenue is up  ", Provider: "whisper-1"}}
	b := &backendmock.Backend{}
	svc := newService(t, tr, b)

	data := bytes.Repeat([]byte{0x1a}, 9000)
	code, out := post(t, svc, requestBody(t, data, meeting))
	if code != http.StatusOK {
		t.Fatalf("status = %d, body %v", code, out)
	}
	if out["text"] != "revenue is up" || out["meetingId"] != meeting {
		t.Errorf("response = %v", out)
	}

	call, ok := tr.LastCall()
	if !ok {
		t.Fatal("transcriber not called")
	}
	if !bytes.Equal(call.Chunk.Data, data) {
		t.Error("transcriber got different bytes")
	}
	if call.Chunk.MimeType != audio.MimeTypeWebMOpus {
		t.Errorf("MimeType = %q", call.Chunk.MimeType)
	}

	saved := b.Saved()
	if len(saved) != 1 {
		t.Fatalf("saved %d transcriptions, want 1", len(saved))
	}
	want := backend.Transcription{
		MeetingID: meeting,
		Content:   "revenue is up",
		Timestamp: fixedNow.UTC(),
		Speaker:   backend.SpeakerUnknown,
	}
	if saved[0] != want {
		t.Errorf("saved = %+v, want %+v", saved[0], want)
	}
}

func TestServeHTTP_EmptyTextIsNotStored(t *testing.T) {
	t.Parallel()

	b := &backendmock.Backend{}
	svc := newService(t, &sttmock.Transcriber{Result: stt.Transcript{Text: "   "}}, b)

	code, out := post(t, svc, requestBody(t, []byte("abc"), meeting))
	if code != http.StatusOK || out["text"] != "" {
		t.Fatalf("status = %d, body %v", code, out)
	}
	if got := b.CallCount("SaveTranscription"); got != 0 {
		t.Errorf("SaveTranscription calls = %d, want 0", got)
	}
}

func TestServeHTTP_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		trErr      error
		saveErr    error
		maxBytes   int64
		wantStatus int
	}{
		{name: "invalid json", body: "{", wantStatus: http.StatusBadRequest},
		{name: "missing audio", body: `{"meetingId":"` + meeting + `"}`, wantStatus: http.StatusBadRequest},
		{name: "missing meeting", body: `{"audio":"YWJj"}`, wantStatus: http.StatusBadRequest},
		{name: "bad base64", body: `{"audio":"***","meetingId":"m"}`, wantStatus: http.StatusBadRequest},
		{name: "decoded too large", body: `{"audio":"` + base64.StdEncoding.EncodeToString(make([]byte, 64)) + `","meetingId":"m"}`, maxBytes: 32, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "body too large", body: `{"audio":"` + strings.Repeat("A", 64<<10) + `","meetingId":"m"}`, maxBytes: 32, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "transcriber fails", body: `{"audio":"YWJj","meetingId":"m"}`, trErr: errors.New("upstream 500"), wantStatus: http.StatusBadGateway},
		{name: "store fails", body: `{"audio":"YWJj","meetingId":"m"}`, saveErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := &sttmock.Transcriber{Result: stt.Transcript{Text: "hello"}, Err: tt.trErr}
			b := &backendmock.Backend{SaveErr: tt.saveErr}
			var opts []transcribefn.Option
			if tt.maxBytes > 0 {
				opts = append(opts, transcribefn.WithMaxAudioBytes(tt.maxBytes))
			}
			svc := newService(t, tr, b, opts...)

			code, out := post(t, svc, tt.body)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", code, tt.wantStatus, out)
			}
			if out["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	svc := newService(t, &sttmock.Transcriber{}, &backendmock.Backend{})
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, transcribefn.Path, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodPost {
		t.Errorf("Allow = %q", got)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	svc := newService(t, &sttmock.Transcriber{Result: stt.Transcript{Text: "x"}}, &backendmock.Backend{})
	mux := http.NewServeMux()
	svc.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+transcribefn.Path, "application/json", strings.NewReader(requestBody(t, []byte("abc"), meeting)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestTranscribeAudio_ErrorTypes(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	svc := newService(t, &sttmock.Transcriber{Err: cause}, &backendmock.Backend{})

	_, err := svc.TranscribeAudio(context.Background(), "YWJj", "m")
	var terr *transcribefn.TranscribeError
	if !errors.As(err, &terr) || !errors.Is(err, cause) {
		t.Errorf("err = %v, want TranscribeError wrapping cause", err)
	}

	if _, err := svc.TranscribeAudio(context.Background(), "", "m"); !errors.Is(err, transcribefn.ErrBadRequest) {
		t.Errorf("empty audio = %v, want ErrBadRequest", err)
	}
}
