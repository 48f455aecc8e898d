// Package transcribefn serves the transcribe-audio function that the router's
// server path calls.
//
// A request carries one base64-encoded opus/webm chunk and the meeting it
// belongs to. The handler decodes it, transcribes it with the configured
// providers and stores non-empty text with the "Unknown" speaker label:
//
//	POST /functions/v1/transcribe-audio
//	{"audio": "<base64>", "meetingId": "<uuid>"}
//
//	200 {"text": "...", "meetingId": "..."}
//	400 {"error": "..."}   malformed body, missing field or bad base64
//	413 {"error": "..."}   decoded audio larger than the limit
//	502 {"error": "..."}   every transcriber failed
//	500 {"error": "..."}   the transcription could not be stored
//
// [Service] also implements [backend.AudioTranscriber] so a process running
// against a database backend can call it without the HTTP hop.
package transcribefn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/boardroom/internal/backend"
	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
)

// Path is the route the supabase client calls.
const Path = "/functions/v1/transcribe-audio"

// DefaultMaxAudioBytes is the decoded audio limit, matching the 25 MiB upload
// cap of hosted whisper.
const DefaultMaxAudioBytes = 25 << 20

var (
	// ErrBadRequest is wrapped by errors caused by the caller's input.
	ErrBadRequest = errors.New("transcribefn: bad request")
	// ErrTooLarge is returned when the decoded audio exceeds the limit.
	ErrTooLarge = errors.New("transcribefn: audio too large")
)

// TranscribeError wraps a transcriber failure.
type TranscribeError struct{ Err error }

func (e *TranscribeError) Error() string { return "transcribefn: transcribe: " + e.Err.Error() }
func (e *TranscribeError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure after a successful transcription.
type StoreError struct{ Err error }

func (e *StoreError) Error() string { return "transcribefn: save transcription: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// Option is a functional option for [New].
type Option func(*Service)

// WithMaxAudioBytes overrides [DefaultMaxAudioBytes].
func WithMaxAudioBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service transcribes uploaded chunks. It is safe for concurrent use when its
// collaborators are.
type Service struct {
	transcriber stt.Transcriber
	transcripts backend.Transcripts
	maxBytes    int64
	metrics     *observe.Metrics
	now         func() time.Time
}

// New creates a Service. transcripts may be nil, in which case results are
// returned but not stored.
func New(tr stt.Transcriber, transcripts backend.Transcripts, opts ...Option) *Service {
	s := &Service{
		transcriber: tr,
		transcripts: transcripts,
		maxBytes:    DefaultMaxAudioBytes,
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// TranscribeAudio implements [backend.AudioTranscriber].
func (s *Service) TranscribeAudio(ctx context.Context, audioBase64, meetingID string) (backend.TranscribeResult, error) {
	ctx, span := observe.StartSpan(ctx, "transcribefn.transcribe")
	defer span.End()

	meetingID = strings.TrimSpace(meetingID)
	if audioBase64 == "" {
		return backend.TranscribeResult{}, fmt.Errorf("%w: audio is required", ErrBadRequest)
	}
	if meetingID == "" {
		return backend.TranscribeResult{}, fmt.Errorf("%w: meetingId is required", ErrBadRequest)
	}
	if int64(base64.StdEncoding.DecodedLen(len(audioBase64))) > s.maxBytes+2 {
		return backend.TranscribeResult{}, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return backend.TranscribeResult{}, fmt.Errorf("%w: audio is not valid base64: %v", ErrBadRequest, err)
	}
	if int64(len(data)) > s.maxBytes {
		return backend.TranscribeResult{}, ErrTooLarge
	}

	timestamp := s.now().UTC()
	start := time.Now()
	t, err := s.transcriber.Transcribe(ctx, audio.Chunk{
		Data:       data,
		MimeType:   audio.MimeTypeWebMOpus,
		CapturedAt: timestamp,
	})
	provider := t.Provider
	if provider == "" {
		provider = "unknown"
	}
	s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("provider", provider)))
	if err != nil {
		s.metrics.RecordProviderError(ctx, provider, "stt")
		return backend.TranscribeResult{}, &TranscribeError{Err: err}
	}

	text := strings.TrimSpace(t.Text)
	log := observe.Logger(ctx).With("meeting_id", meetingID, "provider", t.Provider)
	if text == "" || s.transcripts == nil {
		log.Debug("transcribefn: nothing to store", "bytes", len(data), "chars", len(text))
		return backend.TranscribeResult{Text: text, MeetingID: meetingID}, nil
	}

	if err := s.transcripts.SaveTranscription(ctx, backend.Transcription{
		MeetingID: meetingID,
		Content:   text,
		Timestamp: timestamp,
		Speaker:   backend.SpeakerUnknown,
	}); err != nil {
		return backend.TranscribeResult{Text: text, MeetingID: meetingID}, &StoreError{Err: err}
	}
	log.Info("transcribefn: transcription stored", "bytes", len(data), "chars", len(text))
	return backend.TranscribeResult{Text: text, MeetingID: meetingID}, nil
}

type request struct {
	Audio     string `json:"audio"`
	MeetingID string `json:"meetingId"`
}

// ServeHTTP implements [http.Handler].
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Base64 inflates by 4/3; leave headroom for the JSON envelope.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes/3*4+8<<10)
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.TranscribeAudio(r.Context(), req.Audio, req.MeetingID)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Warn("transcribefn: request failed", "meeting_id", req.MeetingID, "status", status, "err", err)
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Register adds the function route to mux.
func (s *Service) Register(mux *http.ServeMux) {
	mux.Handle("POST "+Path, s)
}

func statusFor(err error) int {
	var (
		tErr *TranscribeError
		sErr *StoreError
	)
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &tErr):
		return http.StatusBadGateway
	case errors.As(err, &sErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("transcribefn: write response failed", "err", err)
	}
}

var _ backend.AudioTranscriber = (*Service)(nil)
