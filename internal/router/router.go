// Package router decides, chunk by chunk, how captured meeting audio is
// transcribed.
//
// For every chunk the router looks up the caller's transcription preference
// and takes one of three paths:
//
//   - realtime: nothing to do, a separate realtime session owns transcription.
//   - browser: the most recent chunk is transcribed on this machine and the
//     text is persisted directly. Chunks of 8 KiB or less are skipped.
//   - server: the chunk is base64-encoded and uploaded to the backend
//     transcribe-audio function, which persists the result itself.
//
// Routing is fire-and-forget. [Router.Route] returns immediately and each
// chunk is processed on its own goroutine; completions may be reordered.
// Nothing is retried, and no failure ever propagates back to the capture
// session. Server-path failures raise a "Transcription failed" toast.
package router

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/boardroom/internal/backend"
	"github.com/MrWong99/boardroom/internal/capture"
	"github.com/MrWong99/boardroom/internal/notify"
	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/internal/resilience"
	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
)

// MinBrowserChunkBytes is the size at or below which the browser path skips
// a chunk. Smaller payloads are almost always silence or a bare header.
const MinBrowserChunkBytes = 8192

// Route outcomes reported in metrics, spans and logs.
const (
	OutcomeNoop      = "noop"
	OutcomeDropped   = "dropped"
	OutcomeEmpty     = "empty"
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeRecovered = "panic"
)

// Request is one chunk to route.
type Request struct {
	// Chunk is the chunk just captured.
	Chunk audio.Chunk
	// Recent is the capture session's buffer snapshot, oldest first, ending
	// with Chunk.
	Recent []audio.Chunk
	// MeetingID is the normalised meeting identifier.
	MeetingID string
	// Caller is the user the recording belongs to. A zero Caller uses the
	// default preference.
	Caller backend.User
}

// PersistError reports a browser-path transcript that could not be saved.
type PersistError struct {
	MeetingID string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("router: persist transcript for meeting %s: %v", e.MeetingID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// TranscriptHook receives every non-empty transcript produced on the browser
// path. It runs on the routing goroutine.
type TranscriptHook func(ctx context.Context, meetingID, text string)

// Option is a functional option for [New].
type Option func(*Router)

// WithNotifier sets where server-path failure toasts go. Default: [notify.Discard].
func WithNotifier(n notify.Notifier) Option {
	return func(r *Router) { r.notifier = n }
}

// WithTranscriptHook registers h for browser-path transcripts.
func WithTranscriptHook(h TranscriptHook) Option {
	return func(r *Router) { r.hook = h }
}

// WithBreaker replaces the circuit breaker guarding the server path.
// Default: a breaker named "transcribe-audio" with default thresholds.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *Router) { r.breaker = cb }
}

// WithMetrics overrides the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithClock overrides the clock used to stamp persisted transcripts.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// Router dispatches chunks to the transcription path chosen by each caller's
// preference. It is safe for concurrent use.
type Router struct {
	prefs       PreferenceSource
	local       stt.Transcriber
	transcripts backend.Transcripts
	server      backend.AudioTranscriber

	notifier notify.Notifier
	hook     TranscriptHook
	breaker  *resilience.CircuitBreaker
	metrics  *observe.Metrics
	now      func() time.Time

	wg sync.WaitGroup
}

// New creates a Router. local and transcripts serve the browser path, server
// serves the server path. A nil collaborator turns its path into an error
// for every chunk routed to it.
func New(prefs PreferenceSource, local stt.Transcriber, transcripts backend.Transcripts, server backend.AudioTranscriber, opts ...Option) *Router {
	r := &Router{
		prefs:       prefs,
		local:       local,
		transcripts: transcripts,
		server:      server,
		notifier:    notify.Discard,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.breaker == nil {
		r.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "transcribe-audio"})
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// Handoff returns a [capture.Handoff] that routes every chunk on behalf of
// caller. It never returns an error.
func (r *Router) Handoff(caller backend.User) capture.Handoff {
	return func(ctx context.Context, chunk audio.Chunk, recent []audio.Chunk, meetingID string) error {
		r.Route(ctx, Request{Chunk: chunk, Recent: recent, MeetingID: meetingID, Caller: caller})
		return nil
	}
}

// Route processes req on a new goroutine and returns immediately. The task
// outlives ctx's cancellation but keeps its values.
func (r *Router) Route(ctx context.Context, req Request) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, req)
	}()
}

// Wait blocks until every routed chunk has finished. It is meant for
// shutdown and tests; routing continues to accept work while waiting.
func (r *Router) Wait() { r.wg.Wait() }

// run is the task boundary: every failure, including a panic, stops here.
func (r *Router) run(ctx context.Context, req Request) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "router.route", trace.WithAttributes(
		attribute.String("meeting_id", req.MeetingID),
		attribute.Int("chunk.seq", req.Chunk.Seq),
		attribute.Int("chunk.size", req.Chunk.Size()),
	))
	defer span.End()
	log := observe.Logger(ctx).With("meeting_id", req.MeetingID, "seq", req.Chunk.Seq)

	path := "unknown"
	outcome := OutcomeError
	defer func() {
		if p := recover(); p != nil {
			outcome = OutcomeRecovered
			span.SetStatus(codes.Error, "panic")
			log.Error("router: panic while routing chunk", "panic", p)
		}
		span.SetAttributes(attribute.String("path", path), attribute.String("outcome", outcome))
		r.metrics.RecordRoute(ctx, path, outcome)
		r.metrics.RouteDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("path", path)))
	}()

	pref, err := r.prefs.Preference(ctx, req.Caller.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("router: chunk not routed", "err", err)
		return
	}
	path = pref.String()

	switch pref {
	case PreferenceRealtime:
		outcome = OutcomeNoop
		return
	case PreferenceBrowser:
		outcome, err = r.browser(ctx, req)
	case PreferenceServer:
		outcome, err = r.serverPath(ctx, req)
	default:
		err = fmt.Errorf("router: unhandled preference %v", pref)
	}
	if err != nil {
		outcome = OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var perr *PersistError
		if errors.As(err, &perr) {
			log.Error("router: transcript not saved", "path", path, "err", err)
		} else {
			log.Warn("router: transcription failed", "path", path, "err", err)
		}
	}
}

// browser transcribes the newest buffered chunk locally and persists it.
func (r *Router) browser(ctx context.Context, req Request) (string, error) {
	latest := req.Chunk
	if n := len(req.Recent); n > 0 {
		latest = req.Recent[n-1]
	}
	if latest.Size() <= MinBrowserChunkBytes {
		r.metrics.RecordChunkDropped(ctx, "too_small")
		return OutcomeDropped, nil
	}
	if r.local == nil {
		return OutcomeError, errors.New("router: no local transcriber configured")
	}

	start := time.Now()
	t, err := r.local.Transcribe(ctx, latest)
	provider := t.Provider
	if provider == "" {
		provider = "local"
	}
	r.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", provider)))
	if err != nil {
		r.metrics.RecordProviderRequest(ctx, provider, "stt", "error")
		r.metrics.RecordProviderError(ctx, provider, "stt")
		return OutcomeError, fmt.Errorf("router: local transcribe: %w", err)
	}
	r.metrics.RecordProviderRequest(ctx, provider, "stt", "ok")

	text := strings.TrimSpace(t.Text)
	if text == "" {
		return OutcomeEmpty, nil
	}

	var perr error
	if r.transcripts == nil {
		perr = &PersistError{MeetingID: req.MeetingID, Err: errors.New("no transcript store configured")}
	} else if err := r.transcripts.SaveTranscription(ctx, backend.Transcription{
		MeetingID: req.MeetingID,
		Content:   text,
		Timestamp: r.now().UTC(),
		Speaker:   backend.SpeakerUnknown,
	}); err != nil {
		perr = &PersistError{MeetingID: req.MeetingID, Err: err}
	}

	if r.hook != nil {
		r.hook(ctx, req.MeetingID, text)
	}
	if perr != nil {
		return OutcomeError, perr
	}
	return OutcomeOK, nil
}

// serverPath uploads the chunk to the transcribe-audio function.
func (r *Router) serverPath(ctx context.Context, req Request) (string, error) {
	err := r.upload(ctx, req)
	if err == nil {
		return OutcomeOK, nil
	}
	if nerr := r.notifier.Notify(ctx, notify.Error("Transcription failed", "The latest audio segment could not be transcribed.")); nerr != nil {
		observe.Logger(ctx).Warn("router: failed to raise toast", "err", nerr)
	} else {
		r.metrics.RecordNotification(ctx, string(notify.LevelError))
	}
	return OutcomeError, err
}

func (r *Router) upload(ctx context.Context, req Request) error {
	if r.server == nil {
		return errors.New("router: no server transcriber configured")
	}
	encoded := base64.StdEncoding.EncodeToString(req.Chunk.Data)

	var res backend.TranscribeResult
	start := time.Now()
	err := r.breaker.Execute(func() error {
		var callErr error
		res, callErr = r.server.TranscribeAudio(ctx, encoded, req.MeetingID)
		return callErr
	})
	r.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", "transcribe-audio")))

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		r.metrics.RecordChunkDropped(ctx, "circuit_open")
		return fmt.Errorf("router: transcribe-audio: %w", err)
	case err != nil:
		r.metrics.RecordProviderRequest(ctx, "transcribe-audio", "stt", "error")
		r.metrics.RecordProviderError(ctx, "transcribe-audio", "stt")
		return fmt.Errorf("router: transcribe-audio: %w", err)
	}
	r.metrics.RecordProviderRequest(ctx, "transcribe-audio", "stt", "ok")
	observe.Logger(ctx).Info("router: server transcription complete",
		"meeting_id", req.MeetingID, "seq", req.Chunk.Seq, "chars", len(res.Text))
	return nil
}
