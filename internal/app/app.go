// Package app wires all boardroom subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// backend, transcribers, router and notification hub, Handler exposes the
// HTTP surface of `boardroom serve`, Recorder builds the microphone
// controller for `boardroom record`, and Shutdown tears everything down in
// order.
//
// For testing, inject mock implementations via functional options
// (WithBackend, WithDevice, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/MrWong99/boardroom/internal/backend"
	"github.com/MrWong99/boardroom/internal/backend/supabase"
	"github.com/MrWong99/boardroom/internal/capture"
	"github.com/MrWong99/boardroom/internal/config"
	"github.com/MrWong99/boardroom/internal/health"
	"github.com/MrWong99/boardroom/internal/notify"
	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/internal/recorder"
	"github.com/MrWong99/boardroom/internal/resilience"
	"github.com/MrWong99/boardroom/internal/router"
	"github.com/MrWong99/boardroom/internal/transcribefn"
	"github.com/MrWong99/boardroom/internal/voicecmd"
	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/meetingid"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
	"github.com/MrWong99/boardroom/pkg/store/postgres"
	"github.com/MrWong99/boardroom/pkg/store/sqlite"
)

// Backend is the full set of collaborators a backend provides.
type Backend interface {
	backend.Users
	backend.Preferences
	backend.Transcripts
	backend.TranscriptLister
}

// App owns all subsystem lifetimes.
type App struct {
	cfg      *config.Config
	reg      *config.Registry
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	backend     Backend
	server      backend.AudioTranscriber
	checkers    []health.Checker
	local       stt.Transcriber
	preferences *router.Preferences
	hub         *notify.Hub
	notifier    notify.Notifier
	router      *router.Router
	filter      *voicecmd.Filter
	function    *transcribefn.Service
	device      audio.Device
	attendees   []string

	mu       sync.Mutex
	recorder *recorder.Controller

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects the backend instead of creating one from config. If b
// also implements [backend.AudioTranscriber] it serves the router's server
// path, and if it implements [backend.Pinger] it is a readiness check.
func WithBackend(b Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithDevice injects the capture device instead of creating one from config.
func WithDevice(d audio.Device) Option {
	return func(a *App) { a.device = d }
}

// WithLocalTranscriber injects the browser-path transcriber.
func WithLocalTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.local = t }
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads change the level of the process logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithAttendees resolves spoken assignment names against the meeting's
// participants.
func WithAttendees(names ...string) Option {
	return func(a *App) { a.attendees = append(a.attendees, names...) }
}

// WithExtraNotifier adds a notifier that receives every toast alongside the
// log and the WebSocket hub.
func WithExtraNotifier(n notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. reg supplies the
// transcriber and capture device factories. Use Option functions to inject
// test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		cfg: cfg,
		reg: reg,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Backend ───────────────────────────────────────────────────────
	if err := a.initBackend(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init backend: %w", err)
	}

	// ── 2. transcribe-audio function ─────────────────────────────────────
	if err := a.initFunction(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init functions: %w", err)
	}

	// ── 3. Local transcriber ─────────────────────────────────────────────
	a.initLocal()

	// ── 4. Notifications ─────────────────────────────────────────────────
	a.hub = notify.NewHub(
		notify.WithOriginPatterns(cfg.Server.AllowedOrigins...),
		notify.WithHubMetrics(a.metrics),
	)
	a.notifier = notify.Multi{notify.Log{}, a.hub, a.notifier}

	// ── 5. Router + voice commands ───────────────────────────────────────
	def, ok := router.ParsePreference(cfg.Transcription.DefaultProvider)
	if !ok {
		def = router.PreferenceRealtime
	}
	a.preferences = router.NewPreferences(a.backend, def, cfg.Transcription.PreferenceTTL)
	filterOpts := []voicecmd.FilterOption{voicecmd.WithFilterMetrics(a.metrics)}
	if len(a.attendees) > 0 {
		filterOpts = append(filterOpts, voicecmd.WithRoster(voicecmd.NewRoster(a.attendees)))
	}
	a.filter = voicecmd.NewFilter(voicecmd.HandlerFunc(a.handleMatch), filterOpts...)
	a.router = router.New(a.preferences, a.local, a.backend, a.server,
		router.WithNotifier(a.notifier),
		router.WithMetrics(a.metrics),
		router.WithTranscriptHook(a.filter.Hook()),
	)

	slog.Info("app initialised",
		"backend", cfg.Backend.Kind,
		"default_provider", def,
		"function", a.function != nil,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initBackend opens the configured backend unless one was injected.
func (a *App) initBackend(ctx context.Context) error {
	if a.backend == nil {
		b, closer, err := openBackend(ctx, a.cfg.Backend)
		if err != nil {
			return err
		}
		a.backend = b
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	if p, ok := a.backend.(backend.Pinger); ok {
		a.checkers = append(a.checkers, health.Ping("backend", p))
	}
	if s, ok := a.backend.(backend.AudioTranscriber); ok {
		a.server = s
	}
	return nil
}

// openBackend builds the backend selected by cfg.Kind.
func openBackend(ctx context.Context, cfg config.BackendConfig) (Backend, func() error, error) {
	user := backend.StaticUser{ID: cfg.UserID, Email: cfg.UserEmail}

	switch cfg.Kind {
	case config.BackendSupabase:
		var opts []supabase.Option
		if cfg.AccessToken != "" {
			opts = append(opts, supabase.WithAccessToken(cfg.AccessToken))
		}
		c, err := supabase.New(cfg.URL, cfg.AnonKey, opts...)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil

	case config.BackendPostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return dbBackend{StaticUser: user, store: s}, func() error { s.Close(); return nil }, nil

	case config.BackendSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = config.DefaultSQLitePath
		}
		s, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return dbBackend{StaticUser: user, store: s}, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// store is what the postgres and sqlite stores have in common.
type store interface {
	backend.Preferences
	backend.Transcripts
	backend.TranscriptLister
	backend.Pinger
	SetTranscriptionPreference(ctx context.Context, userID, provider string) error
}

// dbBackend pairs a database store with the configured static user.
type dbBackend struct {
	backend.StaticUser
	store store
}

func (d dbBackend) TranscriptionPreference(ctx context.Context, userID string) (string, error) {
	return d.store.TranscriptionPreference(ctx, userID)
}

func (d dbBackend) SaveTranscription(ctx context.Context, t backend.Transcription) error {
	return d.store.SaveTranscription(ctx, t)
}

func (d dbBackend) ListTranscriptions(ctx context.Context, meetingID string) ([]backend.Transcription, error) {
	return d.store.ListTranscriptions(ctx, meetingID)
}

func (d dbBackend) Ping(ctx context.Context) error { return d.store.Ping(ctx) }

func (d dbBackend) SetTranscriptionPreference(ctx context.Context, userID, provider string) error {
	return d.store.SetTranscriptionPreference(ctx, userID, provider)
}

// PreferenceWriter is implemented by backends that store preferences locally.
type PreferenceWriter interface {
	SetTranscriptionPreference(ctx context.Context, userID, provider string) error
}

// ErrReadOnlyPreferences is returned by [App.SetPreference] when the backend
// keeps preferences out of reach, as the hosted backend does.
var ErrReadOnlyPreferences = errors.New("app: backend does not store preferences")

// initFunction builds the transcribe-audio service from the configured
// transcribers. A database backend has no remote function, so the router's
// server path calls the service in-process.
func (a *App) initFunction() error {
	entries := a.cfg.Functions.Transcribers
	if len(entries) == 0 {
		return nil
	}

	var fallback *resilience.TranscriberFallback
	for i, e := range entries {
		t, err := a.reg.CreateTranscriber(e)
		if err != nil {
			return fmt.Errorf("transcriber %d (%s): %w", i, e.Name, err)
		}
		if c, ok := t.(interface{ Close() error }); ok {
			a.closers = append(a.closers, c.Close)
		}
		name := entryName(e)
		if fallback == nil {
			fallback = resilience.NewTranscriberFallback(t, name, resilience.FallbackConfig{})
		} else {
			fallback.AddFallback(name, t)
		}
	}

	a.function = transcribefn.New(fallback, a.backend,
		transcribefn.WithMaxAudioBytes(a.cfg.Functions.MaxAudioBytes),
		transcribefn.WithMetrics(a.metrics),
	)
	if a.server == nil {
		a.server = a.function
	}
	slog.Info("transcribe-audio function ready", "transcribers", fallback.Names())
	return nil
}

func entryName(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// initLocal creates the browser-path transcriber unless one was injected. A
// transcriber that cannot be created only disables that path.
func (a *App) initLocal() {
	if a.local != nil {
		return
	}
	t, err := a.reg.CreateTranscriber(a.cfg.Transcription.Local)
	if err != nil {
		slog.Warn("local transcriber unavailable; browser preference will drop chunks",
			"name", a.cfg.Transcription.Local.Name, "err", err)
		return
	}
	if c, ok := t.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	a.local = t
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Router returns the transcription router.
func (a *App) Router() *router.Router { return a.router }

// Filter returns the voice command filter fed by transcribed text.
func (a *App) Filter() *voicecmd.Filter { return a.filter }

// Notifier returns the notifier every subsystem reports to.
func (a *App) Notifier() notify.Notifier { return a.notifier }

// Handler returns the HTTP surface of `boardroom serve`:
//
//	GET  /healthz, /readyz           liveness and readiness
//	GET  /metrics                    Prometheus metrics
//	GET  /ws/notifications           toast WebSocket
//	POST /functions/v1/transcribe-audio  when functions are configured
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	health.New(a.checkers...).Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	mux.Handle("GET /ws/notifications", a.hub)
	if a.function != nil {
		a.function.Register(mux)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Recorder returns the recording controller, creating it and the capture
// device on first use.
func (a *App) Recorder() (*recorder.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.recorder != nil {
		return a.recorder, nil
	}
	if a.device == nil {
		d, err := a.reg.CreateDevice(a.cfg.Capture)
		if err != nil {
			return nil, fmt.Errorf("app: create capture device: %w", err)
		}
		a.device = d
	}
	a.recorder = recorder.New(a.device, a.backend, a.router,
		recorder.WithNotifier(a.notifier),
		recorder.WithCaptureOptions(capture.WithMetrics(a.metrics)),
	)
	return a.recorder, nil
}

// handleMatch dispatches voice commands to the recorder. Commands without a
// consumer are declined.
func (a *App) handleMatch(ctx context.Context, m voicecmd.Match) error {
	a.mu.Lock()
	rec := a.recorder
	a.mu.Unlock()
	if rec == nil {
		return voicecmd.ErrNotHandled
	}
	return rec.Handle(ctx, m)
}

// Transcriptions lists the stored transcriptions of a meeting. handle may be
// a UUID or a human-readable meeting name.
func (a *App) Transcriptions(ctx context.Context, handle string) ([]backend.Transcription, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, errors.New("app: meeting handle is required")
	}
	return a.backend.ListTranscriptions(ctx, meetingid.Normalize(handle))
}

// SetPreference stores the transcription preference of the current user. An
// unknown provider is rejected before the backend is touched.
func (a *App) SetPreference(ctx context.Context, provider string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if _, ok := router.ParsePreference(provider); !ok {
		return fmt.Errorf("app: unknown transcription provider %q", provider)
	}
	w, ok := a.backend.(PreferenceWriter)
	if !ok {
		return ErrReadOnlyPreferences
	}
	u, ok, err := a.backend.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("app: current user: %w", err)
	}
	if !ok {
		return errors.New("app: no current user")
	}
	if err := w.SetTranscriptionPreference(ctx, u.ID, provider); err != nil {
		return fmt.Errorf("app: set preference: %w", err)
	}
	a.preferences.Invalidate(u.ID)
	return nil
}

// ApplyConfig applies the live-reloadable parts of a config change and logs
// the sections that need a restart.
func (a *App) ApplyConfig(old, cur *config.Config) {
	d := config.Diff(old, cur)
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(LevelFor(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DefaultProviderChanged {
		if p, ok := router.ParsePreference(d.NewDefaultProvider); ok {
			a.preferences.SetDefault(p)
			slog.Info("default transcription provider changed", "provider", p)
		}
	}
	if len(d.Restart) > 0 {
		slog.Warn("config sections changed that require a restart", "sections", d.Restart)
	}
}

// LevelFor maps a config log level to its slog level.
func LevelFor(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops any recording, waits for routed chunks to finish, closes
// the notification hub and then runs the closers. It respects the context
// deadline: if ctx expires first, the remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.mu.Lock()
		rec := a.recorder
		a.mu.Unlock()
		if rec != nil {
			rec.Close()
		}

		drained := make(chan struct{})
		go func() {
			a.router.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded while draining routed chunks")
			shutdownErr = ctx.Err()
			return
		}
		a.hub.Close()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers collected by a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("closer error", "err", err)
		}
	}
}
