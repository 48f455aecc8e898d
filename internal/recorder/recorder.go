// Package recorder drives a meeting recording from the user's point of view.
//
// A [Controller] composes a [capture.Session] with the transcription router:
// it turns the meeting handle into a storage id, resolves the signed-in user
// once per recording and tells the user what happened through a
// [notify.Notifier]. It also answers the recording voice commands so that
// "stop recording" spoken into the microphone ends the recording.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/boardroom/internal/backend"
	"github.com/MrWong99/boardroom/internal/capture"
	"github.com/MrWong99/boardroom/internal/notify"
	"github.com/MrWong99/boardroom/internal/voicecmd"
	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/meetingid"
)

// ErrNoMeeting is returned by [Controller.Start] for a blank meeting handle
// and by the start-recording voice command before any meeting was recorded.
var ErrNoMeeting = errors.New("recorder: no meeting handle")

// Toast titles shown to the user.
const (
	TitleStarted      = "Recording started"
	TitleStopped      = "Recording stopped"
	TitleCaptureError = "Microphone access failed"
)

// Handoffs builds the per-chunk hand-off for a recording made by caller.
// [router.Router] implements it.
type Handoffs interface {
	Handoff(caller backend.User) capture.Handoff
}

// Option is a functional option for [New].
type Option func(*Controller)

// WithNotifier sets where toasts go. Default: [notify.Discard].
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithCaptureOptions forwards options to the underlying [capture.Session].
func WithCaptureOptions(opts ...capture.Option) Option {
	return func(c *Controller) { c.captureOpts = append(c.captureOpts, opts...) }
}

// Controller is the recording lifecycle for one microphone. All methods are
// safe for concurrent use.
type Controller struct {
	users       backend.Users
	handoffs    Handoffs
	notifier    notify.Notifier
	captureOpts []capture.Option
	session     *capture.Session

	// handoff is swapped on every Start and read by the capture pump.
	handoff atomic.Pointer[capture.Handoff]

	mu         sync.Mutex
	lastHandle string
	caller     backend.User
}

// New creates an idle Controller recording from device.
func New(device audio.Device, users backend.Users, handoffs Handoffs, opts ...Option) *Controller {
	c := &Controller{
		users:    users,
		handoffs: handoffs,
		notifier: notify.Discard,
	}
	for _, o := range opts {
		o(c)
	}
	c.session = capture.New(device, c.deliver, c.captureOpts...)
	return c
}

func (c *Controller) deliver(ctx context.Context, chunk audio.Chunk, recent []audio.Chunk, meetingID string) error {
	h := c.handoff.Load()
	if h == nil || *h == nil {
		return nil
	}
	return (*h)(ctx, chunk, recent, meetingID)
}

// Start begins recording the meeting identified by handle. Human-readable
// handles are normalised with [meetingid.Normalize]. Start while a recording
// is active is a no-op.
//
// When the microphone cannot be acquired the user is told and the
// [*capture.Error] is returned.
func (c *Controller) Start(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ErrNoMeeting
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State() != capture.StateIdle {
		return nil
	}

	c.caller = backend.User{}
	caller := c.currentUser(ctx)
	h := c.handoffs.Handoff(caller)
	c.handoff.Store(&h)

	id := meetingid.Normalize(handle)
	if err := c.session.Start(ctx, id); err != nil {
		c.toast(ctx, notify.Error(TitleCaptureError, captureErrorDescription(err)))
		return fmt.Errorf("recorder: start %q: %w", handle, err)
	}

	c.lastHandle = handle
	c.caller = caller
	slog.Info("recorder: started", "meeting", handle, "meeting_id", id, "user_id", caller.ID)
	c.toast(ctx, notify.Success(TitleStarted, "Your meeting is being recorded and transcribed."))
	return nil
}

// currentUser resolves the signed-in user. A lookup failure is logged and the
// recording proceeds anonymously, which makes the router fall back to the
// default transcription preference.
func (c *Controller) currentUser(ctx context.Context) backend.User {
	if c.users == nil {
		return backend.User{}
	}
	u, ok, err := c.users.CurrentUser(ctx)
	if err != nil {
		slog.Warn("recorder: current user lookup failed", "err", err)
		return backend.User{}
	}
	if !ok {
		return backend.User{}
	}
	return u
}

func captureErrorDescription(err error) string {
	var cerr *capture.Error
	if !errors.As(err, &cerr) {
		return "The microphone could not be started."
	}
	switch cerr.Kind {
	case capture.KindPermissionDenied:
		return "Please allow microphone access to record the meeting."
	case capture.KindNoDevice:
		return "No microphone was found."
	default:
		return "The microphone could not be started."
	}
}

// Stop ends the recording and releases the microphone. Chunks already handed
// to the router still finish. Stop while idle is a no-op.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.State() == capture.StateIdle {
		return
	}
	c.session.Stop()
	c.caller = backend.User{}
	c.toast(ctx, notify.Info(TitleStopped, "The last segment may take a few seconds to appear."))
}

// Pause suspends the recording without releasing the microphone.
func (c *Controller) Pause() { c.session.Pause() }

// Resume continues a paused recording.
func (c *Controller) Resume() { c.session.Resume() }

// State returns the capture state.
func (c *Controller) State() capture.State { return c.session.State() }

// Caller returns the user the active recording belongs to. It is the zero
// User when idle or anonymous, including after the device went away.
func (c *Controller) Caller() backend.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State() == capture.StateIdle {
		c.caller = backend.User{}
	}
	return c.caller
}

// MeetingID returns the normalised id being recorded, or "" when idle.
func (c *Controller) MeetingID() string { return c.session.MeetingID() }

// Done returns a channel closed when the current recording's capture pump
// exits, including when the device goes away.
func (c *Controller) Done() <-chan struct{} { return c.session.Done() }

// Close stops any recording without a toast and rejects further starts.
func (c *Controller) Close() { c.session.Close() }

// Handle implements [voicecmd.Handler] for the recording commands. Every
// other match is declined with [voicecmd.ErrNotHandled]. Start resumes the
// most recently recorded meeting.
func (c *Controller) Handle(ctx context.Context, m voicecmd.Match) error {
	if m.Kind != voicecmd.KindCommand || m.Command.Category != voicecmd.CategoryRecording {
		return voicecmd.ErrNotHandled
	}
	switch m.Command.Action {
	case voicecmd.ActionStartRecording:
		c.mu.Lock()
		handle := c.lastHandle
		c.mu.Unlock()
		if handle == "" {
			return ErrNoMeeting
		}
		return c.Start(ctx, handle)
	case voicecmd.ActionStopRecording:
		c.Stop(ctx)
	case voicecmd.ActionPauseRecording:
		c.Pause()
	case voicecmd.ActionResumeRecording:
		c.Resume()
	default:
		return voicecmd.ErrNotHandled
	}
	return nil
}

func (c *Controller) toast(ctx context.Context, t notify.Toast) {
	if err := c.notifier.Notify(ctx, t); err != nil {
		slog.Warn("recorder: notify failed", "title", t.Title, "err", err)
	}
}

var _ voicecmd.Handler = (*Controller)(nil)
