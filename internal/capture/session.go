// Package capture owns the microphone and turns it into a sequence of
// encoded audio chunks for the transcription router.
//
// A [Session] moves between three states: idle, recording and paused. While
// recording, one pump goroutine reads the device stream, keeps the most
// recent [BufferSize] chunks in a ring buffer and hands every chunk to the
// configured [Handoff] together with a snapshot of that buffer. Chunks that
// arrive while paused are dropped: the device discards paused audio itself,
// and the pump drops any chunk that was already in flight when the pause
// began.
//
// The hand-off is called synchronously on the pump goroutine and must not
// block; the router satisfies this by dispatching each chunk to its own
// goroutine. A hand-off that returns an error or panics is logged and
// capture continues with the next chunk.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/pkg/audio"
)

// BufferSize is the number of most recent chunks a session retains.
const BufferSize = 6

// Handoff receives each captured chunk. recent is a snapshot of the ring
// buffer, oldest first, and always ends with chunk.
type Handoff func(ctx context.Context, chunk audio.Chunk, recent []audio.Chunk, meetingID string) error

// ErrClosed is returned by [Session.Start] after [Session.Close].
var ErrClosed = errors.New("capture: session closed")

// State is the lifecycle state of a [Session].
type State int

const (
	// StateIdle means no device is held.
	StateIdle State = iota
	// StateRecording means the device is held and chunks are handed off.
	StateRecording
	// StatePaused means the device is held but chunks are dropped.
	StatePaused
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrorKind classifies a failure to acquire the microphone.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindNoDevice         ErrorKind = "no_device"
	KindUnavailable      ErrorKind = "unavailable"
)

// Error is returned by [Session.Start] when the device cannot be acquired.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(err error) *Error {
	kind := KindUnavailable
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		kind = KindPermissionDenied
	case errors.Is(err, audio.ErrNoDevice):
		kind = KindNoDevice
	}
	return &Error{Kind: kind, Err: err}
}

// Option is a functional option for [Session].
type Option func(*Session)

// WithConstraints overrides [audio.DefaultConstraints].
func WithConstraints(c audio.Constraints) Option {
	return func(s *Session) { s.constraints = c }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is a single microphone recording. The zero value is not usable;
// construct with [New]. All methods are safe for concurrent use.
type Session struct {
	device      audio.Device
	handoff     Handoff
	constraints audio.Constraints
	metrics     *observe.Metrics

	mu        sync.Mutex
	state     State
	closed    bool
	meetingID string
	stream    audio.Stream
	ctx       context.Context
	buf       []audio.Chunk
	gen       uint64
	pumpDone  chan struct{}
}

// New creates an idle Session that acquires audio from device and passes
// every chunk to handoff.
func New(device audio.Device, handoff Handoff, opts ...Option) *Session {
	s := &Session{
		device:      device,
		handoff:     handoff,
		constraints: audio.DefaultConstraints(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Start acquires the device and begins recording for meetingID. Start on a
// session that is already recording or paused is a no-op. On failure the
// session stays idle and the returned error is an [*Error].
//
// Cancelling ctx aborts the acquisition; it does not end the recording once
// Start has returned.
func (s *Session) Start(ctx context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateIdle {
		return nil
	}

	stream, err := s.device.Acquire(ctx, s.constraints)
	if err != nil {
		return newError(err)
	}

	s.gen++
	s.state = StateRecording
	s.meetingID = meetingID
	s.stream = stream
	s.ctx = context.WithoutCancel(ctx)
	s.buf = make([]audio.Chunk, 0, BufferSize)
	s.pumpDone = make(chan struct{})
	s.metrics.ActiveRecordings.Add(ctx, 1)

	go s.pump(s.gen, stream, s.pumpDone)

	slog.Info("capture: recording started", "meeting_id", meetingID)
	return nil
}

// Stop releases the device and returns the session to idle. Work already
// handed off is not cancelled. Stop on an idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	stream, meetingID, ok := s.teardownLocked()
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := stream.Release(); err != nil {
		slog.Warn("capture: release stream failed", "meeting_id", meetingID, "err", err)
	}
	slog.Info("capture: recording stopped", "meeting_id", meetingID)
}

// teardownLocked resets the session to idle. The caller must hold s.mu and
// release the returned stream after unlocking.
func (s *Session) teardownLocked() (audio.Stream, string, bool) {
	if s.state == StateIdle {
		return nil, "", false
	}
	stream, meetingID := s.stream, s.meetingID
	s.gen++
	s.state = StateIdle
	s.stream = nil
	s.meetingID = ""
	s.buf = nil
	s.metrics.ActiveRecordings.Add(context.Background(), -1)
	return stream, meetingID, true
}

// Pause stops handing off chunks until [Session.Resume]. It is a no-op unless
// the session is recording.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording {
		return
	}
	s.state = StatePaused
	s.stream.Pause()
	slog.Debug("capture: paused", "meeting_id", s.meetingID)
}

// Resume continues a paused recording. It is a no-op unless the session is
// paused.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return
	}
	s.state = StateRecording
	s.stream.Resume()
	slog.Debug("capture: resumed", "meeting_id", s.meetingID)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MeetingID returns the meeting being recorded, or "" when idle.
func (s *Session) MeetingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetingID
}

// Recent returns a copy of the buffered chunks, oldest first.
func (s *Session) Recent() []audio.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.Chunk, len(s.buf))
	copy(out, s.buf)
	return out
}

// Close stops any active recording and makes further Start calls fail with
// [ErrClosed]. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Stop()
}

// Done returns a channel that is closed when the pump goroutine of the
// current or most recent recording has exited. It returns nil if Start has
// never succeeded.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpDone
}

func (s *Session) pump(gen uint64, stream audio.Stream, done chan struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		s.deliver(gen, chunk)
	}

	// The stream closed on its own: the device went away mid-recording.
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	_, meetingID, _ := s.teardownLocked()
	s.mu.Unlock()

	slog.Warn("capture: device stream ended unexpectedly", "meeting_id", meetingID)
	if err := stream.Release(); err != nil {
		slog.Warn("capture: release stream failed", "meeting_id", meetingID, "err", err)
	}
}

func (s *Session) deliver(gen uint64, chunk audio.Chunk) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if s.state == StatePaused {
		s.mu.Unlock()
		s.metrics.RecordChunkDropped(context.Background(), "paused")
		return
	}

	if len(s.buf) == BufferSize {
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:BufferSize-1]
	}
	s.buf = append(s.buf, chunk)

	recent := make([]audio.Chunk, len(s.buf))
	copy(recent, s.buf)
	ctx, meetingID := s.ctx, s.meetingID
	s.mu.Unlock()

	s.metrics.RecordChunkCaptured(ctx, chunk.Size())
	s.callHandoff(ctx, chunk, recent, meetingID)
}

func (s *Session) callHandoff(ctx context.Context, chunk audio.Chunk, recent []audio.Chunk, meetingID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("capture: hand-off panicked", "meeting_id", meetingID, "seq", chunk.Seq, "panic", r)
		}
	}()
	if s.handoff == nil {
		return
	}
	if err := s.handoff(ctx, chunk, recent, meetingID); err != nil {
		slog.Warn("capture: hand-off failed", "meeting_id", meetingID, "seq", chunk.Seq, "err", err)
	}
}
