// Package mock provides in-memory mock implementations of the [audio.Device]
// and [audio.Stream] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	dev := &mock.Device{}
//	sess.Start(ctx, meetingID)     // acquires dev.Stream()
//	dev.Stream().EmitSize(16_384)  // pushes a synthetic chunk
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/boardroom/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream]. Chunks are only produced
// when the test calls [Stream.Emit]; there is no wall-clock timer, so a test
// advances the "recording" one timeslice per Emit call.
type Stream struct {
	mu sync.Mutex

	ch       chan audio.Chunk
	released bool
	paused   bool
	seq      int
	clock    time.Time

	// Timeslice is the virtual time added to the chunk clock per Emit.
	Timeslice time.Duration

	// ReleaseError is returned by [Stream.Release].
	ReleaseError error

	// CallCountPause records how many times Pause was called.
	CallCountPause int

	// CallCountResume records how many times Resume was called.
	CallCountResume int

	// CallCountRelease records how many times Release was called.
	CallCountRelease int
}

// NewStream returns a Stream with a buffered chunk channel of the given
// capacity. A capacity of 0 selects 16.
func NewStream(capacity int) *Stream {
	if capacity <= 0 {
		capacity = 16
	}
	return &Stream{
		ch:        make(chan audio.Chunk, capacity),
		Timeslice: audio.DefaultTimeslice,
		clock:     time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

// Chunks implements [audio.Stream].
func (s *Stream) Chunks() <-chan audio.Chunk { return s.ch }

// Pause implements [audio.Stream].
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountPause++
	s.paused = true
}

// Resume implements [audio.Stream].
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountResume++
	s.paused = false
}

// Release implements [audio.Stream]. The chunk channel is closed on the first
// call.
func (s *Stream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountRelease++
	if !s.released {
		s.released = true
		close(s.ch)
	}
	return s.ReleaseError
}

// Released reports whether Release has been called.
func (s *Stream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Paused reports whether the stream is currently paused.
func (s *Stream) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Emit delivers a chunk carrying data and advances the virtual clock by one
// timeslice. While paused the audio is discarded the way a real device
// discards it: the clock advances, no chunk is sent and Emit returns false.
// Emit after Release is a no-op and returns false.
func (s *Stream) Emit(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.clock = s.clock.Add(s.Timeslice)
	if s.paused {
		return false
	}
	s.sendLocked(data)
	return true
}

// EmitInFlight sends a chunk even while paused. It stands for a chunk that
// was sealed just before Pause and is still waiting in the channel, which a
// consumer has to drop itself. Returns false after Release.
func (s *Stream) EmitInFlight(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.clock = s.clock.Add(s.Timeslice)
	s.sendLocked(data)
	return true
}

func (s *Stream) sendLocked(data []byte) {
	c := audio.Chunk{
		Data:       data,
		MimeType:   audio.MimeTypeWebMOpus,
		Seq:        s.seq,
		CapturedAt: s.clock,
	}
	s.seq++
	s.ch <- c
}

// EmitSize emits a synthetic chunk of n bytes.
func (s *Stream) EmitSize(n int) bool {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return s.Emit(data)
}

// Fail closes the chunk channel without a Release call, simulating a device
// that disappears mid-recording.
func (s *Stream) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.released {
		s.released = true
		close(s.ch)
	}
}

// ─── Device ───────────────────────────────────────────────────────────────────

// AcquireCall records the arguments of a single [Device.Acquire] invocation.
type AcquireCall struct {
	// Constraints is the constraints argument passed to Acquire.
	Constraints audio.Constraints
}

// Device is a mock implementation of [audio.Device].
type Device struct {
	mu sync.Mutex

	// AcquireError is the error returned by Acquire. When set no stream is
	// created.
	AcquireError error

	// AcquireCalls records all Acquire invocations.
	AcquireCalls []AcquireCall

	streams []*Stream
}

// Acquire implements [audio.Device]. Each successful call creates a fresh
// [Stream]; the most recent one is available via [Device.Stream].
func (d *Device) Acquire(_ context.Context, c audio.Constraints) (audio.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AcquireCalls = append(d.AcquireCalls, AcquireCall{Constraints: c})
	if d.AcquireError != nil {
		return nil, d.AcquireError
	}
	s := NewStream(0)
	if c.Timeslice > 0 {
		s.Timeslice = c.Timeslice
	}
	d.streams = append(d.streams, s)
	return s, nil
}

// Stream returns the stream created by the most recent successful Acquire,
// or nil if none exists.
func (d *Device) Stream() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// Streams returns every stream created so far, in creation order.
func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Stream, len(d.streams))
	copy(out, d.streams)
	return out
}

// Compile-time interface assertions.
var (
	_ audio.Device = (*Device)(nil)
	_ audio.Stream = (*Stream)(nil)
)
