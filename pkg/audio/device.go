// Package audio defines the capture device abstraction used by the meeting
// recorder.
//
// The two primary abstractions are:
//
//   - [Device]: grants access to a microphone and returns a [Stream].
//   - [Stream]: an acquired microphone that emits encoded [Chunk] values on a
//     fixed timeslice until it is released.
//
// Implementations live in adapter packages (audio/ffmpeg for a real
// microphone, audio/mock for tests). The interfaces are intentionally narrow
// so the capture session can be exercised without hardware.
package audio

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned by [Device.Acquire] when the operating
	// system or the user refused microphone access.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")

	// ErrNoDevice is returned by [Device.Acquire] when no usable input device
	// exists.
	ErrNoDevice = errors.New("audio: no input device available")
)

// Device is the entry point for microphone access.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Acquire opens the input described by c and starts chunked recording.
	// The returned [Stream] is already producing chunks.
	//
	// Errors should wrap [ErrPermissionDenied] or [ErrNoDevice] when the
	// failure is one of those cases so callers can tell users what happened.
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired microphone.
//
// Chunks are delivered strictly in recording order. All methods must be safe
// for concurrent use.
type Stream interface {
	// Chunks returns the channel on which sealed chunks are delivered. The
	// channel is closed after Release or when the device fails.
	Chunks() <-chan Chunk

	// Pause suspends chunk production. Audio captured while paused is
	// discarded at the source: once Pause returns, no chunk sealed from
	// paused audio is sent on Chunks. A chunk sealed just before the pause
	// may still be in flight.
	Pause()

	// Resume continues chunk production after Pause.
	Resume()

	// Release stops recording and frees the device. Calling Release more than
	// once is safe and returns nil.
	Release() error
}
