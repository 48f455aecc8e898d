// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A Transcriber wraps a batch transcription engine (a local whisper.cpp
// server, the whisper.cpp library itself, or a hosted API such as OpenAI's
// audio transcriptions endpoint) and turns one encoded [audio.Chunk] into
// text. Chunks arrive every few seconds from the capture session, so there is
// no streaming session: each call is independent and carries its own
// deadline through ctx.
//
// Implementations must be safe for concurrent use. The router transcribes
// chunks of one recording in parallel and makes no ordering guarantees.
package stt

import (
	"context"

	"github.com/MrWong99/boardroom/pkg/audio"
)

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe converts the encoded audio in chunk to text. An empty
	// Transcript.Text with a nil error means the engine heard nothing worth
	// keeping; callers decide whether that is worth persisting.
	//
	// Returns an error if the backend is unreachable, rejects the audio, or
	// ctx is cancelled before a result is available.
	Transcribe(ctx context.Context, chunk audio.Chunk) (Transcript, error)
}

// TranscriberFunc adapts an ordinary function to the [Transcriber] interface.
type TranscriberFunc func(ctx context.Context, chunk audio.Chunk) (Transcript, error)

// Transcribe calls f(ctx, chunk).
func (f TranscriberFunc) Transcribe(ctx context.Context, chunk audio.Chunk) (Transcript, error) {
	return f(ctx, chunk)
}
