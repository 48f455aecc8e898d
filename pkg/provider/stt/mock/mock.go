// Package mock provides test doubles for the stt package interfaces.
//
// Use Transcriber to control what the code under test receives for each
// chunk and to inspect which chunks were submitted.
//
// Example:
//
//	tr := &mock.Transcriber{Result: stt.Transcript{Text: "stop recording"}}
//	router := router.New(prefs, tr, ...)
//	...
//	if tr.CallCount() != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Chunk is the chunk passed to Transcribe. Data is copied.
	Chunk audio.Chunk
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFunc is nil.
	Result stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFunc, if set, replaces the Result/Err behaviour.
	TranscribeFunc func(ctx context.Context, chunk audio.Chunk) (stt.Transcript, error)

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Result, Err.
func (t *Transcriber) Transcribe(ctx context.Context, chunk audio.Chunk) (stt.Transcript, error) {
	t.mu.Lock()
	cp := chunk
	cp.Data = append([]byte(nil), chunk.Data...)
	t.Calls = append(t.Calls, TranscribeCall{Ctx: ctx, Chunk: cp})
	fn, res, err := t.TranscribeFunc, t.Result, t.Err
	t.mu.Unlock()

	if fn != nil {
		return fn(ctx, chunk)
	}
	if err != nil {
		return stt.Transcript{}, err
	}
	return res, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}

// LastCall returns the most recent call and whether one exists. Thread-safe.
func (t *Transcriber) LastCall() (TranscribeCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Calls) == 0 {
		return TranscribeCall{}, false
	}
	return t.Calls[len(t.Calls)-1], true
}

// Reset clears all recorded calls. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Calls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
