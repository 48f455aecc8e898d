// Package mock provides in-memory test doubles for the backend interfaces.
//
// [Backend] implements every interface in the backend package. It records
// each call and exposes exported fields that control what it returns. It is
// safe for concurrent use, which matters because the router calls it from
// background tasks.
//
// Typical usage:
//
//	b := &mock.Backend{Preference: "browser"}
//	r := router.New(b, b, b, ...)
//	r.Route(ctx, req)
//	r.Wait()
//	if got := b.CallCount("SaveTranscription"); got != 1 { ... }
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/boardroom/internal/backend"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Backend is a configurable test double for all backend interfaces.
type Backend struct {
	mu    sync.Mutex
	calls []Call
	saved []backend.Transcription

	// ─── Users ───

	// User is returned by CurrentUser. An empty ID reports no session.
	User backend.User
	// CurrentUserErr is returned by CurrentUser when non-nil.
	CurrentUserErr error

	// ─── Preferences ───

	// Preference is returned by TranscriptionPreference.
	Preference string
	// PreferenceErr is returned by TranscriptionPreference when non-nil.
	PreferenceErr error

	// ─── Transcripts ───

	// SaveErr is returned by SaveTranscription when non-nil. Failed saves
	// are not stored.
	SaveErr error
	// ListErr is returned by ListTranscriptions when non-nil.
	ListErr error

	// ─── AudioTranscriber ───

	// TranscribeResult is returned by TranscribeAudio.
	TranscribeResult backend.TranscribeResult
	// TranscribeErr is returned by TranscribeAudio when non-nil.
	TranscribeErr error

	// ─── Pinger ───

	// PingErr is returned by Ping when non-nil.
	PingErr error
}

var (
	_ backend.Users            = (*Backend)(nil)
	_ backend.Preferences      = (*Backend)(nil)
	_ backend.Transcripts      = (*Backend)(nil)
	_ backend.TranscriptLister = (*Backend)(nil)
	_ backend.AudioTranscriber = (*Backend)(nil)
	_ backend.Pinger           = (*Backend)(nil)
)

func (b *Backend) record(method string, args ...any) {
	b.calls = append(b.calls, Call{Method: method, Args: args})
}

// CurrentUser implements [backend.Users].
func (b *Backend) CurrentUser(_ context.Context) (backend.User, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CurrentUser")
	if b.CurrentUserErr != nil {
		return backend.User{}, false, b.CurrentUserErr
	}
	return b.User, b.User.ID != "", nil
}

// TranscriptionPreference implements [backend.Preferences].
func (b *Backend) TranscriptionPreference(_ context.Context, userID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("TranscriptionPreference", userID)
	if b.PreferenceErr != nil {
		return "", b.PreferenceErr
	}
	return b.Preference, nil
}

// SaveTranscription implements [backend.Transcripts].
func (b *Backend) SaveTranscription(_ context.Context, t backend.Transcription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("SaveTranscription", t)
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.saved = append(b.saved, t)
	return nil
}

// ListTranscriptions implements [backend.TranscriptLister] over the
// successfully saved transcriptions.
func (b *Backend) ListTranscriptions(_ context.Context, meetingID string) ([]backend.Transcription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListTranscriptions", meetingID)
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	out := []backend.Transcription{}
	for _, t := range b.saved {
		if t.MeetingID == meetingID {
			out = append(out, t)
		}
	}
	return out, nil
}

// TranscribeAudio implements [backend.AudioTranscriber].
func (b *Backend) TranscribeAudio(_ context.Context, audioBase64, meetingID string) (backend.TranscribeResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("TranscribeAudio", audioBase64, meetingID)
	if b.TranscribeErr != nil {
		return backend.TranscribeResult{}, b.TranscribeErr
	}
	return b.TranscribeResult, nil
}

// Ping implements [backend.Pinger].
func (b *Backend) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("Ping")
	return b.PingErr
}

// Saved returns a copy of every successfully saved transcription.
func (b *Backend) Saved() []backend.Transcription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.saved)
}

// Calls returns a copy of all recorded method invocations.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

// CallsTo returns the recorded invocations of method, in order.
func (b *Backend) CallsTo(method string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns how many times the named method was invoked.
func (b *Backend) CallCount(method string) int {
	return len(b.CallsTo(method))
}

// Reset clears all recorded calls and saved transcriptions.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
	b.saved = nil
}
