// Package backend defines the external collaborators the capture pipeline
// talks to: the hosted user session, the preference store, the transcript
// store and the server-side transcribe-audio function.
//
// The interfaces are deliberately narrow. Concrete implementations live in
// [github.com/MrWong99/boardroom/internal/backend/supabase] (hosted REST and
// edge functions), [github.com/MrWong99/boardroom/pkg/store/postgres] and
// [github.com/MrWong99/boardroom/pkg/store/sqlite] (direct database access).
package backend

import (
	"context"
	"time"
)

// SpeakerUnknown is the speaker label stored for every transcript produced by
// the pipeline. Speaker attribution is not performed.
const SpeakerUnknown = "Unknown"

// User is the authenticated caller on whose behalf chunks are routed.
type User struct {
	ID    string
	Email string
}

// Transcription is a single persisted transcript segment.
type Transcription struct {
	ID        string
	MeetingID string
	Content   string
	Timestamp time.Time
	Speaker   string
}

// TranscribeResult is the response of the server-side transcribe-audio
// function.
type TranscribeResult struct {
	Text      string `json:"text"`
	MeetingID string `json:"meetingId"`
}

// Users resolves the current session's user.
type Users interface {
	// CurrentUser returns the signed-in user. ok is false if there is no
	// session.
	CurrentUser(ctx context.Context) (user User, ok bool, err error)
}

// Preferences looks up a user's stored transcription provider.
type Preferences interface {
	// TranscriptionPreference returns the raw provider string stored for
	// userID ("openai_realtime", "lovable_ai", "browser", "openai"), or ""
	// if nothing is stored.
	TranscriptionPreference(ctx context.Context, userID string) (string, error)
}

// Transcripts persists transcript segments.
type Transcripts interface {
	SaveTranscription(ctx context.Context, t Transcription) error
}

// TranscriptLister lists persisted transcript segments for a meeting, oldest
// first. Stores that support listing implement it alongside [Transcripts].
type TranscriptLister interface {
	ListTranscriptions(ctx context.Context, meetingID string) ([]Transcription, error)
}

// AudioTranscriber is the server-side transcription function.
type AudioTranscriber interface {
	TranscribeAudio(ctx context.Context, audioBase64, meetingID string) (TranscribeResult, error)
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StaticUser is a [Users] that always returns the same user. It is used when
// the pipeline talks to a database directly and there is no hosted session.
// An empty ID reports no session.
type StaticUser User

// CurrentUser implements [Users].
func (u StaticUser) CurrentUser(context.Context) (User, bool, error) {
	if u.ID == "" {
		return User{}, false, nil
	}
	return User(u), true, nil
}

// Compile-time interface assertion.
var _ Users = StaticUser{}
