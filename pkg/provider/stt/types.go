package stt

import "time"

// Transcript is the result of transcribing one audio chunk.
type Transcript struct {
	// Text is the recognised speech, trimmed of surrounding whitespace.
	Text string

	// Language is the language the engine detected or was told to use.
	// Empty when the provider does not report it.
	Language string

	// Duration is the audio length the engine reports having processed.
	// Zero when unknown.
	Duration time.Duration

	// Provider names the backend that produced the text. Fallback groups
	// fill this in so callers can log which entry answered.
	Provider string
}
