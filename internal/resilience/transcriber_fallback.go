package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
)

// TranscriberFallback is an [stt.Transcriber] that tries each registered
// transcriber in order, skipping those whose circuit breaker is open.
type TranscriberFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a TranscriberFallback with primary as the
// first entry.
func NewTranscriberFallback(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberFallback {
	return &TranscriberFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers another transcriber after the existing entries.
func (f *TranscriberFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Names returns the entry names in try order.
func (f *TranscriberFallback) Names() []string { return f.group.Names() }

// Transcribe implements [stt.Transcriber]. The returned transcript's Provider
// is the name of the entry that produced it when the entry left it empty.
func (f *TranscriberFallback) Transcribe(ctx context.Context, chunk audio.Chunk) (stt.Transcript, error) {
	t, name, err := ExecuteNamed(f.group, func(tr stt.Transcriber) (stt.Transcript, error) {
		return tr.Transcribe(ctx, chunk)
	})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("resilience: transcribe: %w", err)
	}
	if t.Provider == "" {
		t.Provider = name
	}
	return t, nil
}
