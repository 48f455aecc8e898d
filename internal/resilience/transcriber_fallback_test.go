package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
	sttmock "github.com/MrWong99/boardroom/pkg/provider/stt/mock"
)

func TestTranscriberFallback_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Result: stt.Transcript{Text: "hello", Provider: "openai"}}
	secondary := &sttmock.Transcriber{Result: stt.Transcript{Text: "unused"}}

	f := NewTranscriberFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	got, err := f.Transcribe(context.Background(), audio.Chunk{Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello" || got.Provider != "openai" {
		t.Errorf("transcript = %+v", got)
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestTranscriberFallback_FailoverStampsProvider(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Transcriber{Err: errors.New("503")}
	secondary := &sttmock.Transcriber{Result: stt.Transcript{Text: "from local"}}

	f := NewTranscriberFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("whisper", secondary)

	chunk := audio.Chunk{Seq: 4, Data: []byte{9}}
	got, err := f.Transcribe(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Provider != "whisper" {
		t.Errorf("Provider = %q, want whisper", got.Provider)
	}
	call, ok := secondary.LastCall()
	if !ok || call.Chunk.Seq != 4 {
		t.Errorf("secondary last call = %+v, %v", call, ok)
	}
}

func TestTranscriberFallback_AllFail(t *testing.T) {
	t.Parallel()

	f := NewTranscriberFallback(&sttmock.Transcriber{Err: errors.New("a")}, "a", FallbackConfig{})
	f.AddFallback("b", &sttmock.Transcriber{Err: errors.New("b")})

	_, err := f.Transcribe(context.Background(), audio.Chunk{Data: []byte{1}})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if got := f.Names(); len(got) != 2 {
		t.Errorf("Names = %v", got)
	}
}
