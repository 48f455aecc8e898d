// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/MrWong99/boardroom/pkg/audio"
	"github.com/MrWong99/boardroom/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// nativeSampleRate is the only sample rate whisper.cpp accepts.
	nativeSampleRate = 16000

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which a decoded chunk is treated as silence and not sent
	// to the model. The maximum possible value for 16-bit audio is 32 767.
	defaultRMSThreshold = 300.0
)

// Compile-time assertion that NativeProvider satisfies stt.Transcriber.
var _ stt.Transcriber = (*NativeProvider)(nil)

// Decoder turns an encoded chunk into 16 kHz mono 16-bit little-endian PCM.
type Decoder interface {
	Decode(ctx context.Context, chunk audio.Chunk) ([]byte, error)
}

// FFmpegDecoder is a [Decoder] that pipes the chunk through ffmpeg.
type FFmpegDecoder struct {
	// Binary is the ffmpeg executable. Empty means "ffmpeg" from PATH.
	Binary string
}

// Decode implements [Decoder].
func (d FFmpegDecoder) Decode(ctx context.Context, chunk audio.Chunk) ([]byte, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", "pipe:0",
		"-f", "s16le", "-ac", "1", "-ar", fmt.Sprint(nativeSampleRate),
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(chunk.Data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper: decode %s: %w: %s", chunk.MimeType, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// NativeProvider implements stt.Transcriber using whisper.cpp Go bindings
// (CGO), eliminating HTTP overhead entirely. The model is loaded once at
// startup and shared across all calls.
type NativeProvider struct {
	model        whisperlib.Model
	language     string
	decoder      Decoder
	rmsThreshold float64
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "am", "auto"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithDecoder replaces the chunk decoder. Defaults to [AutoDecoder].
func WithDecoder(d Decoder) NativeOption {
	return func(p *NativeProvider) { p.decoder = d }
}

// WithSilenceThreshold sets the RMS level below which decoded audio is
// skipped without running inference. Zero disables the check.
func WithSilenceThreshold(rms float64) NativeOption {
	return func(p *NativeProvider) { p.rmsThreshold = rms }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:        model,
		language:     defaultLanguage,
		decoder:      AutoDecoder{},
		rmsThreshold: defaultRMSThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe decodes chunk to PCM and runs inference on a fresh whisper.cpp
// context. Silent chunks yield an empty transcript without touching the
// model.
func (p *NativeProvider) Transcribe(ctx context.Context, chunk audio.Chunk) (stt.Transcript, error) {
	pcm, err := p.decoder.Decode(ctx, chunk)
	if err != nil {
		return stt.Transcript{}, err
	}
	if p.rmsThreshold > 0 && computeRMS(pcm) < p.rmsThreshold {
		return stt.Transcript{Language: p.language, Provider: "whisper-native"}, nil
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	text, err := p.infer(pcmToFloat32(pcm))
	if err != nil {
		return stt.Transcript{}, err
	}
	return stt.Transcript{
		Text:     text,
		Language: p.language,
		Duration: pcmDuration(pcm, nativeSampleRate),
		Provider: "whisper-native",
	}, nil
}

// infer runs whisper.cpp on samples using a fresh context and returns the
// concatenated segment text.
func (p *NativeProvider) infer(samples []float32) (string, error) {
	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
