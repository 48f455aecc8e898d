package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/go-audio/wav"

	"github.com/MrWong99/boardroom/pkg/audio"
)

// ErrNotWAV is returned by [WAVDecoder] for data without a RIFF/WAVE header.
var ErrNotWAV = errors.New("whisper: not a RIFF/WAVE payload")

// wavFormatPCM is the WAVE_FORMAT_PCM tag; float and compressed WAVs are
// rejected.
const wavFormatPCM = 1

// WAVDecoder is a [Decoder] for uncompressed integer PCM WAV chunks. It
// converts in process, so no ffmpeg binary is needed.
type WAVDecoder struct{}

// Decode implements [Decoder].
func (WAVDecoder) Decode(_ context.Context, chunk audio.Chunk) ([]byte, error) {
	d := wav.NewDecoder(bytes.NewReader(chunk.Data))
	if !d.IsValidFile() {
		return nil, ErrNotWAV
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("whisper: unsupported wav format tag %d", d.WavAudioFormat)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("whisper: read wav: %w", err)
	}

	pcm := audio.PCM{
		Data:       make([]byte, len(buf.Data)*2),
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm.Data[i*2:], uint16(to16(v, int(d.BitDepth))))
	}
	out, err := pcm.ToMono(nativeSampleRate)
	if err != nil {
		return nil, fmt.Errorf("whisper: convert wav: %w", err)
	}
	return out.Data, nil
}

// to16 scales a sample of the given bit depth to signed 16 bits. 8-bit WAV
// samples are unsigned.
func to16(v, depth int) int16 {
	switch {
	case depth == 8:
		return int16((v - 128) << 8)
	case depth > 16:
		return int16(v >> (depth - 16))
	default:
		return int16(v)
	}
}

// AutoDecoder decodes WAV chunks in process and hands everything else to
// ffmpeg.
type AutoDecoder struct {
	FFmpeg FFmpegDecoder
}

// Decode implements [Decoder].
func (d AutoDecoder) Decode(ctx context.Context, chunk audio.Chunk) ([]byte, error) {
	if isWAV(chunk) {
		return WAVDecoder{}.Decode(ctx, chunk)
	}
	return d.FFmpeg.Decode(ctx, chunk)
}

func isWAV(chunk audio.Chunk) bool {
	if base, _, _ := strings.Cut(chunk.MimeType, ";"); strings.Contains(strings.TrimSpace(base), "wav") {
		return true
	}
	return len(chunk.Data) >= 12 && string(chunk.Data[0:4]) == "RIFF" && string(chunk.Data[8:12]) == "WAVE"
}
