package whisper

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func pcmOf(values ...int16) []byte {
	pcm := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestPcmToFloat32(t *testing.T) {
	tests := []struct {
		name  string
		value int16
		want  float32
	}{
		{"max positive", 32767, 32767.0 / 32768.0},
		{"max negative", -32768, -1.0},
		{"zero", 0, 0.0},
		{"mid positive", 16384, 0.5},
		{"mid negative", -16384, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := pcmToFloat32(pcmOf(tt.value))
			if len(out) != 1 {
				t.Fatalf("len = %d, want 1", len(out))
			}
			if math.Abs(float64(out[0]-tt.want)) > 1e-6 {
				t.Errorf("pcmToFloat32(%d) = %f; want %f", tt.value, out[0], tt.want)
			}
		})
	}
}

func TestPcmToFloat32_EmptyAndOdd(t *testing.T) {
	if out := pcmToFloat32(nil); len(out) != 0 {
		t.Errorf("nil input: got %d samples", len(out))
	}
	// 3 bytes → only 1 complete sample (trailing byte ignored)
	if out := pcmToFloat32([]byte{0x00, 0x40, 0xFF}); len(out) != 1 {
		t.Errorf("3-byte input: got %d samples, want 1", len(out))
	}
}

func TestComputeRMS(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want float64
	}{
		{"empty", nil, 0},
		{"silence", pcmOf(0, 0, 0, 0), 0},
		{"constant", pcmOf(1000, -1000, 1000, -1000), 1000},
		{"single", pcmOf(-300), 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeRMS(tt.pcm); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("computeRMS = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPcmDuration(t *testing.T) {
	one := make([]byte, nativeSampleRate*2)
	if got := pcmDuration(one, nativeSampleRate); got != time.Second {
		t.Errorf("pcmDuration = %v, want 1s", got)
	}
	if got := pcmDuration(one[:nativeSampleRate], nativeSampleRate); got != 500*time.Millisecond {
		t.Errorf("pcmDuration = %v, want 500ms", got)
	}
	if got := pcmDuration(one, 0); got != 0 {
		t.Errorf("pcmDuration with rate 0 = %v, want 0", got)
	}
}
