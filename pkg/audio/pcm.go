package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMisalignedPCM is returned when a PCM buffer does not hold a whole
// number of sample frames.
var ErrMisalignedPCM = errors.New("audio: pcm length is not a whole number of frames")

// PCM is a buffer of interleaved 16-bit little-endian samples.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in p.
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Data) / (2 * p.Channels)
}

// ToMono downmixes mono or stereo p to one channel and resamples it to rate
// using linear interpolation. A mono buffer already at rate is returned
// unchanged without copying.
func (p PCM) ToMono(rate int) (PCM, error) {
	if p.SampleRate <= 0 || rate <= 0 {
		return PCM{}, fmt.Errorf("audio: invalid sample rate %d -> %d", p.SampleRate, rate)
	}
	if p.Channels != 1 && p.Channels != 2 {
		return PCM{}, fmt.Errorf("audio: cannot downmix %d channels", p.Channels)
	}
	if len(p.Data)%(2*p.Channels) != 0 {
		return PCM{}, ErrMisalignedPCM
	}
	if p.SampleRate == rate && p.Channels == 1 {
		return p, nil
	}

	data := p.Data
	if p.Channels == 2 {
		data = stereoToMono(data)
	}
	return PCM{Data: resampleMono(data, p.SampleRate, rate), SampleRate: rate, Channels: 1}, nil
}

// stereoToMono averages the two channels of each frame.
func stereoToMono(pcm []byte) []byte {
	n := len(pcm) / 4
	out := make([]byte, n*2)
	for i := range n {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

func resampleMono(pcm []byte, src, dst int) []byte {
	if src == dst {
		return pcm
	}
	frames := len(pcm) / 2
	if frames == 0 {
		return pcm
	}
	outFrames := int(int64(frames) * int64(dst) / int64(src))
	out := make([]byte, outFrames*2)
	ratio := float64(src) / float64(dst)

	for i := range outFrames {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, frames-1)
		s0 := float64(sampleAt(pcm, idx))
		s1 := float64(sampleAt(pcm, next))
		putSample(out, i, int16(s0+(s1-s0)*frac))
	}
	return out
}

func sampleAt(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[i*2:]))
}

func putSample(pcm []byte, i int, s int16) {
	binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
}
