package audio

import "time"

// MimeTypeWebMOpus is the container/codec pair every [Chunk] is encoded in.
const MimeTypeWebMOpus = "audio/webm;codecs=opus"

// Chunk is one timeslice of encoded microphone audio as emitted by a
// [Stream]. Only the first chunk of a stream carries the WebM header; later
// chunks are continuation clusters that many decoders reject on their own.
type Chunk struct {
	// Data is the encoded audio payload.
	Data []byte

	// MimeType is always [MimeTypeWebMOpus] for chunks produced by this
	// package's devices.
	MimeType string

	// Seq is the zero-based position of the chunk within its stream.
	Seq int

	// CapturedAt is the wall-clock time the chunk was sealed.
	CapturedAt time.Time
}

// Size returns the payload length in bytes.
func (c Chunk) Size() int { return len(c.Data) }

// Constraints describes the capture request handed to [Device.Acquire].
// They mirror the browser media constraints the meeting UI requests.
type Constraints struct {
	// SampleRate is the target capture rate in Hz.
	SampleRate int

	// ChannelCount is the number of input channels; 1 = mono.
	ChannelCount int

	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool

	// MimeType is the requested encoding of emitted chunks.
	MimeType string

	// Timeslice is the interval at which the device seals and emits a chunk.
	Timeslice time.Duration
}

// Fixed capture parameters used by the meeting recorder.
const (
	DefaultSampleRate   = 24000
	DefaultChannelCount = 1
	DefaultTimeslice    = 5000 * time.Millisecond
)

// DefaultConstraints returns the constraints the recorder always requests:
// mono 24 kHz with echo cancellation, noise suppression and automatic gain,
// opus-in-webm, sliced every 5 seconds.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       DefaultSampleRate,
		ChannelCount:     DefaultChannelCount,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		MimeType:         MimeTypeWebMOpus,
		Timeslice:        DefaultTimeslice,
	}
}
