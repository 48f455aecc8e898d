// Package ffmpeg implements [audio.Device] on top of an ffmpeg child process
// that records the local microphone and encodes it as Opus in a WebM
// container.
//
// The encoded byte stream on ffmpeg's stdout is sliced into timeslice-sized
// [audio.Chunk] values the same way a browser MediaRecorder slices its output:
// the first chunk carries the container header and later chunks continue the
// same stream.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/boardroom/pkg/audio"
)

const (
	defaultBinary       = "ffmpeg"
	defaultInputFormat  = "pulse"
	defaultInputDevice  = "default"
	defaultStartTimeout = 3 * time.Second
	stopGrace           = 2 * time.Second
	readBufSize         = 32 * 1024
	stderrTail          = 4 * 1024
)

// Option is a functional option for [Device].
type Option func(*Device)

// WithBinary sets the ffmpeg executable. Defaults to "ffmpeg" looked up in PATH.
func WithBinary(path string) Option {
	return func(d *Device) { d.binary = path }
}

// WithInput sets the ffmpeg input format (-f) and device (-i), for example
// "pulse"/"default" on Linux or "avfoundation"/":default" on macOS. Empty
// values keep the platform default.
func WithInput(format, device string) Option {
	return func(d *Device) {
		if format != "" {
			d.inputFormat = format
		}
		if device != "" {
			d.inputDevice = device
		}
	}
}

// WithStartTimeout bounds how long Acquire waits for the first encoded byte.
func WithStartTimeout(timeout time.Duration) Option {
	return func(d *Device) { d.startTimeout = timeout }
}

// Device is an [audio.Device] backed by ffmpeg. It is safe for concurrent use;
// each Acquire spawns an independent process.
type Device struct {
	binary       string
	inputFormat  string
	inputDevice  string
	startTimeout time.Duration
	echoWarning  sync.Once
}

// New creates a Device with the given options applied.
func New(opts ...Option) *Device {
	d := &Device{
		binary:       defaultBinary,
		inputFormat:  defaultInputFormat,
		inputDevice:  defaultInputDevice,
		startTimeout: defaultStartTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Args returns the ffmpeg command line (without the binary) for c.
func (d *Device) Args(c audio.Constraints) []string {
	sr := c.SampleRate
	if sr <= 0 {
		sr = audio.DefaultSampleRate
	}
	ch := c.ChannelCount
	if ch <= 0 {
		ch = audio.DefaultChannelCount
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", d.inputFormat,
		"-i", d.inputDevice,
		"-ac", strconv.Itoa(ch),
		"-ar", strconv.Itoa(sr),
	}
	var filters []string
	if c.NoiseSuppression {
		filters = append(filters, "afftdn")
	}
	if c.AutoGainControl {
		filters = append(filters, "dynaudnorm")
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	return append(args, "-c:a", "libopus", "-f", "webm", "pipe:1")
}

// Acquire starts ffmpeg and waits until it produces output, exits, or the
// start timeout elapses. Startup failures are mapped onto
// [audio.ErrPermissionDenied] and [audio.ErrNoDevice] where ffmpeg's
// diagnostics allow it.
func (d *Device) Acquire(ctx context.Context, c audio.Constraints) (audio.Stream, error) {
	if c.EchoCancellation {
		d.echoWarning.Do(func() {
			slog.Warn("ffmpeg: echo cancellation requested but not available, recording without it")
		})
	}

	bin, err := exec.LookPath(d.binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %w", audio.ErrNoDevice, err)
	}

	cmd := exec.Command(bin, d.Args(c)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w: %w", audio.ErrNoDevice, err)
	}

	timeslice := c.Timeslice
	if timeslice <= 0 {
		timeslice = audio.DefaultTimeslice
	}
	mime := c.MimeType
	if mime == "" {
		mime = audio.MimeTypeWebMOpus
	}

	s := &stream{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		timeslice: timeslice,
		mimeType:  mime,
		ch:        make(chan audio.Chunk, 4),
		done:      make(chan struct{}),
		firstByte: make(chan struct{}),
		eof:       make(chan struct{}),
		exited:    make(chan struct{}),
	}
	s.start()

	timer := time.NewTimer(d.startTimeout)
	defer timer.Stop()

	select {
	case <-s.firstByte:
		return s, nil
	case <-s.exited:
		err := classify(s.waitErr, stderr.String())
		_ = s.Release()
		return nil, err
	case <-timer.C:
		_ = s.Release()
		return nil, fmt.Errorf("ffmpeg: no audio within %s: %w", d.startTimeout, audio.ErrNoDevice)
	case <-ctx.Done():
		_ = s.Release()
		return nil, ctx.Err()
	}
}

// classify maps an early ffmpeg exit onto the audio sentinels.
func classify(waitErr error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "not authorized"),
		strings.Contains(lower, "operation not permitted"):
		return fmt.Errorf("ffmpeg: %s: %w", msg, audio.ErrPermissionDenied)
	case strings.Contains(lower, "no such device"),
		strings.Contains(lower, "no such file or directory"),
		strings.Contains(lower, "cannot open audio device"),
		strings.Contains(lower, "connection refused"):
		return fmt.Errorf("ffmpeg: %s: %w", msg, audio.ErrNoDevice)
	}
	if msg == "" && waitErr != nil {
		msg = waitErr.Error()
	}
	if msg == "" {
		msg = "exited before producing audio"
	}
	return fmt.Errorf("ffmpeg: %s", msg)
}

// ─── stream ───────────────────────────────────────────────────────────────────

type stream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *tailBuffer
	timeslice time.Duration
	mimeType  string

	ch        chan audio.Chunk
	done      chan struct{}
	firstByte chan struct{}
	eof       chan struct{}
	exited    chan struct{}
	waitErr   error

	mu      sync.Mutex
	pending []byte
	paused  bool
	seq     int

	releaseOnce sync.Once
	wg          sync.WaitGroup
}

func (s *stream) start() {
	s.wg.Add(2)
	go s.readLoop()
	go s.sliceLoop()
	go func() {
		s.wg.Wait()
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	}()
}

// readLoop copies stdout into the pending buffer. Bytes read while paused are
// discarded.
func (s *stream) readLoop() {
	defer s.wg.Done()
	defer close(s.eof)

	buf := make([]byte, readBufSize)
	var signalled bool
	for {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			if !signalled {
				signalled = true
				close(s.firstByte)
			}
			s.mu.Lock()
			if !s.paused {
				s.pending = append(s.pending, buf[:n]...)
			}
			s.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// sliceLoop emits the pending bytes once per timeslice and closes the chunk
// channel when the process output ends or the stream is released.
func (s *stream) sliceLoop() {
	defer s.wg.Done()
	defer close(s.ch)

	ticker := time.NewTicker(s.timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.flush() {
				return
			}
		case <-s.eof:
			s.flush()
			return
		case <-s.done:
			return
		}
	}
}

func (s *stream) flush() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return true
	}
	c := audio.Chunk{
		Data:       s.pending,
		MimeType:   s.mimeType,
		Seq:        s.seq,
		CapturedAt: time.Now().UTC(),
	}
	s.pending = nil
	s.seq++
	s.mu.Unlock()

	select {
	case s.ch <- c:
		return true
	case <-s.done:
		return false
	}
}

// Chunks implements [audio.Stream].
func (s *stream) Chunks() <-chan audio.Chunk { return s.ch }

// Pause implements [audio.Stream]. Bytes buffered before the pause are
// dropped together with everything ffmpeg produces until Resume.
func (s *stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.pending = nil
}

// Resume implements [audio.Stream].
func (s *stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Release implements [audio.Stream]. It asks ffmpeg to finish, kills it after
// a grace period and waits for all goroutines to exit. Safe to call more than
// once.
func (s *stream) Release() error {
	var err error
	s.releaseOnce.Do(func() {
		close(s.done)
		if s.cmd.Process != nil {
			select {
			case <-s.exited:
			default:
				if sigErr := s.cmd.Process.Signal(os.Interrupt); sigErr != nil && !errors.Is(sigErr, os.ErrProcessDone) {
					_ = s.cmd.Process.Kill()
				}
			}
		}
		select {
		case <-s.exited:
		case <-time.After(stopGrace):
			if killErr := s.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				err = fmt.Errorf("ffmpeg: kill: %w", killErr)
			}
			<-s.exited
		}
	})
	return err
}

// ─── tailBuffer ───────────────────────────────────────────────────────────────

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}

var (
	_ audio.Device = (*Device)(nil)
	_ audio.Stream = (*stream)(nil)
)
