package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/boardroom/internal/capture"
	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/pkg/audio"
	audiomock "github.com/MrWong99/boardroom/pkg/audio/mock"
)

type delivery struct {
	chunk     audio.Chunk
	recent    []audio.Chunk
	meetingID string
}

// recorder is a Handoff that forwards every call to a channel.
type recorder struct {
	ch  chan delivery
	err error

	mu     sync.Mutex
	panics map[int]bool
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan delivery, 64), panics: map[int]bool{}}
}

func (r *recorder) handoff(_ context.Context, chunk audio.Chunk, recent []audio.Chunk, meetingID string) error {
	r.ch <- delivery{chunk: chunk, recent: recent, meetingID: meetingID}
	r.mu.Lock()
	p := r.panics[chunk.Seq]
	r.mu.Unlock()
	if p {
		panic("boom")
	}
	return r.err
}

func (r *recorder) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-r.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for hand-off")
		return delivery{}
	}
}

func newSession(t *testing.T, dev audio.Device, h capture.Handoff) *capture.Session {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	s := capture.New(dev, h, capture.WithMetrics(m))
	t.Cleanup(s.Close)
	return s
}

func TestSession_StartUsesDefaultConstraints(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	s := newSession(t, dev, newRecorder().handoff)

	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != capture.StateRecording {
		t.Fatalf("State = %v, want recording", got)
	}
	if len(dev.AcquireCalls) != 1 {
		t.Fatalf("AcquireCalls = %d, want 1", len(dev.AcquireCalls))
	}
	if got, want := dev.AcquireCalls[0].Constraints, audio.DefaultConstraints(); got != want {
		t.Errorf("constraints = %+v, want %+v", got, want)
	}
	if got := s.MeetingID(); got != "m-1" {
		t.Errorf("MeetingID = %q, want m-1", got)
	}
}

func TestSession_StartWhileRecordingIsNoop(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	s := newSession(t, dev, newRecorder().handoff)

	ctx := context.Background()
	if err := s.Start(ctx, "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx, "m-2"); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if len(dev.AcquireCalls) != 1 {
		t.Errorf("AcquireCalls = %d, want 1", len(dev.AcquireCalls))
	}
	if got := s.MeetingID(); got != "m-1" {
		t.Errorf("MeetingID = %q, want m-1", got)
	}
}

func TestSession_BufferIsBounded(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	rec := newRecorder()
	s := newSession(t, dev, rec.handoff)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const total = 10
	for i := 0; i < total; i++ {
		dev.Stream().EmitSize(100 + i)
	}

	for i := 0; i < total; i++ {
		d := rec.next(t)
		if d.chunk.Seq != i {
			t.Fatalf("hand-off %d Seq = %d", i, d.chunk.Seq)
		}
		if len(d.recent) > capture.BufferSize {
			t.Fatalf("hand-off %d recent len = %d, exceeds %d", i, len(d.recent), capture.BufferSize)
		}
		if want := min(i+1, capture.BufferSize); len(d.recent) != want {
			t.Errorf("hand-off %d recent len = %d, want %d", i, len(d.recent), want)
		}
		if last := d.recent[len(d.recent)-1]; last.Seq != d.chunk.Seq {
			t.Errorf("hand-off %d recent ends with Seq %d", i, last.Seq)
		}
		if d.meetingID != "m-1" {
			t.Errorf("hand-off %d meetingID = %q", i, d.meetingID)
		}
	}

	recent := s.Recent()
	if len(recent) != capture.BufferSize {
		t.Fatalf("Recent len = %d, want %d", len(recent), capture.BufferSize)
	}
	for i, c := range recent {
		if want := total - capture.BufferSize + i; c.Seq != want {
			t.Errorf("Recent[%d].Seq = %d, want %d", i, c.Seq, want)
		}
	}
}

func TestSession_PauseDropsChunks(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	rec := newRecorder()
	s := newSession(t, dev, rec.handoff)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := dev.Stream()

	stream.EmitSize(10) // seq 0
	rec.next(t)

	s.Pause()
	if got := s.State(); got != capture.StatePaused {
		t.Fatalf("State = %v, want paused", got)
	}
	if !stream.Paused() {
		t.Error("stream not paused")
	}
	if stream.EmitSize(10) {
		t.Error("paused stream sealed a chunk")
	}

	s.Resume()
	if got := s.State(); got != capture.StateRecording {
		t.Fatalf("State = %v, want recording", got)
	}
	stream.EmitSize(10) // seq 1

	d := rec.next(t)
	if d.chunk.Seq != 1 {
		t.Fatalf("hand-off Seq = %d, want 1", d.chunk.Seq)
	}
	if len(d.recent) != 2 {
		t.Errorf("recent len = %d, want 2", len(d.recent))
	}
}

func TestSession_PauseDropsChunksAlreadyInFlight(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	dev := &audiomock.Device{}
	rec := newRecorder()
	s := capture.New(dev, rec.handoff, capture.WithMetrics(m))
	t.Cleanup(s.Close)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := dev.Stream()

	s.Pause()
	stream.EmitInFlight([]byte{1, 2, 3}) // seq 0, queued before the pause took effect

	// Resume only once the pump has seen and dropped the queued chunk.
	deadline := time.Now().Add(2 * time.Second)
	for droppedWhilePaused(t, reader) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("queued chunk was never dropped")
		}
		time.Sleep(time.Millisecond)
	}
	s.Resume()
	stream.EmitSize(10) // seq 1

	d := rec.next(t)
	if d.chunk.Seq != 1 {
		t.Fatalf("hand-off Seq = %d, want 1 (seq 0 arrived while paused)", d.chunk.Seq)
	}
	if len(d.recent) != 1 {
		t.Errorf("recent len = %d, want 1", len(d.recent))
	}
	select {
	case extra := <-rec.ch:
		t.Errorf("unexpected hand-off of seq %d", extra.chunk.Seq)
	default:
	}
}

// droppedWhilePaused reads the paused-drop counter from reader.
func droppedWhilePaused(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "boardroom.capture.dropped" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("dropped data is %T", met.Data)
			}
			var n int64
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("reason")); ok && v.AsString() == "paused" {
					n += dp.Value
				}
			}
			return n
		}
	}
	return 0
}

func TestSession_StateMachineNoops(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	s := newSession(t, dev, newRecorder().handoff)

	// Idle: pause, resume and stop do nothing.
	s.Pause()
	s.Resume()
	s.Stop()
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State = %v, want idle", got)
	}

	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := dev.Stream()

	// Recording: resume does nothing.
	s.Resume()
	if stream.CallCountResume != 0 {
		t.Errorf("Resume reached stream while recording")
	}

	// Paused: a second pause does nothing.
	s.Pause()
	s.Pause()
	if stream.CallCountPause != 1 {
		t.Errorf("CallCountPause = %d, want 1", stream.CallCountPause)
	}
}

func TestSession_StopReleasesAndClearsPause(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	rec := newRecorder()
	s := newSession(t, dev, rec.handoff)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := dev.Stream()
	stream.EmitSize(10)
	rec.next(t)
	s.Pause()

	s.Stop()
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State = %v, want idle", got)
	}
	if !stream.Released() {
		t.Error("stream not released")
	}
	if got := len(s.Recent()); got != 0 {
		t.Errorf("Recent len = %d, want 0 after stop", got)
	}
	if got := s.MeetingID(); got != "" {
		t.Errorf("MeetingID = %q, want empty", got)
	}

	// A new recording gets a fresh stream.
	if err := s.Start(context.Background(), "m-2"); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if got := s.State(); got != capture.StateRecording {
		t.Fatalf("State = %v, want recording", got)
	}
	if dev.Stream() == stream {
		t.Error("restart reused the released stream")
	}
}

func TestSession_AcquireErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want capture.ErrorKind
	}{
		{"permission", audio.ErrPermissionDenied, capture.KindPermissionDenied},
		{"wrapped permission", errors.Join(errors.New("ffmpeg"), audio.ErrPermissionDenied), capture.KindPermissionDenied},
		{"no device", audio.ErrNoDevice, capture.KindNoDevice},
		{"other", errors.New("device busy"), capture.KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev := &audiomock.Device{AcquireError: tt.err}
			s := newSession(t, dev, newRecorder().handoff)

			err := s.Start(context.Background(), "m-1")
			var cerr *capture.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Start error = %v, want *capture.Error", err)
			}
			if cerr.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", cerr.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("error %v does not wrap %v", err, tt.err)
			}
			if got := s.State(); got != capture.StateIdle {
				t.Errorf("State = %v, want idle", got)
			}
		})
	}
}

func TestSession_HandoffFailuresDoNotStopCapture(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	rec := newRecorder()
	rec.err = errors.New("router exploded")
	rec.panics[1] = true
	s := newSession(t, dev, rec.handoff)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		dev.Stream().EmitSize(10)
	}
	for i := 0; i < 3; i++ {
		if d := rec.next(t); d.chunk.Seq != i {
			t.Fatalf("hand-off %d Seq = %d", i, d.chunk.Seq)
		}
	}
	if got := s.State(); got != capture.StateRecording {
		t.Errorf("State = %v, want recording", got)
	}
}

func TestSession_DeviceLossReturnsToIdle(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	s := newSession(t, dev, newRecorder().handoff)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	done := s.Done()
	dev.Stream().Fail()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not exit")
	}
	if got := s.State(); got != capture.StateIdle {
		t.Errorf("State = %v, want idle", got)
	}
}

func TestSession_CloseRejectsStart(t *testing.T) {
	t.Parallel()

	dev := &audiomock.Device{}
	s := newSession(t, dev, newRecorder().handoff)
	if err := s.Start(context.Background(), "m-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Close()
	s.Close()

	if !dev.Stream().Released() {
		t.Error("Close did not release the stream")
	}
	if err := s.Start(context.Background(), "m-1"); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[capture.State]string{
		capture.StateIdle:      "idle",
		capture.StateRecording: "recording",
		capture.StatePaused:    "paused",
		capture.State(9):       "State(9)",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(st), got, want)
		}
	}
}
