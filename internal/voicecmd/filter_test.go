package voicecmd_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/boardroom/internal/observe"
	"github.com/MrWong99/boardroom/internal/voicecmd"
)

type recordingHandler struct {
	mu      sync.Mutex
	matches []voicecmd.Match
	err     error
}

func (h *recordingHandler) Handle(_ context.Context, m voicecmd.Match) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.matches = append(h.matches, m)
	return h.err
}

func newFilter(t *testing.T, h voicecmd.Handler, opts ...voicecmd.FilterOption) *voicecmd.Filter {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return voicecmd.NewFilter(h, append([]voicecmd.FilterOption{voicecmd.WithFilterMetrics(m)}, opts...)...)
}

func TestFilter_MatchOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		kind voicecmd.MatchKind
		ok   bool
	}{
		{"dictation before command", "decision: add decision later", voicecmd.KindDictation, true},
		{"command", "please start recording now", voicecmd.KindCommand, true},
		{"assignment", "assign this task to Sarah, thanks", voicecmd.KindAssignment, true},
		{"priority", "make this urgent", voicecmd.KindPriority, true},
		{"nothing", "let's talk about lunch", "", false},
		{"blank", "  ", "", false},
	}
	f := newFilter(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, ok := f.Match(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if m.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", m.Kind, tt.kind)
			}
		})
	}
}

func TestFilter_CheckDispatches(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	f := newFilter(t, h)

	m, ok, err := f.Check(context.Background(), "  Stop recording  ")
	if err != nil || !ok {
		t.Fatalf("Check = (%v, %v)", ok, err)
	}
	if m.Command.Action != voicecmd.ActionStopRecording {
		t.Errorf("Action = %q, want stopRecording", m.Command.Action)
	}
	if m.Text != "Stop recording" {
		t.Errorf("Text = %q, want trimmed transcript", m.Text)
	}
	if len(h.matches) != 1 || h.matches[0].Name() != "stopRecording" {
		t.Errorf("handler saw %+v", h.matches)
	}

	if _, ok, _ := f.Check(context.Background(), "quarterly numbers look good"); ok {
		t.Error("unrelated text matched")
	}
	if len(h.matches) != 1 {
		t.Errorf("handler called %d times, want 1", len(h.matches))
	}
}

func TestFilter_CheckHandlerErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"success", nil, false},
		{"not handled", voicecmd.ErrNotHandled, false},
		{"wrapped not handled", errors.Join(voicecmd.ErrNotHandled), false},
		{"failure", boom, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFilter(t, &recordingHandler{err: tt.err})
			_, ok, err := f.Check(context.Background(), "pause recording")
			if !ok {
				t.Fatal("no match")
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, boom) {
					t.Errorf("err %v does not wrap cause", err)
				}
				if got, want := err.Error(), "voicecmd: pauseRecording: boom"; got != want {
					t.Errorf("err = %q, want %q", got, want)
				}
			}
		})
	}
}

func TestHandlers_FirstHandlerWins(t *testing.T) {
	t.Parallel()

	var order []string
	decline := voicecmd.HandlerFunc(func(context.Context, voicecmd.Match) error {
		order = append(order, "decline")
		return voicecmd.ErrNotHandled
	})
	accept := voicecmd.HandlerFunc(func(context.Context, voicecmd.Match) error {
		order = append(order, "accept")
		return nil
	})
	never := voicecmd.HandlerFunc(func(context.Context, voicecmd.Match) error {
		order = append(order, "never")
		return nil
	})

	err := voicecmd.Handlers{decline, accept, never}.Handle(context.Background(), voicecmd.Match{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(order) != 2 || order[0] != "decline" || order[1] != "accept" {
		t.Errorf("order = %v", order)
	}

	if err := (voicecmd.Handlers{decline}).Handle(context.Background(), voicecmd.Match{}); !errors.Is(err, voicecmd.ErrNotHandled) {
		t.Errorf("all declining = %v, want ErrNotHandled", err)
	}
}

func TestFilter_RosterResolvesAssignee(t *testing.T) {
	t.Parallel()

	roster := voicecmd.NewRoster([]string{"Sarah Tesfaye", "Dawit Bekele"})
	f := newFilter(t, nil, voicecmd.WithRoster(roster))

	m, ok := f.Match("assign this to sara")
	if !ok || m.Kind != voicecmd.KindAssignment {
		t.Fatalf("Match = %+v, %v", m, ok)
	}
	if m.Assignment.Assignee != "sara" {
		t.Errorf("Assignee = %q, want spoken name", m.Assignment.Assignee)
	}
	if m.Assignment.Resolved != "Sarah Tesfaye" {
		t.Errorf("Resolved = %q, want Sarah Tesfaye", m.Assignment.Resolved)
	}
	if m.Assignment.Confidence <= 0 || m.Assignment.Confidence > 1 {
		t.Errorf("Confidence = %v", m.Assignment.Confidence)
	}
}

func TestFilter_Hook(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{err: errors.New("ignored")}
	hook := newFilter(t, h).Hook()
	hook(context.Background(), "m-1", "end meeting")
	if len(h.matches) != 1 || h.matches[0].Command.Action != voicecmd.ActionEndMeeting {
		t.Errorf("handler saw %+v", h.matches)
	}
}
