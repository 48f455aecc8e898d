package voicecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/boardroom/internal/observe"
)

// ErrNotHandled is returned by a [Handler] that does not act on a match.
var ErrNotHandled = errors.New("voicecmd: not handled")

// MatchKind says which matcher produced a [Match].
type MatchKind string

const (
	KindDictation  MatchKind = "dictation"
	KindCommand    MatchKind = "command"
	KindAssignment MatchKind = "assignment"
	KindPriority   MatchKind = "priority"
)

// Match is the result of [Filter.Check]. Exactly one of the payload fields
// is meaningful, selected by Kind.
type Match struct {
	Kind MatchKind
	// Text is the trimmed transcript.
	Text string

	Command    Command
	Dictation  Dictation
	Assignment Assignment
	Priority   PriorityChange
}

// Name is a short label for logs and metrics.
func (m Match) Name() string {
	switch m.Kind {
	case KindCommand:
		return string(m.Command.Action)
	case KindDictation:
		return "dictation-" + string(m.Dictation.Kind)
	case KindPriority:
		return "priority-" + string(m.Priority.Priority)
	default:
		return string(m.Kind)
	}
}

// Handler acts on a match. It returns [ErrNotHandled] for matches it does
// not care about.
type Handler interface {
	Handle(ctx context.Context, m Match) error
}

// HandlerFunc adapts a plain function to [Handler].
type HandlerFunc func(ctx context.Context, m Match) error

// Handle implements [Handler].
func (f HandlerFunc) Handle(ctx context.Context, m Match) error { return f(ctx, m) }

// Handlers tries each handler in order until one does not return
// [ErrNotHandled].
type Handlers []Handler

// Handle implements [Handler].
func (hs Handlers) Handle(ctx context.Context, m Match) error {
	for _, h := range hs {
		if err := h.Handle(ctx, m); !errors.Is(err, ErrNotHandled) {
			return err
		}
	}
	return ErrNotHandled
}

// FilterOption is a functional option for [NewFilter].
type FilterOption func(*Filter)

// WithRoster resolves assignment names against r.
func WithRoster(r *Roster) FilterOption {
	return func(f *Filter) { f.roster = r }
}

// WithFilterMetrics overrides the metrics instance. Default: [observe.DefaultMetrics].
func WithFilterMetrics(m *observe.Metrics) FilterOption {
	return func(f *Filter) { f.metrics = m }
}

// Filter runs the matchers over transcript text and dispatches the first
// match to its handler. Dictation is checked first so that "decision: ..."
// is not mistaken for the add-decision command, then commands, assignments
// and priority changes.
//
// Filter is safe for concurrent use when its handler is.
type Filter struct {
	handler Handler
	roster  *Roster
	metrics *observe.Metrics
}

// NewFilter creates a Filter that dispatches to h. A nil h only reports
// matches.
func NewFilter(h Handler, opts ...FilterOption) *Filter {
	f := &Filter{handler: h}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	return f
}

// Match runs the matchers without dispatching.
func (f *Filter) Match(text string) (Match, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Match{}, false
	}
	m := Match{Text: trimmed}
	if d, ok := MatchDictation(trimmed); ok {
		m.Kind, m.Dictation = KindDictation, d
		return m, true
	}
	if c, ok := MatchCommand(trimmed); ok {
		m.Kind, m.Command = KindCommand, c
		return m, true
	}
	if a, ok := MatchAssignment(trimmed); ok {
		if f.roster != nil {
			if name, score, found := f.roster.Resolve(a.Assignee); found {
				a.Resolved, a.Confidence = name, score
			}
		}
		m.Kind, m.Assignment = KindAssignment, a
		return m, true
	}
	if p, ok := MatchPriorityChange(trimmed); ok {
		m.Kind, m.Priority = KindPriority, p
		return m, true
	}
	return Match{}, false
}

// Check matches text and hands the match to the handler. It returns
// (match, true, nil) when something matched and the handler succeeded or
// declined, (match, true, err) when the handler failed, and
// (Match{}, false, nil) when nothing matched.
func (f *Filter) Check(ctx context.Context, text string) (Match, bool, error) {
	m, ok := f.Match(text)
	if !ok {
		return Match{}, false, nil
	}
	f.metrics.RecordVoiceCommand(ctx, m.Name())

	if f.handler == nil {
		return m, true, nil
	}
	err := f.handler.Handle(ctx, m)
	switch {
	case errors.Is(err, ErrNotHandled):
		slog.Debug("voicecmd: match not handled", "match", m.Name(), "text", m.Text)
		return m, true, nil
	case err != nil:
		slog.Warn("voicecmd: command failed",
			"match", m.Name(),
			"text", m.Text,
			"error", err,
		)
		return m, true, fmt.Errorf("voicecmd: %s: %w", m.Name(), err)
	}
	slog.Info("voicecmd: command executed", "match", m.Name(), "text", m.Text)
	return m, true, nil
}

// Hook returns a function suitable for the router's transcript hook. Handler
// errors are already logged by Check and are dropped.
func (f *Filter) Hook() func(ctx context.Context, meetingID, text string) {
	return func(ctx context.Context, meetingID, text string) {
		_, _, _ = f.Check(ctx, text)
	}
}
