// Package notify delivers user-visible toasts raised by the recording
// pipeline ("Recording started", "Transcription failed", ...).
//
// [Log] writes toasts to slog, [Hub] broadcasts them to connected UI clients
// over WebSocket, and [Multi] fans one toast out to several notifiers.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Level is the severity of a [Toast].
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast is one user-visible notification.
type Toast struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Time        time.Time `json:"time"`
}

// Notifier delivers toasts. Implementations must be safe for concurrent use
// and must not block on slow consumers.
type Notifier interface {
	Notify(ctx context.Context, t Toast) error
}

// NotifierFunc adapts a plain function to [Notifier].
type NotifierFunc func(ctx context.Context, t Toast) error

// Notify implements [Notifier].
func (f NotifierFunc) Notify(ctx context.Context, t Toast) error { return f(ctx, t) }

// Info builds an info-level toast stamped with the current time.
func Info(title, description string) Toast {
	return Toast{Level: LevelInfo, Title: title, Description: description, Time: time.Now()}
}

// Success builds a success-level toast stamped with the current time.
func Success(title, description string) Toast {
	return Toast{Level: LevelSuccess, Title: title, Description: description, Time: time.Now()}
}

// Error builds an error-level toast stamped with the current time.
func Error(title, description string) Toast {
	return Toast{Level: LevelError, Title: title, Description: description, Time: time.Now()}
}

// Log is a [Notifier] that writes every toast to a slog logger. A nil Logger
// uses [slog.Default].
type Log struct {
	Logger *slog.Logger
}

// Notify implements [Notifier].
func (l Log) Notify(ctx context.Context, t Toast) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lvl := slog.LevelInfo
	if t.Level == LevelError {
		lvl = slog.LevelWarn
	}
	logger.Log(ctx, lvl, "toast", "level", string(t.Level), "title", t.Title, "description", t.Description)
	return nil
}

// Multi fans each toast out to every notifier in order. All notifiers are
// called even if one fails; the errors are joined.
type Multi []Notifier

// Notify implements [Notifier].
func (m Multi) Notify(ctx context.Context, t Toast) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every toast.
var Discard Notifier = NotifierFunc(func(context.Context, Toast) error { return nil })

var (
	_ Notifier = Log{}
	_ Notifier = Multi(nil)
)
