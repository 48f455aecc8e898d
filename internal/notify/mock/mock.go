// Package mock provides a recording test double for notify.Notifier.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/boardroom/internal/notify"
)

// Notifier records every toast. Err, if set, is returned from Notify after
// the toast is recorded.
type Notifier struct {
	mu     sync.Mutex
	toasts []notify.Toast

	Err error
}

var _ notify.Notifier = (*Notifier)(nil)

// Notify implements [notify.Notifier].
func (n *Notifier) Notify(_ context.Context, t notify.Toast) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, t)
	return n.Err
}

// Toasts returns a copy of the recorded toasts.
func (n *Notifier) Toasts() []notify.Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.toasts)
}

// Titles returns the recorded toast titles in order.
func (n *Notifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.toasts))
	for i, t := range n.toasts {
		out[i] = t.Title
	}
	return out
}

// Reset clears the recorded toasts.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = nil
}
