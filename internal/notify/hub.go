package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/boardroom/internal/observe"
)

const (
	defaultClientBuffer = 16
	writeTimeout        = 5 * time.Second
)

// HubOption is a functional option for [NewHub].
type HubOption func(*Hub)

// WithClientBuffer sets how many undelivered toasts a client may queue
// before it is disconnected. Default: 16.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns allows cross-origin WebSocket upgrades from the given
// host patterns (see [websocket.AcceptOptions]).
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.origins = patterns }
}

// WithHubMetrics overrides the metrics instance. Default: [observe.DefaultMetrics].
func WithHubMetrics(m *observe.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

type client struct {
	ch   chan []byte
	conn *websocket.Conn
	once sync.Once
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.ch)
		_ = c.conn.Close(code, reason)
	})
}

// Hub broadcasts toasts to WebSocket subscribers. Mount it as an
// [http.Handler]; every upgraded connection receives each toast as a JSON
// text message. A client that falls more than the buffer size behind is
// disconnected rather than slowing down the notifier.
type Hub struct {
	buffer  int
	origins []string
	metrics *observe.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

var (
	_ Notifier     = (*Hub)(nil)
	_ http.Handler = (*Hub)(nil)
)

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		buffer:  defaultClientBuffer,
		clients: make(map[*client]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// ServeHTTP upgrades the request and streams toasts until the client goes
// away or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("notify: websocket accept failed", "err", err)
		return
	}

	c := &client{ch: make(chan []byte, h.buffer), conn: conn}
	if !h.add(c) {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.drop(c, websocket.StatusNormalClosure, "")

	// Subscribers never send; CloseRead answers pings and notices the close.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case msg, ok := <-c.ch:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				slog.Debug("notify: client write failed", "err", err)
				h.drop(c, websocket.StatusInternalError, "write failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.NotificationClients.Add(context.Background(), 1)
	return true
}

// drop unregisters c before closing its queue so that Notify never sends on
// a closed channel.
func (h *Hub) drop(c *client, code websocket.StatusCode, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.NotificationClients.Add(context.Background(), -1)
	}
	h.mu.Unlock()
	c.close(code, reason)
}

// Notify implements [Notifier]. It never blocks on a client.
func (h *Hub) Notify(ctx context.Context, t Toast) error {
	msg, err := json.Marshal(t)
	if err != nil {
		return err
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.ch <- msg:
		default:
			slow = append(slow, c)
			delete(h.clients, c)
			h.metrics.NotificationClients.Add(ctx, -1)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		slog.Warn("notify: dropping slow notification client")
		go c.close(websocket.StatusPolicyViolation, "too slow")
	}
	return nil
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	for range clients {
		h.metrics.NotificationClients.Add(context.Background(), -1)
	}
	h.mu.Unlock()

	for c := range clients {
		go c.close(websocket.StatusGoingAway, "shutting down")
	}
}
