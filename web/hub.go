package web

import "sync"

const clientBuffer = 64

// Message is one event pushed to websocket clients.
type Message struct {
	Type  string  `json:"type"`
	Level float64 `json:"level,omitempty"`
	Armed *bool   `json:"armed,omitempty"`
	Path  string  `json:"path,omitempty"`
	State string  `json:"state,omitempty"`
	Error string  `json:"error,omitempty"`
}

const (
	TypeLevel   = "level"
	TypeArmed   = "armed"
	TypeCapture = "capture"
	TypeLive    = "live"
	TypeError   = "error"
)

// Hub fans messages out to connected clients. A client that falls behind
// loses messages rather than stalling the publisher.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Message]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Message]struct{})}
}

func (h *Hub) subscribe() chan Message {
	ch := make(chan Message, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Message) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
