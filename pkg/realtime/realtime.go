// Package realtime is an in-process publish/subscribe hub that tells open
// frame sessions when what they display has changed.
//
// Delivery is best effort: a listener whose buffer is full misses the event.
// Frames only need to know that *something* changed, so a dropped event is
// harmless as long as a later one arrives.
package realtime

import (
	"sync"
	"time"
)

type EventType string

const (
	// EventCatalog is published after a fetch replaced the catalog.
	EventCatalog EventType = "catalog"
	// EventSelection is published after the selection was saved.
	EventSelection EventType = "selection"
	// EventConfig is published after the config file was reloaded.
	EventConfig EventType = "config"
)

// Event is the envelope delivered to listeners.
type Event struct {
	Type   EventType `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

func NewEvent(t EventType, detail string) Event {
	return Event{Type: t, Detail: detail, At: time.Now().UTC()}
}

// Hub fans events out to registered listeners, each with its own buffered
// channel. It is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub returns a hub with the given per-listener buffer (default 8).
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 8
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must Unregister the id when done.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes a listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
			// slow listener
		}
	}
}

// Size returns the number of registered listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
