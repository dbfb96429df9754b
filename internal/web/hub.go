package web

import (
	"log"
	"sync"
)

// Hub maintains the set of attached snapshot subscribers and fans broadcast
// payloads out to them. A subscriber that cannot keep up is dropped.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	// Guards clients for ClientCount readers outside the hub goroutine.
	mu sync.RWMutex
}

// NewHub creates a Hub. Run must be started in a goroutine before clients
// attach.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: subscriber attached (%d total)", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("ws: subscriber detached (%d remaining)", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// Subscriber's buffer is full - drop it.
					close(c.send)
					delete(h.clients, c)
					log.Printf("ws: dropped slow subscriber")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a payload for delivery to every attached subscriber.
// Drops the payload if the hub is backlogged; the next publish cycle
// supersedes it anyway.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("ws: broadcast backlog, dropping snapshot")
	}
}

// ClientCount returns the number of attached subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
