// Package websocket pushes canonical node facts to connected map clients.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"mesh-map-sync/internal/device"
	"mesh-map-sync/internal/models"
	"sync"
)

var ErrBroadcastQueueFull = errors.New("broadcast queue is full")

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done. It must be
// called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug().Str("remote", client.remoteAddr()).Msg("WebSocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug().Str("remote", client.remoteAddr()).Msg("WebSocket client unregistered")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn().Str("remote", client.remoteAddr()).Msg("WebSocket client send buffer full, removing")
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastFacts queues facts for every client without blocking.
func (h *Hub) BroadcastFacts(facts device.Facts) error {
	return h.enqueue("facts", facts)
}

// BroadcastNode queues a stored node snapshot, sent when its liveness
// changes outside ingest.
func (h *Hub) BroadcastNode(node models.NodeDto) error {
	return h.enqueue("node", node)
}

func (h *Hub) BroadcastNodeRemoved(nodeID string) error {
	return h.enqueue("node_removed", map[string]string{"nodeId": nodeID})
}

func (h *Hub) enqueue(messageType string, payload interface{}) error {
	messageBytes, err := json.Marshal(map[string]interface{}{"type": messageType, "payload": payload})
	if err != nil {
		return fmt.Errorf("failed to marshal %s for broadcast: %w", messageType, err)
	}

	select {
	case h.broadcast <- messageBytes:
		return nil
	default:
		return ErrBroadcastQueueFull
	}
}
