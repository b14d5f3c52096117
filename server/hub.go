package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/phylogeny"
)

// Websocket message types
const (
	MessageCacheStatus      = "cache_status"
	MessageRebuilt          = "phylogeny_rebuilt"
	MessageCacheCleared     = "phylogeny_cleared"
	broadcastBufferCapacity = 64
)

// RebuiltMessage is pushed to every client after the phylogeny cache rebuilds.
type RebuiltMessage struct {
	Type       string    `json:"type"`
	Watermark  time.Time `json:"watermark"`
	NodeCount  int       `json:"node_count"`
	DurationMS int64     `json:"duration_ms"`
}

// StatusMessage carries a cache snapshot. It is the first message a client sees.
type StatusMessage struct {
	Type  string             `json:"type"`
	Cache phylogeny.Snapshot `json:"cache"`
}

// clientCounter is the part of the metrics collector the hub updates.
type clientCounter interface {
	Set(float64)
}

// Hub tracks websocket clients and fans out cache events.
// All client map access happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan interface{}
	done       chan struct{}
	count      clientCounter
	log        *zap.SugaredLogger
}

// NewHub creates a hub. count may be nil.
func NewHub(log *zap.SugaredLogger, count clientCounter) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan interface{}, broadcastBufferCapacity),
		done:       make(chan struct{}),
		count:      count,
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.updateCount()
			return

		case client := <-h.register:
			h.clients[client] = true
			h.updateCount()
			h.log.Debugw("Client registered",
				logger.FieldClientID, client.id,
				logger.FieldCount, len(h.clients),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.updateCount()
				h.log.Debugw("Client unregistered",
					logger.FieldClientID, client.id,
					logger.FieldCount, len(h.clients),
				)
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client, drop it rather than block everyone else
					h.log.Warnw("Dropping slow websocket client", logger.FieldClientID, client.id)
					delete(h.clients, client)
					client.close()
				}
			}
			h.updateCount()
		}
	}
}

// Broadcast queues msg for every connected client without blocking.
// Reports false when the broadcast buffer is full and msg was dropped.
func (h *Hub) Broadcast(msg interface{}) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.log.Warnw("Broadcast buffer full, dropping message")
		return false
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client if the hub is still running.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// NotifyRebuilt is a phylogeny.RebuildListener.
func (h *Hub) NotifyRebuilt(ev phylogeny.RebuildEvent) {
	h.Broadcast(RebuiltMessage{
		Type:       MessageRebuilt,
		Watermark:  ev.Watermark,
		NodeCount:  ev.NodeCount,
		DurationMS: ev.Duration.Milliseconds(),
	})
}

func (h *Hub) updateCount() {
	if h.count != nil {
		h.count.Set(float64(len(h.clients)))
	}
}
