// SPDX-License-Identifier: MIT

// Package push forwards bus events to browser clients over a publish-only
// websocket channel.
package push

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/metrics"
)

// Hub maintains the set of connected clients and broadcasts events to them.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan events.Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewHub creates a push hub. Attach it to a bus with Attach and start it
// with Run.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan events.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log.WithComponent("push"),
	}
}

// Attach registers the hub as a bus subscriber so every catalog event is
// forwarded to connected clients.
func (h *Hub) Attach(bus *events.Bus) {
	bus.Subscribe(func(ev events.Event) {
		select {
		case h.broadcast <- ev:
		default:
			metrics.RecordEventDropped(ev.Name)
		}
	})
}

// Run processes client lifecycle and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetPushClients(n)
			h.logger.Info().Int("clients", n).Msg("push client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.SetPushClients(n)
			h.logger.Info().Int("clients", n).Msg("push client disconnected")

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client: drop it rather than buffer without bound.
					go func(c *Client) { h.unregister <- c }(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.SetPushClients(0)
}
