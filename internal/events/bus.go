// SPDX-License-Identifier: MIT

package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/metrics"
)

// Event is one published signal. Payload holds scalars only.
type Event struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"`
}

// Handler is an in-process subscriber callback.
type Handler func(Event)

// subscriberBuffer is the per-subscriber queue depth before drops.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// Bus fans events out to registered subscribers. Each subscriber consumes
// from its own buffered queue on its own goroutine, so one slow consumer
// cannot stall publishers; overflowing events are dropped and counted.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	logger zerolog.Logger
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{logger: log.WithComponent("events")}
}

// Subscribe registers a callback invoked for every published event.
// Registration happens at init; there is no unsubscribe short of Close.
func (b *Bus) Subscribe(fn Handler) {
	s := &subscriber{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go func() {
		defer close(s.done)
		for ev := range s.ch {
			fn(ev)
		}
	}()
}

// Emit publishes an event. Unknown event names are rejected, unknown payload
// keys are dropped with a warning; both keep the catalog authoritative.
func (b *Bus) Emit(name string, payload map[string]any) {
	allowed, ok := catalog[name]
	if !ok {
		b.logger.Warn().Str("event", name).Msg("dropping event not in catalog")
		return
	}

	clean := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, ok := allowed[k]; !ok {
			b.logger.Warn().Str("event", name).Str("key", k).Msg("dropping payload key not in catalog")
			continue
		}
		clean[k] = v
	}

	ev := Event{Name: name, Payload: clean, At: time.Now().UTC()}

	// The read lock is held across the sends so Close cannot close a queue
	// mid-publish. Sends never block, so this cannot stall other publishers.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	metrics.RecordEventPublished(name)
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			metrics.RecordEventDropped(name)
		}
	}
}

// Close stops delivery and waits for subscriber goroutines to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	for _, s := range subs {
		close(s.ch)
	}
	b.mu.Unlock()

	for _, s := range subs {
		<-s.done
	}
}
