package api

import (
	"sync"

	"seatwatch/internal/model"
)

// RouteEvent is one route state change, streamed to the reporting view.
type RouteEvent struct {
	Type  string               `json:"type"`
	Route model.MonitoredRoute `json:"route"`
}

// EventBroker fans route events out to stream subscribers.
type EventBroker interface {
	Subscribe() chan RouteEvent
	Unsubscribe(ch chan RouteEvent)
	Publish(evt RouteEvent)
}

// Broker is the in-process EventBroker, used when no Redis is configured.
type Broker struct {
	mu   sync.Mutex
	subs map[chan RouteEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[chan RouteEvent]struct{}{}}
}

func (b *Broker) Subscribe() chan RouteEvent {
	ch := make(chan RouteEvent, 8)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan RouteEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Broker) Publish(evt RouteEvent) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
