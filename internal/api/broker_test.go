package api

import (
	"testing"

	"seatwatch/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	evt := RouteEvent{Type: "route.found", Route: model.MonitoredRoute{ID: 42}}
	b.Publish(evt)

	select {
	case got := <-ch:
		if got.Type != "route.found" || got.Route.ID != 42 {
			t.Fatalf("wrong event: %+v", got)
		}
	default:
		t.Fatalf("expected a buffered event")
	}
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	b.Publish(RouteEvent{Type: "route.expired"})
	for _, ch := range []chan RouteEvent{a, c} {
		select {
		case got := <-ch:
			if got.Type != "route.expired" {
				t.Fatalf("wrong event: %+v", got)
			}
		default:
			t.Fatalf("each subscriber must receive the event")
		}
	}
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// fill the buffer and keep publishing; Publish must not block
	for i := 0; i < 100; i++ {
		b.Publish(RouteEvent{Type: "route.found"})
	}
}

func TestBrokerUnsubscribeCloses(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	// publishing after unsubscribe is a no-op
	b.Publish(RouteEvent{Type: "route.found"})
	// unsubscribing twice must not panic
	b.Unsubscribe(ch)
}
