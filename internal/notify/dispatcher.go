// Package notify turns a found-seats event into per-subscriber queued
// deliveries and drains the queue with bounded retries.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"seatwatch/internal/cache"
	"seatwatch/internal/metrics"
	"seatwatch/internal/model"
	"seatwatch/internal/store"
)

// Dispatcher fans a found event out to the route's verified subscribers.
// It runs at the moment of the MONITORING -> FOUND transition and only
// enqueues; delivery and retries happen in the Worker.
type Dispatcher struct {
	Store     store.Store
	Locations *cache.Locations
	// TZ is the timezone departure/arrival times are rendered in.
	TZ *time.Location
}

func NewDispatcher(s store.Store, locations *cache.Locations, tz *time.Location) *Dispatcher {
	if tz == nil {
		tz = time.UTC
	}
	return &Dispatcher{Store: s, Locations: locations, TZ: tz}
}

// Dispatch snapshots the route's verified subscribers and enqueues one
// message per subscriber. The snapshot is point-in-time: a subscriber
// added while deliveries are in flight is not guaranteed this
// notification. Returns the number of messages enqueued; a cache miss on
// location names never blocks dispatch, ids are used instead.
func (d *Dispatcher) Dispatch(ctx context.Context, route model.MonitoredRoute, avail model.Availability) int {
	subscribers, err := d.Store.VerifiedSubscribers(ctx, route.ID)
	if err != nil {
		log.Printf("notify: listing subscribers for route %d failed: %v", route.ID, err)
		return 0
	}
	if len(subscribers) == 0 {
		log.Printf("notify: seats found for route %d but no verified subscribers", route.ID)
		return 0
	}

	names := d.Locations.NameMap(ctx)
	fromName := locationName(names, route.FromLocationID)
	toName := locationName(names, route.ToLocationID)

	departure := route.DepartureAt.In(d.TZ).Format("02.01.2006 15:04")
	arrival := "(unknown)"
	if route.ArrivalAt != nil {
		arrival = route.ArrivalAt.In(d.TZ).Format("02.01.2006 15:04")
	}

	subject := fmt.Sprintf("Seats available: %s -> %s (%s)", fromName, toName, departure)
	body := fmt.Sprintf(`Hello,

seats are available on a connection you are watching!

Route: %s -> %s
Departure: %s
Arrival: %s

Free seats: %d
Price from: %.0f CZK

Booking link: %s

Ticket Sniper
`, fromName, toName, departure, arrival, avail.FreeSeats, avail.PriceFrom, avail.BookingLink)

	enqueued := 0
	for _, u := range subscribers {
		if _, err := d.Store.EnqueueNotification(ctx, route.ID, u.Email, subject, body); err != nil {
			log.Printf("notify: enqueue for %s on route %d failed: %v", u.Email, route.ID, err)
			continue
		}
		metrics.Notifications.WithLabelValues("enqueued").Inc()
		enqueued++
	}
	log.Printf("notify: enqueued %d notifications for route %d", enqueued, route.ID)
	return enqueued
}

func locationName(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return "ID " + id
}
