package monitor

import (
	"context"
	"log"
	"time"

	"seatwatch/internal/metrics"
	"seatwatch/internal/model"
	"seatwatch/internal/store"
)

// Sweeper expires routes whose departure has passed. It runs on its own
// schedule, independent of the check loop, and covers FOUND routes too:
// a found-but-departed route must stop being restart-eligible.
type Sweeper struct {
	Store    store.Store
	Events   EventSink
	Interval time.Duration
	Stop     chan struct{}
}

func NewSweeper(s store.Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &Sweeper{Store: s, Interval: interval, Stop: make(chan struct{})}
}

func (s *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	}()
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	routes, err := s.Store.ListDepartedRoutes(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweeper: listing departed routes failed: %v", err)
		return
	}
	if len(routes) == 0 {
		return
	}
	expired := 0
	for _, r := range routes {
		if err := s.Store.MarkExpired(ctx, r.ID); err != nil {
			log.Printf("sweeper: expiring route %d failed: %v", r.ID, err)
			continue
		}
		expired++
		metrics.RoutesExpired.Inc()
		if s.Events != nil {
			r.Status = model.StatusExpired
			s.Events.RouteEvent(r, "route.expired")
		}
	}
	log.Printf("sweeper: expired %d of %d departed routes", expired, len(routes))
}
