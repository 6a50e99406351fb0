package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"seatwatch/internal/lease"
	"seatwatch/internal/metrics"
	"seatwatch/internal/model"
	"seatwatch/internal/notify"
	"seatwatch/internal/store"
)

// Scheduler drives the periodic availability checks. Each tick stamps
// last_checked_at for every MONITORING route in one write, then fans out
// one independent check unit per route; a slow or failing route never
// delays the others. A per-route lease keeps at most one check in flight
// per route across overlapping ticks and across processes.
type Scheduler struct {
	Store      store.Store
	Checker    Checker
	Dispatcher *notify.Dispatcher
	Leases     lease.Lease
	Events     EventSink

	Interval time.Duration
	LeaseTTL time.Duration
	// Limiter bounds upstream requests per second across the fan-out.
	Limiter *rate.Limiter

	Stop chan struct{}
}

func NewScheduler(s store.Store, checker Checker, d *notify.Dispatcher, leases lease.Lease, interval, leaseTTL time.Duration, rps float64) *Scheduler {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if leaseTTL <= 0 {
		leaseTTL = 45 * time.Second
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Scheduler{
		Store: s, Checker: checker, Dispatcher: d, Leases: leases,
		Interval: interval, LeaseTTL: leaseTTL, Limiter: limiter,
		Stop: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	routes, err := s.Store.ListMonitoringRoutes(ctx)
	if err != nil {
		log.Printf("scheduler: listing routes failed: %v", err)
		return
	}
	if len(routes) == 0 {
		return
	}
	ids := make([]int64, len(routes))
	for i, r := range routes {
		ids[i] = r.ID
	}
	if err := s.Store.StampLastChecked(ctx, ids, time.Now().UTC()); err != nil {
		log.Printf("scheduler: stamping last_checked_at failed: %v", err)
		return
	}
	log.Printf("scheduler: dispatching checks for %d routes", len(routes))
	for _, id := range ids {
		go s.checkRoute(id)
	}
}

// checkRoute is one check unit: claim the lease, re-read the route, ask
// upstream, and on a hit dispatch notifications before persisting the
// FOUND transition. A check-failed outcome is only logged; the next tick
// is the retry.
func (s *Scheduler) checkRoute(id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	key := leaseKey(id)
	ok, err := s.Leases.Acquire(ctx, key, s.LeaseTTL)
	if err != nil {
		log.Printf("scheduler: lease acquire for route %d failed: %v", id, err)
		return
	}
	if !ok {
		metrics.Checks.WithLabelValues("skipped").Inc()
		return
	}
	defer func() { _ = s.Leases.Release(ctx, key) }()

	route, err := s.Store.GetRoute(ctx, id)
	if err != nil {
		log.Printf("scheduler: route %d vanished before check: %v", id, err)
		return
	}
	if route.Status != model.StatusMonitoring {
		metrics.Checks.WithLabelValues("skipped").Inc()
		return
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return
		}
	}
	start := time.Now()
	available, details, err := s.Checker.CheckAvailability(ctx, route)
	metrics.CheckDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Checks.WithLabelValues("failed").Inc()
		log.Printf("scheduler: check for route %d failed: %v", id, err)
		return
	}
	if !available {
		metrics.Checks.WithLabelValues("none").Inc()
		return
	}

	log.Printf("scheduler: seats found for route %d (%s), %d free", id, route.RegiojetRouteID, details.FreeSeats)
	s.Dispatcher.Dispatch(ctx, route, *details)

	transitioned, err := s.Store.MarkFound(ctx, id)
	if err != nil {
		log.Printf("scheduler: marking route %d found failed: %v", id, err)
		return
	}
	if transitioned {
		metrics.Checks.WithLabelValues("found").Inc()
		if s.Events != nil {
			route.Status = model.StatusFound
			s.Events.RouteEvent(route, "route.found")
		}
	}
}

func leaseKey(id int64) string {
	return fmt.Sprintf("route-check:%d", id)
}
