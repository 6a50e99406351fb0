package monitor

import (
	"context"
	"testing"
	"time"

	"seatwatch/internal/lease"
	"seatwatch/internal/model"
	"seatwatch/internal/notify"
	"seatwatch/internal/regiojet"
	"seatwatch/internal/store"
)

type recordedEvent struct {
	route model.MonitoredRoute
	event string
}

type recordSink struct {
	events []recordedEvent
}

func (r *recordSink) RouteEvent(route model.MonitoredRoute, event string) {
	r.events = append(r.events, recordedEvent{route, event})
}

func newTestScheduler(m *store.Memory, checker Checker) *Scheduler {
	d := notify.NewDispatcher(m, testLocations(), time.UTC)
	return NewScheduler(m, checker, d, lease.NewMemory(), time.Minute, 45*time.Second, 0)
}

func TestCheckRouteMarksFoundAndNotifies(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	ana := m.AddUser("ana@example.com", true)
	bob := m.AddUser("bob@example.com", true)
	carol := m.AddUser("carol@example.com", false)
	r, _ := m.GetOrCreateRoute(ctx, routeInput("7874066325"))
	m.AddSubscription(ctx, ana.ID, r.ID)
	m.AddSubscription(ctx, bob.ID, r.ID)
	m.AddSubscription(ctx, carol.ID, r.ID)

	checker := &fakeChecker{available: map[string]*model.Availability{
		"7874066325": {FreeSeats: 3, PriceFrom: 199, BookingLink: "https://regiojet.cz/?x=1"},
	}}
	s := newTestScheduler(m, checker)
	sink := &recordSink{}
	s.Events = sink

	s.checkRoute(r.ID)

	got, _ := m.GetRoute(ctx, r.ID)
	if got.Status != model.StatusFound {
		t.Fatalf("expected FOUND, got %s", got.Status)
	}
	// one notification per verified subscriber, the unverified one excluded
	due, _ := m.FetchDueNotifications(ctx, 10)
	if len(due) != 2 {
		t.Fatalf("expected 2 queued notifications, got %d", len(due))
	}
	recipients := map[string]bool{}
	for _, n := range due {
		recipients[n.Recipient] = true
	}
	if !recipients["ana@example.com"] || !recipients["bob@example.com"] || recipients["carol@example.com"] {
		t.Fatalf("wrong recipients: %+v", recipients)
	}
	if len(sink.events) != 1 || sink.events[0].event != "route.found" {
		t.Fatalf("expected one route.found event, got %+v", sink.events)
	}
}

func TestCheckRouteNoSeatsLeavesMonitoring(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	ana := m.AddUser("ana@example.com", true)
	r, _ := m.GetOrCreateRoute(ctx, routeInput("7874066325"))
	m.AddSubscription(ctx, ana.ID, r.ID)

	s := newTestScheduler(m, &fakeChecker{})
	s.checkRoute(r.ID)

	got, _ := m.GetRoute(ctx, r.ID)
	if got.Status != model.StatusMonitoring {
		t.Fatalf("expected MONITORING, got %s", got.Status)
	}
	due, _ := m.FetchDueNotifications(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("no seats must not queue notifications")
	}
}

func TestCheckRouteFailedCheckKeepsMonitoring(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	r, _ := m.GetOrCreateRoute(ctx, routeInput("7874066325"))

	s := newTestScheduler(m, &fakeChecker{err: regiojet.ErrUpstream})
	s.checkRoute(r.ID)

	got, _ := m.GetRoute(ctx, r.ID)
	if got.Status != model.StatusMonitoring {
		t.Fatalf("a failed check must leave the route MONITORING, got %s", got.Status)
	}
}

func TestCheckRouteSkipsHeldLease(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	ana := m.AddUser("ana@example.com", true)
	r, _ := m.GetOrCreateRoute(ctx, routeInput("7874066325"))
	m.AddSubscription(ctx, ana.ID, r.ID)

	checker := &fakeChecker{available: map[string]*model.Availability{
		"7874066325": {FreeSeats: 3},
	}}
	s := newTestScheduler(m, checker)
	s.Leases.Acquire(ctx, leaseKey(r.ID), time.Minute)

	s.checkRoute(r.ID)

	if checker.calls != 0 {
		t.Fatalf("a held lease must skip the check, calls=%d", checker.calls)
	}
	got, _ := m.GetRoute(ctx, r.ID)
	if got.Status != model.StatusMonitoring {
		t.Fatalf("skipped route must stay MONITORING")
	}
}

func TestCheckRouteSkipsNonMonitoring(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	r, _ := m.GetOrCreateRoute(ctx, routeInput("7874066325"))
	m.MarkFound(ctx, r.ID)

	checker := &fakeChecker{available: map[string]*model.Availability{
		"7874066325": {FreeSeats: 3},
	}}
	s := newTestScheduler(m, checker)
	s.checkRoute(r.ID)

	if checker.calls != 0 {
		t.Fatalf("a FOUND route must not be checked, calls=%d", checker.calls)
	}
	due, _ := m.FetchDueNotifications(ctx, 10)
	if len(due) != 0 {
		t.Fatalf("a FOUND route must not notify again")
	}
}

func TestTickStampsEveryMonitoringRoute(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	r1, _ := m.GetOrCreateRoute(ctx, routeInput("1111"))
	r2, _ := m.GetOrCreateRoute(ctx, routeInput("2222"))
	found, _ := m.GetOrCreateRoute(ctx, routeInput("3333"))
	m.MarkFound(ctx, found.ID)

	s := newTestScheduler(m, &fakeChecker{})
	s.tick()

	for _, id := range []int64{r1.ID, r2.ID} {
		got, _ := m.GetRoute(ctx, id)
		if got.LastCheckedAt == nil {
			t.Fatalf("route %d missing last_checked_at after tick", id)
		}
	}
	gotFound, _ := m.GetRoute(ctx, found.ID)
	if gotFound.LastCheckedAt != nil {
		t.Fatalf("a FOUND route is not part of the tick")
	}
}
