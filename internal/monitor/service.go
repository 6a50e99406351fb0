// Package monitor is the route-monitoring engine: the monitor/restart/
// cancel operations, the periodic check scheduler and the expiry sweeper.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seatwatch/internal/cache"
	"seatwatch/internal/model"
	"seatwatch/internal/store"
)

var (
	// ErrNotSubscribed rejects a restart by a user without a subscription
	// on the route.
	ErrNotSubscribed = errors.New("monitor: user not subscribed to route")
	// ErrNotRestartable rejects a restart of a route that is not FOUND.
	ErrNotRestartable = errors.New("monitor: route is not in FOUND state")
)

// Checker is the availability protocol the engine depends on; the
// regiojet client satisfies it.
type Checker interface {
	CheckAvailability(ctx context.Context, route model.MonitoredRoute) (bool, *model.Availability, error)
}

// EventSink receives route state-change events for the reporting stream.
// Optional; a nil sink drops them.
type EventSink interface {
	RouteEvent(route model.MonitoredRoute, event string)
}

type Service struct {
	Store     store.Store
	Checker   Checker
	Locations *cache.Locations
}

func NewService(s store.Store, checker Checker, locations *cache.Locations) *Service {
	return &Service{Store: s, Checker: checker, Locations: locations}
}

// MonitorResult is the outcome of a monitor request: exactly one of
// "seats are available right now" (Available, with Details) or
// "monitoring was created" (Route set).
type MonitorResult struct {
	Available bool
	Details   *model.Availability
	Route     *model.MonitoredRoute
}

// Monitor resolves a monitor request. The initial check runs first; a
// failed check surfaces as an error rather than silently creating
// monitoring, so the caller always learns which of the two outcomes
// happened.
func (s *Service) Monitor(ctx context.Context, userID int64, in model.RouteInput) (MonitorResult, error) {
	probe := model.MonitoredRoute{
		RegiojetRouteID:  in.RegiojetRouteID,
		FromLocationID:   in.FromLocationID,
		FromLocationType: in.FromLocationType,
		ToLocationID:     in.ToLocationID,
		ToLocationType:   in.ToLocationType,
		DepartureAt:      in.DepartureAt,
		ArrivalAt:        in.ArrivalAt,
	}
	available, details, err := s.Checker.CheckAvailability(ctx, probe)
	if err != nil {
		return MonitorResult{}, fmt.Errorf("initial availability check: %w", err)
	}
	if available {
		return MonitorResult{Available: true, Details: details}, nil
	}
	route, err := s.Store.GetOrCreateRoute(ctx, in)
	if err != nil {
		return MonitorResult{}, fmt.Errorf("get or create route: %w", err)
	}
	if _, err := s.Store.AddSubscription(ctx, userID, route.ID); err != nil {
		return MonitorResult{}, fmt.Errorf("add subscription: %w", err)
	}
	return MonitorResult{Route: &route}, nil
}

// RestartResult reports whether monitoring was re-activated. When seats
// are still available nothing changes and Details explains why.
type RestartResult struct {
	Restarted bool
	Details   *model.Availability
}

// Restart re-arms monitoring on a previously FOUND route. Permitted only
// for a subscriber of the route and only from FOUND; a live check runs
// first and a still-available route is left untouched. The sweeper, not
// this path, decides when a past-departure route expires.
func (s *Service) Restart(ctx context.Context, userID, routeID int64) (RestartResult, error) {
	route, err := s.Store.GetRoute(ctx, routeID)
	if err != nil {
		return RestartResult{}, err
	}
	if _, err := s.Store.GetSubscription(ctx, userID, routeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RestartResult{}, ErrNotSubscribed
		}
		return RestartResult{}, err
	}
	if route.Status != model.StatusFound {
		return RestartResult{}, ErrNotRestartable
	}
	available, details, err := s.Checker.CheckAvailability(ctx, route)
	if err != nil {
		return RestartResult{}, fmt.Errorf("restart availability check: %w", err)
	}
	if available {
		return RestartResult{Restarted: false, Details: details}, nil
	}
	if err := s.Store.ReactivateRoute(ctx, routeID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return RestartResult{}, ErrNotRestartable
		}
		return RestartResult{}, err
	}
	return RestartResult{Restarted: true}, nil
}

// Cancel removes the user's subscription; the store deletes the route
// itself when this was its last subscriber.
func (s *Service) Cancel(ctx context.Context, userID, routeID int64) error {
	return s.Store.RemoveSubscription(ctx, userID, routeID)
}

// MonitoredRoutes lists the user's subscriptions with location display
// names resolved where the cache knows them.
func (s *Service) MonitoredRoutes(ctx context.Context, userID int64) ([]model.MonitoredRouteInfo, error) {
	infos, err := s.Store.ListUserRoutes(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := s.Locations.NameMap(ctx)
	for i := range infos {
		infos[i].FromLocationName = names[infos[i].FromLocationID]
		infos[i].ToLocationName = names[infos[i].ToLocationID]
	}
	return infos, nil
}
