package store

import (
	"context"
	"errors"
	"time"

	"seatwatch/internal/model"
)

// Store is the persistence interface owning MonitoredRoute, Subscription
// and the notification queue. It is the only writer of route state; the
// checker and dispatcher consume route snapshots read through it.
type Store interface {
	// Routes
	GetOrCreateRoute(ctx context.Context, in model.RouteInput) (model.MonitoredRoute, error)
	GetRoute(ctx context.Context, id int64) (model.MonitoredRoute, error)
	ListMonitoringRoutes(ctx context.Context) ([]model.MonitoredRoute, error)
	StampLastChecked(ctx context.Context, ids []int64, at time.Time) error
	// MarkFound transitions MONITORING -> FOUND and reports whether this
	// call performed the transition. Already FOUND or EXPIRED is a no-op.
	MarkFound(ctx context.Context, id int64) (bool, error)
	// MarkExpired transitions any non-EXPIRED state to EXPIRED; idempotent.
	MarkExpired(ctx context.Context, id int64) error
	// ReactivateRoute transitions FOUND -> MONITORING and resets
	// last_checked_at. ErrConflict if the route is not currently FOUND.
	ReactivateRoute(ctx context.Context, id int64, at time.Time) error
	ListDepartedRoutes(ctx context.Context, before time.Time) ([]model.MonitoredRoute, error)

	// Subscriptions
	AddSubscription(ctx context.Context, userID, routeID int64) (model.Subscription, error)
	// RemoveSubscription deletes the subscription and, when it was the
	// route's last one, the route itself, atomically. ErrNotFound when no
	// such subscription exists.
	RemoveSubscription(ctx context.Context, userID, routeID int64) error
	GetSubscription(ctx context.Context, userID, routeID int64) (model.Subscription, error)
	ListUserRoutes(ctx context.Context, userID int64) ([]model.MonitoredRouteInfo, error)
	VerifiedSubscribers(ctx context.Context, routeID int64) ([]model.User, error)

	// Users
	EnsureUser(ctx context.Context, email string) (model.User, error)

	// Notification queue
	EnqueueNotification(ctx context.Context, routeID int64, recipient, subject, body string) (string, error)
	FetchDueNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error
	FailNotification(ctx context.Context, id string, lastError string) error
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a state transition attempted from the wrong state.
	ErrConflict = errors.New("conflict")
)
