package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"seatwatch/internal/model"
)

// Memory is an in-memory store used when no DATABASE_URL is set and by
// the test suites. It implements the same transition and uniqueness rules
// as the Postgres store.
type Memory struct {
	mu     sync.Mutex
	nextID int64

	routes    map[int64]model.MonitoredRoute
	bySegment map[string]int64 // segment key -> route id

	subs map[int64]map[int64]model.Subscription // routeID -> userID -> sub

	users       map[int64]model.User
	userByEmail map[string]int64

	notifications map[string]*memNotification
	notifOrder    []string
}

type memNotification struct {
	model.Notification
	NextAttemptAt time.Time
	LastError     string
	SentAt        *time.Time
}

func NewMemory() *Memory {
	return &Memory{
		routes:        map[int64]model.MonitoredRoute{},
		bySegment:     map[string]int64{},
		subs:          map[int64]map[int64]model.Subscription{},
		users:         map[int64]model.User{},
		userByEmail:   map[string]int64{},
		notifications: map[string]*memNotification{},
	}
}

func segmentKey(routeID, fromID, toID string) string {
	return routeID + "|" + fromID + "|" + toID
}

func (m *Memory) GetOrCreateRoute(ctx context.Context, in model.RouteInput) (model.MonitoredRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := segmentKey(in.RegiojetRouteID, in.FromLocationID, in.ToLocationID)
	if id, ok := m.bySegment[key]; ok {
		r := m.routes[id]
		if r.Status != model.StatusMonitoring {
			r.Status = model.StatusMonitoring
			r.UpdatedAt = time.Now().UTC()
			m.routes[id] = r
		}
		return r, nil
	}
	m.nextID++
	now := time.Now().UTC()
	r := model.MonitoredRoute{
		ID:               m.nextID,
		RegiojetRouteID:  in.RegiojetRouteID,
		FromLocationID:   in.FromLocationID,
		FromLocationType: in.FromLocationType,
		ToLocationID:     in.ToLocationID,
		ToLocationType:   in.ToLocationType,
		DepartureAt:      in.DepartureAt.UTC(),
		ArrivalAt:        in.ArrivalAt,
		Status:           model.StatusMonitoring,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.routes[r.ID] = r
	m.bySegment[key] = r.ID
	return r, nil
}

func (m *Memory) GetRoute(ctx context.Context, id int64) (model.MonitoredRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.MonitoredRoute{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListMonitoringRoutes(ctx context.Context) ([]model.MonitoredRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MonitoredRoute{}
	for _, r := range m.routes {
		if r.Status == model.StatusMonitoring {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListDepartedRoutes(ctx context.Context, before time.Time) ([]model.MonitoredRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MonitoredRoute{}
	for _, r := range m.routes {
		if r.Status != model.StatusExpired && r.DepartureAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) StampLastChecked(ctx context.Context, ids []int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := at.UTC()
	for _, id := range ids {
		if r, ok := m.routes[id]; ok {
			r.LastCheckedAt = &t
			r.UpdatedAt = t
			m.routes[id] = r
		}
	}
	return nil
}

func (m *Memory) MarkFound(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.Status != model.StatusMonitoring {
		return false, nil
	}
	r.Status = model.StatusFound
	r.UpdatedAt = time.Now().UTC()
	m.routes[id] = r
	return true, nil
}

func (m *Memory) MarkExpired(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.StatusExpired {
		r.Status = model.StatusExpired
		r.UpdatedAt = time.Now().UTC()
		m.routes[id] = r
	}
	return nil
}

func (m *Memory) ReactivateRoute(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != model.StatusFound {
		return ErrConflict
	}
	t := at.UTC()
	r.Status = model.StatusMonitoring
	r.LastCheckedAt = &t
	r.UpdatedAt = t
	m.routes[id] = r
	return nil
}

func (m *Memory) AddSubscription(ctx context.Context, userID, routeID int64) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[routeID]; !ok {
		return model.Subscription{}, ErrNotFound
	}
	if m.subs[routeID] == nil {
		m.subs[routeID] = map[int64]model.Subscription{}
	}
	if s, ok := m.subs[routeID][userID]; ok {
		return s, nil
	}
	s := model.Subscription{UserID: userID, RouteID: routeID, CreatedAt: time.Now().UTC()}
	m.subs[routeID][userID] = s
	return s, nil
}

func (m *Memory) GetSubscription(ctx context.Context, userID, routeID int64) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[routeID][userID]; ok {
		return s, nil
	}
	return model.Subscription{}, ErrNotFound
}

func (m *Memory) RemoveSubscription(ctx context.Context, userID, routeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[routeID][userID]; !ok {
		return ErrNotFound
	}
	delete(m.subs[routeID], userID)
	if len(m.subs[routeID]) == 0 {
		delete(m.subs, routeID)
		if r, ok := m.routes[routeID]; ok {
			delete(m.bySegment, segmentKey(r.RegiojetRouteID, r.FromLocationID, r.ToLocationID))
			delete(m.routes, routeID)
		}
	}
	return nil
}

func (m *Memory) ListUserRoutes(ctx context.Context, userID int64) ([]model.MonitoredRouteInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.MonitoredRouteInfo{}
	for routeID, byUser := range m.subs {
		s, ok := byUser[userID]
		if !ok {
			continue
		}
		r := m.routes[routeID]
		out = append(out, model.MonitoredRouteInfo{
			ID:               r.ID,
			RegiojetRouteID:  r.RegiojetRouteID,
			FromLocationID:   r.FromLocationID,
			FromLocationType: r.FromLocationType,
			ToLocationID:     r.ToLocationID,
			ToLocationType:   r.ToLocationType,
			DepartureAt:      r.DepartureAt,
			ArrivalAt:        r.ArrivalAt,
			Status:           r.Status,
			SubscribedAt:     s.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscribedAt.After(out[j].SubscribedAt) })
	return out, nil
}

func (m *Memory) VerifiedSubscribers(ctx context.Context, routeID int64) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.User{}
	for userID := range m.subs[routeID] {
		u, ok := m.users[userID]
		if ok && u.Verified {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) EnsureUser(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.userByEmail[email]; ok {
		return m.users[id], nil
	}
	m.nextID++
	u := model.User{ID: m.nextID, Email: email, Verified: true}
	m.users[u.ID] = u
	m.userByEmail[email] = u.ID
	return u, nil
}

// AddUser seeds a user with an explicit verified flag. Test helper.
func (m *Memory) AddUser(email string, verified bool) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u := model.User{ID: m.nextID, Email: email, Verified: verified}
	m.users[u.ID] = u
	m.userByEmail[email] = u.ID
	return u
}

func (m *Memory) EnqueueNotification(ctx context.Context, routeID int64, recipient, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.notifications[id] = &memNotification{
		Notification: model.Notification{
			ID: id, RouteID: routeID, Recipient: recipient, Subject: subject, Body: body, Status: "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.notifOrder = append(m.notifOrder, id)
	return id, nil
}

func (m *Memory) FetchDueNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	now := time.Now()
	out := []model.Notification{}
	for _, id := range m.notifOrder {
		n := m.notifications[id]
		if n == nil {
			continue
		}
		if (n.Status == "pending" || n.Status == "retry") && !n.NextAttemptAt.After(now) {
			out = append(out, n.Notification)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notifications[id]
	if n == nil {
		return nil
	}
	n.Attempts++
	if success {
		n.Status = "sent"
		now := time.Now()
		n.SentAt = &now
		return nil
	}
	n.Status = "retry"
	n.LastError = lastError
	if nextAttemptAt != nil {
		n.NextAttemptAt = *nextAttemptAt
	} else {
		n.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailNotification(ctx context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notifications[id]
	if n == nil {
		return nil
	}
	n.Attempts++
	n.Status = "failed"
	n.LastError = lastError
	return nil
}

// Notification returns the stored state of one queued message. Test helper.
func (m *Memory) Notification(id string) (model.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notifications[id]
	if n == nil {
		return model.Notification{}, false
	}
	return n.Notification, true
}
