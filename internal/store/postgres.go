package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"seatwatch/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order. Dev helper;
// production schemas are managed externally.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", n, err)
		}
	}
	return nil
}

const routeCols = `id, regiojet_route_id, from_location_id, from_location_type, to_location_id, to_location_type, departure_at, arrival_at, status, last_checked_at, created_at, updated_at`

func scanRoute(row interface{ Scan(...any) error }) (model.MonitoredRoute, error) {
	var r model.MonitoredRoute
	var arrival, lastChecked sql.NullTime
	err := row.Scan(&r.ID, &r.RegiojetRouteID, &r.FromLocationID, &r.FromLocationType,
		&r.ToLocationID, &r.ToLocationType, &r.DepartureAt, &arrival, &r.Status,
		&lastChecked, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	if arrival.Valid {
		t := arrival.Time
		r.ArrivalAt = &t
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		r.LastCheckedAt = &t
	}
	return r, nil
}

// GetOrCreateRoute upserts on the segment key. An existing FOUND or EXPIRED
// row is reactivated to MONITORING; a concurrent duplicate insert resolves
// to the same row through the ON CONFLICT clause.
func (p *Postgres) GetOrCreateRoute(ctx context.Context, in model.RouteInput) (model.MonitoredRoute, error) {
	row := p.db.QueryRowContext(ctx, `
        INSERT INTO monitored_routes
            (regiojet_route_id, from_location_id, from_location_type, to_location_id, to_location_type, departure_at, arrival_at, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'MONITORING')
        ON CONFLICT (regiojet_route_id, from_location_id, to_location_id)
        DO UPDATE SET status='MONITORING', updated_at=now()
        RETURNING `+routeCols,
		in.RegiojetRouteID, in.FromLocationID, in.FromLocationType,
		in.ToLocationID, in.ToLocationType, in.DepartureAt.UTC(), nullTime(in.ArrivalAt))
	return scanRoute(row)
}

func (p *Postgres) GetRoute(ctx context.Context, id int64) (model.MonitoredRoute, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM monitored_routes WHERE id=$1`, id)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListMonitoringRoutes(ctx context.Context) ([]model.MonitoredRoute, error) {
	return p.listRoutes(ctx, `SELECT `+routeCols+` FROM monitored_routes WHERE status='MONITORING' ORDER BY id`)
}

func (p *Postgres) ListDepartedRoutes(ctx context.Context, before time.Time) ([]model.MonitoredRoute, error) {
	return p.listRoutes(ctx, `SELECT `+routeCols+` FROM monitored_routes WHERE status<>'EXPIRED' AND departure_at < $1 ORDER BY id`, before.UTC())
}

func (p *Postgres) listRoutes(ctx context.Context, q string, args ...any) ([]model.MonitoredRoute, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MonitoredRoute{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) StampLastChecked(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	ph := make([]string, len(ids))
	args := []any{at.UTC()}
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE monitored_routes SET last_checked_at=$1, updated_at=now() WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	return err
}

func (p *Postgres) MarkFound(ctx context.Context, id int64) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE monitored_routes SET status='FOUND', updated_at=now() WHERE id=$1 AND status='MONITORING'`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return true, nil
	}
	if _, err := p.GetRoute(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (p *Postgres) MarkExpired(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE monitored_routes SET status='EXPIRED', updated_at=now() WHERE id=$1 AND status<>'EXPIRED'`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = p.GetRoute(ctx, id)
	return err
}

func (p *Postgres) ReactivateRoute(ctx context.Context, id int64, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE monitored_routes SET status='MONITORING', last_checked_at=$2, updated_at=now() WHERE id=$1 AND status='FOUND'`, id, at.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := p.GetRoute(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// AddSubscription is an idempotent create-or-return; a concurrent duplicate
// insert resolves through ON CONFLICT DO NOTHING plus a re-read.
func (p *Postgres) AddSubscription(ctx context.Context, userID, routeID int64) (model.Subscription, error) {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO user_route_subscriptions (user_id, route_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, userID, routeID)
	if err != nil {
		return model.Subscription{}, err
	}
	return p.GetSubscription(ctx, userID, routeID)
}

func (p *Postgres) GetSubscription(ctx context.Context, userID, routeID int64) (model.Subscription, error) {
	var s model.Subscription
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, route_id, created_at FROM user_route_subscriptions WHERE user_id=$1 AND route_id=$2`,
		userID, routeID).Scan(&s.UserID, &s.RouteID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// RemoveSubscription runs delete -> recount -> conditional route delete in
// one transaction so a partially applied cancel can never strand a route.
func (p *Postgres) RemoveSubscription(ctx context.Context, userID, routeID int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM user_route_subscriptions WHERE user_id=$1 AND route_id=$2`, userID, routeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	var remaining int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM user_route_subscriptions WHERE route_id=$1`, routeID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM monitored_routes WHERE id=$1`, routeID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) ListUserRoutes(ctx context.Context, userID int64) ([]model.MonitoredRouteInfo, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT r.id, r.regiojet_route_id, r.from_location_id, r.from_location_type,
               r.to_location_id, r.to_location_type, r.departure_at, r.arrival_at, r.status, s.created_at
        FROM user_route_subscriptions s
        JOIN monitored_routes r ON r.id = s.route_id
        WHERE s.user_id=$1
        ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MonitoredRouteInfo{}
	for rows.Next() {
		var info model.MonitoredRouteInfo
		var arrival sql.NullTime
		if err := rows.Scan(&info.ID, &info.RegiojetRouteID, &info.FromLocationID, &info.FromLocationType,
			&info.ToLocationID, &info.ToLocationType, &info.DepartureAt, &arrival, &info.Status, &info.SubscribedAt); err != nil {
			return nil, err
		}
		if arrival.Valid {
			t := arrival.Time
			info.ArrivalAt = &t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (p *Postgres) VerifiedSubscribers(ctx context.Context, routeID int64) ([]model.User, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT u.id, u.email, u.is_verified
        FROM users u
        JOIN user_route_subscriptions s ON s.user_id = u.id
        WHERE s.route_id=$1 AND u.is_verified`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Verified); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// EnsureUser get-or-creates a subscriber record. Addresses arrive already
// authenticated by the outer auth layer, so new rows start verified.
func (p *Postgres) EnsureUser(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := p.db.QueryRowContext(ctx, `
        INSERT INTO users (email, is_verified) VALUES ($1, true)
        ON CONFLICT (email) DO UPDATE SET email=EXCLUDED.email
        RETURNING id, email, is_verified`, email).Scan(&u.ID, &u.Email, &u.Verified)
	return u, err
}

func (p *Postgres) EnqueueNotification(ctx context.Context, routeID int64, recipient, subject, body string) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO notifications (id, route_id, recipient, subject, body, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,'pending',0,now())`, id, routeID, recipient, subject, body)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
        SELECT id, route_id, recipient, subject, body, status, attempts
        FROM notifications
        WHERE status IN ('pending','retry') AND next_attempt_at <= now()
        ORDER BY next_attempt_at
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RouteID, &n.Recipient, &n.Subject, &n.Body, &n.Status, &n.Attempts); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkNotification(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE notifications SET status='sent', attempts=attempts+1, sent_at=now(), last_error='' WHERE id=$1`, id)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3 WHERE id=$1`,
		id, next.UTC(), lastError)
	return err
}

func (p *Postgres) FailNotification(ctx context.Context, id string, lastError string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET status='failed', attempts=attempts+1, last_error=$2 WHERE id=$1`, id, lastError)
	return err
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
