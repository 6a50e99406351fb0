package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"seatwatch/internal/model"
)

const locationsKey = "regiojet_locations"

// FetchFunc loads the full location directory from upstream.
type FetchFunc func(ctx context.Context) ([]model.Location, error)

// Locations is the shared location-name cache: one logical value holding
// the complete directory, refreshed through the shared store on miss or
// TTL expiry. It is constructed once per process and passed by reference;
// there is no package-level instance.
type Locations struct {
	store   Store
	fetch   FetchFunc
	ttl     time.Duration
	memoTTL time.Duration

	mu       sync.Mutex
	memo     []model.Location
	memoAt   time.Time
	lastGood []model.Location
}

// NewLocations builds the cache. memoTTL is clamped to ttl so the
// in-process memo can never outlive the shared copy.
func NewLocations(store Store, fetch FetchFunc, ttl, memoTTL time.Duration) *Locations {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if memoTTL <= 0 || memoTTL > ttl {
		memoTTL = ttl
	}
	return &Locations{store: store, fetch: fetch, ttl: ttl, memoTTL: memoTTL}
}

// Get returns the location directory. Lookup order: in-process memo,
// shared store, upstream fetch. A failed refresh serves the last value
// this process saw; the result is empty only if no fetch has ever
// succeeded anywhere.
func (l *Locations) Get(ctx context.Context) []model.Location {
	l.mu.Lock()
	if l.memo != nil && time.Since(l.memoAt) < l.memoTTL {
		out := l.memo
		l.mu.Unlock()
		return out
	}
	l.mu.Unlock()

	if locs, ok := l.fromStore(ctx); ok {
		l.remember(locs)
		return locs
	}

	locs, err := l.fetch(ctx)
	if err != nil {
		log.Printf("cache: location refresh failed, serving previous value: %v", err)
		return l.previous()
	}
	if err := l.toStore(ctx, locs); err != nil {
		log.Printf("cache: storing locations failed: %v", err)
	}
	l.remember(locs)
	return locs
}

// NameMap returns the id -> display-name view of the directory.
func (l *Locations) NameMap(ctx context.Context) map[string]string {
	locs := l.Get(ctx)
	m := make(map[string]string, len(locs))
	for _, loc := range locs {
		m[loc.ID] = loc.Name
	}
	return m
}

func (l *Locations) fromStore(ctx context.Context) ([]model.Location, bool) {
	b, ok, err := l.store.Get(ctx, locationsKey)
	if err != nil {
		log.Printf("cache: shared store read failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var locs []model.Location
	if err := json.Unmarshal(b, &locs); err != nil {
		log.Printf("cache: cached locations undecodable, refreshing: %v", err)
		return nil, false
	}
	// Re-validate entry by entry: one bad record invalidates the whole
	// cached copy, the directory is never served partially.
	for i, loc := range locs {
		if err := validate(loc); err != nil {
			log.Printf("cache: cached location %d invalid (%v), refreshing", i, err)
			return nil, false
		}
	}
	return locs, true
}

func (l *Locations) toStore(ctx context.Context, locs []model.Location) error {
	b, err := json.Marshal(locs)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, locationsKey, b, l.ttl)
}

func (l *Locations) remember(locs []model.Location) {
	l.mu.Lock()
	l.memo = locs
	l.memoAt = time.Now()
	l.lastGood = locs
	l.mu.Unlock()
}

func (l *Locations) previous() []model.Location {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastGood != nil {
		return l.lastGood
	}
	return []model.Location{}
}

func validate(loc model.Location) error {
	if loc.ID == "" {
		return fmt.Errorf("empty id")
	}
	if loc.Name == "" {
		return fmt.Errorf("empty name")
	}
	if loc.Type != "CITY" && loc.Type != "STATION" {
		return fmt.Errorf("bad type %q", loc.Type)
	}
	return nil
}
