package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"seatwatch/internal/model"
)

func sampleLocations() []model.Location {
	return []model.Location{
		{ID: "10202000", Name: "Brno", Type: "CITY", NormalizedName: "brno"},
		{ID: "372825000", Name: "Brno - hl. nádraží", Type: "STATION", NormalizedName: "brno - hl. nadrazi"},
	}
}

func TestLocationsFetchesOnceAndMemoizes(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]model.Location, error) {
		calls++
		return sampleLocations(), nil
	}
	l := NewLocations(NewMemoryStore(), fetch, time.Hour, time.Hour)
	ctx := context.Background()

	if got := l.Get(ctx); len(got) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(got))
	}
	l.Get(ctx)
	l.Get(ctx)
	if calls != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", calls)
	}
}

func TestLocationsReadsSharedStoreFirst(t *testing.T) {
	st := NewMemoryStore()
	b, _ := json.Marshal(sampleLocations())
	st.Set(context.Background(), "regiojet_locations", b, time.Hour)

	fetch := func(ctx context.Context) ([]model.Location, error) {
		t.Fatal("must not hit upstream when the shared store has a valid copy")
		return nil, nil
	}
	l := NewLocations(st, fetch, time.Hour, time.Hour)
	if got := l.Get(context.Background()); len(got) != 2 {
		t.Fatalf("expected cached locations, got %d", len(got))
	}
}

func TestLocationsInvalidCachedCopyRefetches(t *testing.T) {
	st := NewMemoryStore()
	bad := sampleLocations()
	bad[1].Type = "AIRPORT" // one bad record poisons the whole copy
	b, _ := json.Marshal(bad)
	st.Set(context.Background(), "regiojet_locations", b, time.Hour)

	calls := 0
	fetch := func(ctx context.Context) ([]model.Location, error) {
		calls++
		return sampleLocations(), nil
	}
	l := NewLocations(st, fetch, time.Hour, time.Hour)
	got := l.Get(context.Background())
	if calls != 1 {
		t.Fatalf("invalid cache must force a refetch, fetches=%d", calls)
	}
	if len(got) != 2 || got[1].Type != "STATION" {
		t.Fatalf("expected the fresh copy, got %+v", got)
	}
}

func TestLocationsServesLastGoodOnFailure(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) ([]model.Location, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("upstream down")
		}
		return sampleLocations(), nil
	}
	// zero memo TTL clamps to ttl; use a tiny ttl so the second Get refetches
	l := NewLocations(NewMemoryStore(), fetch, time.Millisecond, time.Millisecond)
	ctx := context.Background()

	first := l.Get(ctx)
	if len(first) != 2 {
		t.Fatalf("expected initial fetch to succeed")
	}
	time.Sleep(5 * time.Millisecond)
	second := l.Get(ctx)
	if calls < 2 {
		t.Fatalf("expected a refresh attempt")
	}
	if len(second) != 2 {
		t.Fatalf("failed refresh must serve the previous copy, got %+v", second)
	}
}

func TestLocationsEmptyWhenNeverFetched(t *testing.T) {
	fetch := func(ctx context.Context) ([]model.Location, error) {
		return nil, errors.New("upstream down")
	}
	l := NewLocations(NewMemoryStore(), fetch, time.Hour, time.Hour)
	got := l.Get(context.Background())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %+v", got)
	}
}

func TestNameMap(t *testing.T) {
	fetch := func(ctx context.Context) ([]model.Location, error) {
		return sampleLocations(), nil
	}
	l := NewLocations(NewMemoryStore(), fetch, time.Hour, time.Hour)
	names := l.NameMap(context.Background())
	if names["10202000"] != "Brno" || names["372825000"] != "Brno - hl. nádraží" {
		t.Fatalf("wrong name map: %+v", names)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	st.Set(ctx, "k", []byte("v"), 10*time.Millisecond)

	if _, ok, _ := st.Get(ctx, "k"); !ok {
		t.Fatalf("expected fresh entry to be readable")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatalf("expected entry to expire")
	}
}
