package regiojet

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestSearchRoutesFiltersToRequestedDate(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/routes/search/simple" {
			t.Errorf("wrong endpoint %s", r.URL.Path)
		}
		if r.URL.Query().Get("tariffs") != "REGULAR" {
			t.Errorf("missing tariffs param: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"routes": [
			{"id": 111, "departureTime": "2025-08-15T08:00:00+02:00", "arrivalTime": "2025-08-15T10:30:00+02:00",
			 "departureStationId": 372825000, "arrivalStationId": 1841058000,
			 "freeSeatsCount": 12, "vehicleTypes": ["TRAIN"]},
			{"id": 222, "departureTime": "2025-08-16T00:15:00+02:00", "arrivalTime": "2025-08-16T02:45:00+02:00",
			 "departureStationId": 372825000, "arrivalStationId": 1841058000,
			 "freeSeatsCount": 3, "vehicleTypes": ["BUS"]},
			{"id": 333, "departureTime": "not a time", "arrivalTime": "2025-08-15T12:00:00+02:00",
			 "departureStationId": 372825000, "arrivalStationId": 1841058000,
			 "freeSeatsCount": 1, "vehicleTypes": ["TRAIN"]}
		]}`))
	})
	defer ts.Close()

	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	routes, err := c.SearchRoutes(context.Background(), "10202000", "10202003", "CITY", "CITY", date)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// the spillover into the next day and the unparsable entry are dropped
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d: %+v", len(routes), routes)
	}
	r := routes[0]
	if r.RouteID != "111" || r.FreeSeats != 12 || r.FromStationID != "372825000" {
		t.Fatalf("wrong route: %+v", r)
	}
	if len(r.VehicleTypes) != 1 || r.VehicleTypes[0] != "TRAIN" {
		t.Fatalf("wrong vehicle types: %+v", r.VehicleTypes)
	}
}

func TestSearchRoutesUnexpectedShape(t *testing.T) {
	for _, body := range []string{`[]`, `{"other": 1}`, `"nope"`} {
		c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		routes, err := c.SearchRoutes(context.Background(), "1", "2", "CITY", "CITY", time.Now())
		ts.Close()
		if err != nil {
			t.Fatalf("body %q: %v", body, err)
		}
		if len(routes) != 0 {
			t.Fatalf("body %q: expected empty list, got %+v", body, routes)
		}
	}
}

func TestSearchRoutesNotFound(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer ts.Close()

	routes, err := c.SearchRoutes(context.Background(), "1", "2", "CITY", "CITY", time.Now())
	if err != nil || len(routes) != 0 {
		t.Fatalf("404 search reads as no connections: %v %+v", err, routes)
	}
}
