package regiojet

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"seatwatch/internal/model"
)

// SearchRoutes lists the provider's connections between two locations on a
// given date. Entries with missing fields or unparsable timestamps are
// skipped; an unexpected response shape yields an empty list, since there
// is nothing safe to salvage from it.
func (c *Client) SearchRoutes(ctx context.Context, fromID, toID, fromType, toType string, date time.Time) ([]model.AvailableRoute, error) {
	params := url.Values{}
	params.Set("departureDate", date.Format("2006-01-02"))
	params.Set("fromLocationId", fromID)
	params.Set("toLocationId", toID)
	params.Set("fromLocationType", fromType)
	params.Set("toLocationType", toType)
	params.Set("tariffs", "REGULAR")

	status, body, err := c.getJSON(ctx, "/routes/search/simple", params, true)
	if err != nil {
		return nil, err
	}
	if status == 404 {
		return []model.AvailableRoute{}, nil
	}
	obj, ok := body.(map[string]any)
	if !ok {
		log.Printf("regiojet: unexpected route search response shape (%T)", body)
		return []model.AvailableRoute{}, nil
	}
	list, ok := obj["routes"].([]any)
	if !ok {
		log.Printf("regiojet: route search response has no route list")
		return []model.AvailableRoute{}, nil
	}
	out := []model.AvailableRoute{}
	wantDate := date.Format("2006-01-02")
	for _, rv := range list {
		if r, ok := parseSearchRoute(rv, wantDate); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func parseSearchRoute(rv any, wantDate string) (model.AvailableRoute, bool) {
	entry, ok := rv.(map[string]any)
	if !ok {
		return model.AvailableRoute{}, false
	}
	id := idField(entry)
	depStr := stringField(entry, "departureTime")
	arrStr := stringField(entry, "arrivalTime")
	fromStation := stationID(entry, "departureStationId")
	toStation := stationID(entry, "arrivalStationId")
	seats, hasSeats := entry["freeSeatsCount"].(float64)
	typesRaw, hasTypes := entry["vehicleTypes"].([]any)
	if id == "" || depStr == "" || arrStr == "" || fromStation == "" || toStation == "" || !hasSeats || !hasTypes {
		log.Printf("regiojet: skipping search route %q with missing fields", id)
		return model.AvailableRoute{}, false
	}
	dep, err := time.Parse(time.RFC3339, depStr)
	if err != nil {
		log.Printf("regiojet: skipping search route %s, bad departure time %q", id, depStr)
		return model.AvailableRoute{}, false
	}
	arr, err := time.Parse(time.RFC3339, arrStr)
	if err != nil {
		log.Printf("regiojet: skipping search route %s, bad arrival time %q", id, arrStr)
		return model.AvailableRoute{}, false
	}
	// The search spills over into neighbouring days; keep the requested one.
	if dep.Format("2006-01-02") != wantDate {
		return model.AvailableRoute{}, false
	}
	types := make([]string, 0, len(typesRaw))
	for _, tv := range typesRaw {
		if s, ok := tv.(string); ok {
			types = append(types, s)
		}
	}
	return model.AvailableRoute{
		RouteID:       id,
		DepartureTime: dep,
		ArrivalTime:   arr,
		FreeSeats:     int(seats),
		VehicleTypes:  types,
		FromStationID: fromStation,
		ToStationID:   toStation,
	}, true
}

func stationID(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
