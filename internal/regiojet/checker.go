package regiojet

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"seatwatch/internal/model"
)

// CheckAvailability asks the provider whether the route's segment has free
// seats. The result is fail-closed: a non-object response, a missing
// freeSeatsCount, zero seats or a 404 all read as "not available" with a
// nil error. Transport failures and other error statuses return an error
// wrapping ErrUpstream so callers can distinguish a failed check from a
// negative one.
func (c *Client) CheckAvailability(ctx context.Context, route model.MonitoredRoute) (bool, *model.Availability, error) {
	params := url.Values{}
	params.Set("fromStationId", route.FromLocationID)
	params.Set("toStationId", route.ToLocationID)

	status, body, err := c.getJSON(ctx, "/routes/"+route.RegiojetRouteID+"/simple", params, true)
	if err != nil {
		return false, nil, err
	}
	if status == http.StatusNotFound {
		log.Printf("regiojet: route %s not found upstream (404), treating as unavailable", route.RegiojetRouteID)
		return false, nil, nil
	}
	obj, ok := body.(map[string]any)
	if !ok {
		log.Printf("regiojet: unexpected availability response shape for route %s", route.RegiojetRouteID)
		return false, nil, nil
	}
	freeSeats := intField(obj, "freeSeatsCount")
	if freeSeats <= 0 {
		return false, nil, nil
	}
	return true, &model.Availability{
		FreeSeats:   freeSeats,
		PriceFrom:   floatField(obj, "priceFrom"),
		PriceTo:     floatField(obj, "priceTo"),
		ArrivalTime: stringField(obj, "arrivalTime"),
		BookingLink: c.BookingLink(route),
	}, nil
}

// BookingLink builds the deterministic booking deep link for a segment,
// embedding the departure date and the four location identity fields.
func (c *Client) BookingLink(route model.MonitoredRoute) string {
	params := url.Values{}
	params.Set("departureDate", route.DepartureAt.UTC().Format("2006-01-02"))
	params.Set("fromLocationId", route.FromLocationID)
	params.Set("toLocationId", route.ToLocationID)
	params.Set("fromLocationType", route.FromLocationType)
	params.Set("toLocationType", route.ToLocationType)
	return c.BookingBaseURL + "?" + params.Encode()
}

func intField(obj map[string]any, key string) int {
	if f, ok := obj[key].(float64); ok {
		return int(f)
	}
	return 0
}

func floatField(obj map[string]any, key string) float64 {
	if f, ok := obj[key].(float64); ok {
		return f
	}
	return 0
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}
