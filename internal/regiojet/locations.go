package regiojet

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"seatwatch/internal/model"
)

// FetchLocations retrieves the provider's location directory and flattens
// the country -> city -> station tree into one list. A structurally wrong
// top level is a hard error (ErrMalformed): a silently shrunken directory
// would poison the shared cache. Individually broken entries are skipped
// with a warning, matching the provider's occasional partial data.
func (c *Client) FetchLocations(ctx context.Context) ([]model.Location, error) {
	status, body, err := c.getJSON(ctx, "/consts/locations", nil, false)
	if err != nil {
		return nil, err
	}
	if status == 404 {
		return nil, fmt.Errorf("%w: /consts/locations: status 404", ErrUpstream)
	}
	return parseLocations(body)
}

func parseLocations(body any) ([]model.Location, error) {
	countries, ok := body.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: locations: expected list, got %T", ErrMalformed, body)
	}
	out := []model.Location{}
	for _, cv := range countries {
		country, ok := cv.(map[string]any)
		if !ok {
			log.Printf("regiojet: skipping non-object country entry (%T)", cv)
			continue
		}
		cities, ok := country["cities"].([]any)
		if !ok {
			log.Printf("regiojet: country %v has no city list", country["code"])
			continue
		}
		for _, civ := range cities {
			city, ok := civ.(map[string]any)
			if !ok {
				continue
			}
			cityID, cityName := idField(city), stringField(city, "name")
			if cityID == "" || cityName == "" {
				log.Printf("regiojet: skipping city with missing id or name")
				continue
			}
			out = append(out, model.Location{
				ID: cityID, Name: cityName, Type: "CITY", NormalizedName: NormalizeName(cityName),
			})
			stations, ok := city["stations"].([]any)
			if !ok {
				continue
			}
			for _, sv := range stations {
				station, ok := sv.(map[string]any)
				if !ok {
					continue
				}
				stationID := idField(station)
				// Stations carry both a short and a full name; prefer the full one.
				stationName := stringField(station, "fullname")
				if stationName == "" {
					stationName = stringField(station, "name")
				}
				if stationID == "" || stationName == "" {
					log.Printf("regiojet: skipping station with missing id or name in %s", cityName)
					continue
				}
				out = append(out, model.Location{
					ID: stationID, Name: stationName, Type: "STATION", NormalizedName: NormalizeName(stationName),
				})
			}
		}
	}
	return out, nil
}

// idField renders a location id as a string; the provider sends numbers.
func idField(obj map[string]any) string {
	switch v := obj["id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases a display name and strips diacritics, for
// accent-insensitive lookups ("Brno hl. n." matches "brno hl. n.").
func NormalizeName(name string) string {
	s, _, err := transform.String(deaccent, strings.ToLower(name))
	if err != nil {
		return strings.ToLower(name)
	}
	return s
}
