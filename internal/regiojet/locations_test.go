package regiojet

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

const locationsPayload = `[
  {
    "country": "CZ", "code": "CZ",
    "cities": [
      {
        "id": 10202000, "name": "Brno",
        "stations": [
          {"id": 372825000, "name": "Brno hl.n.", "fullname": "Brno - hl. nádraží"},
          {"id": 372825001, "name": "AUS Zvonarka"}
        ]
      },
      {
        "id": 10202001, "name": "Praha",
        "stations": []
      }
    ]
  }
]`

func TestFetchLocationsFlattensTree(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/consts/locations" {
			t.Errorf("wrong endpoint %s", r.URL.Path)
		}
		if r.Header.Get("X-Currency") != "" {
			t.Errorf("locations request must not send a currency header")
		}
		w.Write([]byte(locationsPayload))
	})
	defer ts.Close()

	locs, err := c.FetchLocations(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(locs) != 4 {
		t.Fatalf("expected 2 cities + 2 stations, got %d: %+v", len(locs), locs)
	}

	byID := map[string]int{}
	for i, l := range locs {
		byID[l.ID] = i
	}
	brno := locs[byID["10202000"]]
	if brno.Type != "CITY" || brno.Name != "Brno" {
		t.Fatalf("wrong city entry: %+v", brno)
	}
	// the fullname wins over the short name
	hl := locs[byID["372825000"]]
	if hl.Type != "STATION" || hl.Name != "Brno - hl. nádraží" {
		t.Fatalf("expected fullname preferred, got %+v", hl)
	}
	// no fullname falls back to name
	aus := locs[byID["372825001"]]
	if aus.Name != "AUS Zvonarka" {
		t.Fatalf("expected short-name fallback, got %+v", aus)
	}
	if hl.NormalizedName != "brno - hl. nadrazi" {
		t.Fatalf("wrong normalized name %q", hl.NormalizedName)
	}
}

func TestFetchLocationsSkipsBrokenEntries(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"cities": [
				{"id": 1, "name": "Brno"},
				{"name": "no id"},
				"not an object"
			]},
			"not an object either"
		]`))
	})
	defer ts.Close()

	locs, err := c.FetchLocations(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(locs) != 1 || locs[0].ID != "1" {
		t.Fatalf("expected only the well-formed city, got %+v", locs)
	}
}

func TestFetchLocationsMalformedTopLevel(t *testing.T) {
	for _, body := range []string{`{"cities": []}`, `"nope"`, `not json at all`} {
		c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		_, err := c.FetchLocations(context.Background())
		ts.Close()
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("body %q: expected ErrMalformed, got %v", body, err)
		}
	}
}

func TestFetchLocationsNotFoundIsUpstreamError(t *testing.T) {
	c, ts := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer ts.Close()

	_, err := c.FetchLocations(context.Background())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("404 on the directory is an upstream failure, got %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Brno":              "brno",
		"Praha hl. nádraží": "praha hl. nadrazi",
		"Ústí nad Labem":    "usti nad labem",
		"WIEN":              "wien",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
