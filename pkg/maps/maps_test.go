package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string]itinerary.LatLng
	calls   map[string]int
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (itinerary.LatLng, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[query]++
	if p, ok := f.results[query]; ok {
		return p, "formatted " + query, nil
	}
	return itinerary.LatLng{}, "", ErrNoResult
}

type fakeDirections struct {
	points []itinerary.LatLng
	err    error
	stops  []itinerary.LatLng
	mode   Mode
}

func (f *fakeDirections) Route(ctx context.Context, stops []itinerary.LatLng, mode Mode) ([]itinerary.LatLng, error) {
	f.stops, f.mode = stops, mode
	return f.points, f.err
}

func testDoc() *itinerary.Document {
	return itinerary.NewDocument("doc-1", []itinerary.Entry{
		{Title: "RISD Museum", Location: "20 N Main St"},
		{Title: "Lunch", Location: "Federal Hill, Providence"},
		{Title: "Mystery", Location: "Somewhere unknown"},
		{Title: "WaterFire", Location: "WaterPlace Park", Date: "2025-06-15"},
	}, itinerary.Request{City: "Providence", State: "RI", Dates: []string{"2025-06-14", "2025-06-15"}}, time.Now())
}

func testGeocoder() *fakeGeocoder {
	return &fakeGeocoder{results: map[string]itinerary.LatLng{
		"20 N Main St, Providence, RI":    {Lat: 41.8268, Lng: -71.4081},
		"Federal Hill, Providence":        {Lat: 41.8200, Lng: -71.4300},
		"WaterPlace Park, Providence, RI": {Lat: 41.8290, Lng: -71.4140},
		"Providence, RI":                  {Lat: 41.8240, Lng: -71.4128},
	}}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		location, city, state, want string
	}{
		{"20 N Main St", "Providence", "RI", "20 N Main St, Providence, RI"},
		{"Federal Hill, providence", "Providence", "RI", "Federal Hill, providence"},
		{"  WaterPlace Park ", "", "", "WaterPlace Park"},
		{"Main St", "", "RI", "Main St, RI"},
	}
	for _, tt := range tests {
		if got := Query(tt.location, tt.city, tt.state); got != tt.want {
			t.Fatalf("Query(%q, %q, %q) = %q, want %q", tt.location, tt.city, tt.state, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	g := testGeocoder()
	r := NewResolver(g, time.Hour, nil)

	res := r.Resolve(context.Background(), testDoc())
	if len(res.Entries) != 4 {
		t.Fatalf("entries = %d", len(res.Entries))
	}
	if res.Entries[2].Resolved() || res.Entries[2].Lat != nil {
		t.Fatalf("unresolvable entry has coordinates: %+v", res.Entries[2])
	}
	if !res.Entries[0].Resolved() || res.Entries[0].ResolvedLocation != "formatted 20 N Main St, Providence, RI" {
		t.Fatalf("first entry = %+v", res.Entries[0])
	}

	wantLat := (41.8268 + 41.8200 + 41.8290) / 3
	wantLng := (-71.4081 + -71.4300 + -71.4140) / 3
	if res.Center == nil || !closeTo(res.Center.Lat, wantLat) || !closeTo(res.Center.Lng, wantLng) {
		t.Fatalf("center = %+v, want %v,%v", res.Center, wantLat, wantLng)
	}

	// idempotent and cached
	again := r.Resolve(context.Background(), testDoc())
	if !reflect.DeepEqual(again, res) {
		t.Fatalf("second resolve differs")
	}
	if g.calls["20 N Main St, Providence, RI"] != 1 {
		t.Fatalf("geocoder called %d times for a cached query", g.calls["20 N Main St, Providence, RI"])
	}
}

func TestResolveCenterFallsBackToCity(t *testing.T) {
	g := testGeocoder()
	r := NewResolver(g, 0, nil)
	doc := itinerary.NewDocument("d", []itinerary.Entry{{Title: "x", Location: "nowhere"}}, itinerary.Request{City: "Providence", State: "RI", Dates: []string{"2025-06-14"}}, time.Now())

	res := r.Resolve(context.Background(), doc)
	if res.Center == nil || *res.Center != (itinerary.LatLng{Lat: 41.8240, Lng: -71.4128}) {
		t.Fatalf("center = %+v", res.Center)
	}

	doc.Request.City = "Atlantis"
	res = NewResolver(g, 0, nil).Resolve(context.Background(), doc)
	if res.Center != nil {
		t.Fatalf("center = %+v, want nil", res.Center)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeWalking, "DRIVING": ModeDriving, " transit ": ModeTransit, "bicycling": ModeBicycling} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("teleport"); !errors.Is(err, itinerary.ErrInvalidRequest) {
		t.Fatalf("ParseMode(teleport) error = %v", err)
	}
}

func TestRouteBuilder(t *testing.T) {
	path := []itinerary.LatLng{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}

	t.Run("provider route", func(t *testing.T) {
		d := &fakeDirections{points: path}
		b := NewRouteBuilder(NewResolver(testGeocoder(), 0, nil), d, nil)
		route := b.Build(context.Background(), testDoc(), ModeDriving, "")
		if route.Fallback || !reflect.DeepEqual(route.Points, path) || route.Mode != ModeDriving {
			t.Fatalf("route = %+v", route)
		}
		if len(d.stops) != 3 || d.mode != ModeDriving {
			t.Fatalf("stops sent = %v (%s)", d.stops, d.mode)
		}
	})

	t.Run("provider failure falls back", func(t *testing.T) {
		d := &fakeDirections{err: itinerary.ErrProviderUnavailable}
		b := NewRouteBuilder(NewResolver(testGeocoder(), 0, nil), d, nil)
		route := b.Build(context.Background(), testDoc(), "", "")
		if !route.Fallback || len(route.Points) != 3 || route.Mode != ModeWalking {
			t.Fatalf("route = %+v", route)
		}
		if route.Points[0] != (itinerary.LatLng{Lat: 41.8268, Lng: -71.4081}) {
			t.Fatalf("fallback should follow itinerary order: %+v", route.Points)
		}
	})

	t.Run("single stop on date", func(t *testing.T) {
		d := &fakeDirections{points: path}
		b := NewRouteBuilder(NewResolver(testGeocoder(), 0, nil), d, nil)
		route := b.Build(context.Background(), testDoc(), ModeWalking, "2025-06-15")
		if !route.Fallback || len(route.Points) != 1 || d.stops != nil {
			t.Fatalf("route = %+v, provider stops = %v", route, d.stops)
		}
	})

	t.Run("nothing resolved", func(t *testing.T) {
		b := NewRouteBuilder(NewResolver(&fakeGeocoder{}, 0, nil), &fakeDirections{points: path}, nil)
		route := b.Build(context.Background(), testDoc(), ModeWalking, "")
		if !route.Fallback || route.Points == nil || len(route.Points) != 0 {
			t.Fatalf("route = %#v", route)
		}
	})
}

func TestGoogleGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "maps-key" {
			t.Errorf("missing key")
		}
		switch r.URL.Query().Get("address") {
		case "20 N Main St, Providence, RI":
			fmt.Fprint(w, `{"status":"OK","results":[{"formatted_address":"20 N Main St, Providence, RI 02903, USA","geometry":{"location":{"lat":41.8268,"lng":-71.4081}}}]}`)
		case "nowhere":
			fmt.Fprint(w, `{"status":"ZERO_RESULTS","results":[]}`)
		default:
			fmt.Fprint(w, `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`)
		}
	}))
	defer srv.Close()

	g := NewGoogleGeocoder(GoogleConfig{APIKey: "maps-key", GeocodeEndpoint: srv.URL})

	p, formatted, err := g.Geocode(context.Background(), "20 N Main St, Providence, RI")
	if err != nil || p != (itinerary.LatLng{Lat: 41.8268, Lng: -71.4081}) || !strings.HasPrefix(formatted, "20 N Main St") {
		t.Fatalf("Geocode = %v, %q, %v", p, formatted, err)
	}
	if _, _, err := g.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("ZERO_RESULTS error = %v", err)
	}
	if _, _, err := g.Geocode(context.Background(), "denied"); !errors.Is(err, itinerary.ErrProviderUnavailable) {
		t.Fatalf("REQUEST_DENIED error = %v", err)
	}
}

func TestGoogleDirections(t *testing.T) {
	want := [][]float64{{41.8268, -71.4081}, {41.82, -71.43}, {41.829, -71.414}}
	encoded := string(polyline.EncodeCoords(want))

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{"origin": q.Get("origin"), "destination": q.Get("destination"), "waypoints": q.Get("waypoints"), "mode": q.Get("mode")}
		fmt.Fprintf(w, `{"status":"OK","routes":[{"overview_polyline":{"points":%q}}]}`, encoded)
	}))
	defer srv.Close()

	d := NewGoogleDirections(GoogleConfig{APIKey: "k", DirectionsEndpoint: srv.URL})
	stops := []itinerary.LatLng{{Lat: 41.8268, Lng: -71.4081}, {Lat: 41.82, Lng: -71.43}, {Lat: 41.83, Lng: -71.41}, {Lat: 41.829, Lng: -71.414}}
	points, err := d.Route(context.Background(), stops, ModeWalking)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(points) != 3 || !closeTo(points[1].Lat, 41.82) || !closeTo(points[1].Lng, -71.43) {
		t.Fatalf("points = %+v", points)
	}
	wantQuery := map[string]string{
		"origin":      "41.8268,-71.4081",
		"destination": "41.829,-71.414",
		"waypoints":   "41.82,-71.43|41.83,-71.41",
		"mode":        "walking",
	}
	if !reflect.DeepEqual(got, wantQuery) {
		t.Fatalf("query = %v, want %v", got, wantQuery)
	}

	if _, err := d.Route(context.Background(), stops[:1], ModeWalking); err == nil {
		t.Fatalf("expected error for a single stop")
	}
}

func TestGoogleDirectionsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"NOT_FOUND","routes":[]}`)
	}))
	defer srv.Close()

	d := NewGoogleDirections(GoogleConfig{DirectionsEndpoint: srv.URL})
	_, err := d.Route(context.Background(), []itinerary.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, ModeDriving)
	if !errors.Is(err, itinerary.ErrProviderUnavailable) {
		t.Fatalf("error = %v", err)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	return d < 1e-5 && d > -1e-5
}
