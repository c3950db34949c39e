// Package maps resolves itinerary locations to coordinates and builds walking
// or driving routes between them.
package maps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"github.com/twpayne/go-polyline"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
	"github.com/sw33tLie/metropolis/pkg/whttp"
)

const (
	defaultGeocodeEndpoint    = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultDirectionsEndpoint = "https://maps.googleapis.com/maps/api/directions/json"
	defaultTimeout            = 10 * time.Second
)

// ErrNoResult means the provider answered but found nothing for the query.
var ErrNoResult = errors.New("no result")

// GoogleConfig configures the Google Maps Platform adapters.
type GoogleConfig struct {
	APIKey             string
	GeocodeEndpoint    string
	DirectionsEndpoint string
	Timeout            time.Duration
	Retries            int
	HTTPClient         *retryablehttp.Client
}

func (c GoogleConfig) client() *retryablehttp.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return whttp.NewClient(whttp.Options{Timeout: timeout, Retries: c.Retries})
}

// Geocoder resolves a free-text address.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (itinerary.LatLng, string, error)
}

// DirectionsProvider computes a path through stops, in order.
type DirectionsProvider interface {
	Route(ctx context.Context, stops []itinerary.LatLng, mode Mode) ([]itinerary.LatLng, error)
}

type GoogleGeocoder struct {
	apiKey   string
	endpoint string
	client   *retryablehttp.Client
}

func NewGoogleGeocoder(cfg GoogleConfig) *GoogleGeocoder {
	endpoint := cfg.GeocodeEndpoint
	if endpoint == "" {
		endpoint = defaultGeocodeEndpoint
	}
	return &GoogleGeocoder{apiKey: cfg.APIKey, endpoint: endpoint, client: cfg.client()}
}

// Geocode returns the coordinates and formatted address of the first result.
func (g *GoogleGeocoder) Geocode(ctx context.Context, query string) (itinerary.LatLng, string, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL:   g.endpoint,
		Query: url.Values{"address": {query}, "key": {g.apiKey}},
	}, g.client)
	if err != nil {
		return itinerary.LatLng{}, "", fmt.Errorf("%w: geocode: %v", itinerary.ErrProviderUnavailable, err)
	}
	if !res.OK() {
		return itinerary.LatLng{}, "", fmt.Errorf("%w: geocode returned %s", itinerary.ErrProviderUnavailable, res.Describe())
	}

	status := gjson.Get(res.BodyString, "status").String()
	switch status {
	case "OK":
	case "ZERO_RESULTS":
		return itinerary.LatLng{}, "", fmt.Errorf("%w for %q", ErrNoResult, query)
	default:
		return itinerary.LatLng{}, "", fmt.Errorf("%w: geocode status %q %s", itinerary.ErrProviderUnavailable, status, gjson.Get(res.BodyString, "error_message").String())
	}

	loc := gjson.Get(res.BodyString, "results.0.geometry.location")
	if !loc.Get("lat").Exists() || !loc.Get("lng").Exists() {
		return itinerary.LatLng{}, "", fmt.Errorf("%w for %q", ErrNoResult, query)
	}
	point := itinerary.LatLng{Lat: loc.Get("lat").Float(), Lng: loc.Get("lng").Float()}
	return point, gjson.Get(res.BodyString, "results.0.formatted_address").String(), nil
}

type GoogleDirections struct {
	apiKey   string
	endpoint string
	client   *retryablehttp.Client
}

func NewGoogleDirections(cfg GoogleConfig) *GoogleDirections {
	endpoint := cfg.DirectionsEndpoint
	if endpoint == "" {
		endpoint = defaultDirectionsEndpoint
	}
	return &GoogleDirections{apiKey: cfg.APIKey, endpoint: endpoint, client: cfg.client()}
}

// Route asks for directions from the first stop to the last, through the
// others in order, and decodes the overview polyline.
func (d *GoogleDirections) Route(ctx context.Context, stops []itinerary.LatLng, mode Mode) ([]itinerary.LatLng, error) {
	if len(stops) < 2 {
		return nil, fmt.Errorf("directions need at least two stops, got %d", len(stops))
	}

	q := url.Values{
		"origin":      {formatPoint(stops[0])},
		"destination": {formatPoint(stops[len(stops)-1])},
		"mode":        {string(mode)},
		"key":         {d.apiKey},
	}
	if len(stops) > 2 {
		var waypoints []string
		for _, s := range stops[1 : len(stops)-1] {
			waypoints = append(waypoints, formatPoint(s))
		}
		q.Set("waypoints", strings.Join(waypoints, "|"))
	}

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{URL: d.endpoint, Query: q}, d.client)
	if err != nil {
		return nil, fmt.Errorf("%w: directions: %v", itinerary.ErrProviderUnavailable, err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w: directions returned %s", itinerary.ErrProviderUnavailable, res.Describe())
	}
	if status := gjson.Get(res.BodyString, "status").String(); status != "OK" {
		return nil, fmt.Errorf("%w: directions status %q", itinerary.ErrProviderUnavailable, status)
	}

	encoded := gjson.Get(res.BodyString, "routes.0.overview_polyline.points").String()
	if encoded == "" {
		return nil, fmt.Errorf("%w: directions returned no polyline", itinerary.ErrProviderUnavailable)
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: bad polyline: %v", itinerary.ErrProviderUnavailable, err)
	}

	points := make([]itinerary.LatLng, 0, len(coords))
	for _, c := range coords {
		points = append(points, itinerary.LatLng{Lat: c[0], Lng: c[1]})
	}
	return points, nil
}

func formatPoint(p itinerary.LatLng) string {
	return fmt.Sprintf("%g,%g", p.Lat, p.Lng)
}
