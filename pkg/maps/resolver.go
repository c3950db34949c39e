package maps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

const DefaultCacheTTL = 24 * time.Hour

// Logger abstracts logging so callers can use logrus or any other logger
// that satisfies this interface.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

type geocodeResult struct {
	Point     itinerary.LatLng
	Formatted string
}

// Resolver geocodes itinerary entries. Successful lookups are cached by
// query so repeated calls for the same document give the same answer.
type Resolver struct {
	geocoder Geocoder
	cache    *cache.Cache
	log      Logger
}

// Resolution is the outcome of resolving one document.
type Resolution struct {
	Entries []itinerary.GeocodedEntry `json:"events"`
	Center  *itinerary.LatLng         `json:"center"`
}

func NewResolver(g Geocoder, ttl time.Duration, log Logger) *Resolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = nopLogger{}
	}
	// cleanup interval 0: expired items are dropped on access, no janitor goroutine
	return &Resolver{geocoder: g, cache: cache.New(ttl, 0), log: log}
}

// Resolve geocodes every entry. Entries that cannot be resolved keep nil
// coordinates. Center is the mean of the resolved coordinates, or the city
// itself when nothing resolved, or nil when even that fails.
func (r *Resolver) Resolve(ctx context.Context, doc *itinerary.Document) Resolution {
	entries := r.ResolveEntries(ctx, doc, "")

	var (
		sumLat, sumLng float64
		n              int
	)
	for _, e := range entries {
		if e.Resolved() {
			sumLat += *e.Lat
			sumLng += *e.Lng
			n++
		}
	}

	res := Resolution{Entries: entries}
	if n > 0 {
		res.Center = &itinerary.LatLng{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}
		return res
	}

	cityQuery := strings.TrimSpace(fmt.Sprintf("%s, %s", doc.Request.City, doc.Request.State))
	if p, _, err := r.lookup(ctx, cityQuery); err == nil {
		res.Center = &p
	}
	return res
}

// ResolveEntries geocodes the entries on date, or all entries when date is empty.
func (r *Resolver) ResolveEntries(ctx context.Context, doc *itinerary.Document, date string) []itinerary.GeocodedEntry {
	src := doc.EntriesOn(date)
	out := make([]itinerary.GeocodedEntry, 0, len(src))
	for _, e := range src {
		ge := itinerary.GeocodedEntry{Entry: e}
		if strings.TrimSpace(e.Location) != "" {
			p, formatted, err := r.lookup(ctx, Query(e.Location, doc.Request.City, doc.Request.State))
			if err == nil {
				lat, lng := p.Lat, p.Lng
				ge.Lat, ge.Lng = &lat, &lng
				ge.ResolvedLocation = formatted
			} else {
				r.log.Warnf("[maps] could not geocode %q: %v", e.Location, err)
			}
		}
		out = append(out, ge)
	}
	return out
}

func (r *Resolver) lookup(ctx context.Context, query string) (itinerary.LatLng, string, error) {
	key := strings.ToLower(query)
	if v, ok := r.cache.Get(key); ok {
		res := v.(geocodeResult)
		return res.Point, res.Formatted, nil
	}

	if r.geocoder == nil {
		return itinerary.LatLng{}, "", itinerary.ErrProviderUnavailable
	}
	p, formatted, err := r.geocoder.Geocode(ctx, query)
	if err != nil {
		return itinerary.LatLng{}, "", err
	}
	r.log.Debugf("[maps] geocoded %q to %f,%f", query, p.Lat, p.Lng)
	r.cache.Set(key, geocodeResult{Point: p, Formatted: formatted}, cache.DefaultExpiration)
	return p, formatted, nil
}

// Query appends the city hint to a location unless the location already names the city.
func Query(location, city, state string) string {
	location = strings.TrimSpace(location)
	hint := strings.TrimSpace(city)
	if state = strings.TrimSpace(state); state != "" {
		if hint != "" {
			hint += ", " + state
		} else {
			hint = state
		}
	}
	if hint == "" || (city != "" && strings.Contains(strings.ToLower(location), strings.ToLower(strings.TrimSpace(city)))) {
		return location
	}
	return location + ", " + hint
}
