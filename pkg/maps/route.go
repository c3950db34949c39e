package maps

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// Mode is a travel mode understood by the directions provider.
type Mode string

const (
	ModeWalking   Mode = "walking"
	ModeDriving   Mode = "driving"
	ModeBicycling Mode = "bicycling"
	ModeTransit   Mode = "transit"
)

var modes = []Mode{ModeWalking, ModeDriving, ModeBicycling, ModeTransit}

// ParseMode defaults to walking when s is empty.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeWalking, nil
	}
	if m := Mode(s); lo.Contains(modes, m) {
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown travel mode %q", itinerary.ErrInvalidRequest, s)
}

// Route is a drawable path through an itinerary's stops.
type Route struct {
	Points []itinerary.LatLng `json:"route"`
	Mode   Mode               `json:"mode"`
	// Fallback is set when Points are the stops joined by straight lines
	// rather than a provider route.
	Fallback bool `json:"fallback"`
}

type RouteBuilder struct {
	resolver   *Resolver
	directions DirectionsProvider
	log        Logger
}

func NewRouteBuilder(resolver *Resolver, directions DirectionsProvider, log Logger) *RouteBuilder {
	if log == nil {
		log = nopLogger{}
	}
	return &RouteBuilder{resolver: resolver, directions: directions, log: log}
}

// Build routes through the resolved entries of doc in itinerary order,
// optionally only those on date. It never fails: without a usable provider
// answer the resolved stops are returned as a straight-line path.
func (b *RouteBuilder) Build(ctx context.Context, doc *itinerary.Document, mode Mode, date string) Route {
	if mode == "" {
		mode = ModeWalking
	}

	resolved := lo.Filter(b.resolver.ResolveEntries(ctx, doc, date), func(e itinerary.GeocodedEntry, _ int) bool { return e.Resolved() })
	stops := lo.Map(resolved, func(e itinerary.GeocodedEntry, _ int) itinerary.LatLng { return e.Point() })

	if len(stops) < 2 || b.directions == nil {
		return Route{Points: stops, Mode: mode, Fallback: true}
	}

	points, err := b.directions.Route(ctx, stops, mode)
	if err != nil || len(points) == 0 {
		b.log.Warnf("[maps] directions for %s failed, using straight lines: %v", doc.ID, err)
		return Route{Points: stops, Mode: mode, Fallback: true}
	}
	return Route{Points: points, Mode: mode}
}
