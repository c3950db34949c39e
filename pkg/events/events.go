// Package events searches third-party event listings for candidate events.
package events

import (
	"context"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

// Source is an events search provider. SearchEvents never fails: any provider
// problem yields an empty result and a logged warning.
type Source interface {
	Name() string
	SearchEvents(ctx context.Context, city, state, date string, budget itinerary.Budget, preferences string) []itinerary.RawEvent
}

// Logger abstracts logging so callers can use logrus or any other logger
// that satisfies this interface.
type Logger interface {
	Warnf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Static is a Source that always returns the same events. Useful for offline
// runs of the CLI.
type Static struct {
	Events []itinerary.RawEvent
}

func (s Static) Name() string { return "static" }

func (s Static) SearchEvents(ctx context.Context, city, state, date string, budget itinerary.Budget, preferences string) []itinerary.RawEvent {
	out := make([]itinerary.RawEvent, len(s.Events))
	copy(out, s.Events)
	return out
}
