// Package planner drives itinerary generation and recalculation: it searches
// for events, hands them to the synthesizer and stores the result.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sw33tLie/metropolis/pkg/ai"
	"github.com/sw33tLie/metropolis/pkg/events"
	"github.com/sw33tLie/metropolis/pkg/itinerary"
	"github.com/sw33tLie/metropolis/pkg/storage"
)

const tracerName = "metropolis/planner"

// Logger abstracts logging so callers can use logrus or any other logger
// that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Config holds everything a Planner needs.
type Config struct {
	Source      events.Source
	Synthesizer ai.Synthesizer
	Store       storage.Store
	Log         Logger // optional; nil = no logging
}

type Planner struct {
	source events.Source
	synth  ai.Synthesizer
	store  storage.Store
	log    Logger
	tracer trace.Tracer
}

func New(cfg Config) *Planner {
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	return &Planner{
		source: cfg.Source,
		synth:  cfg.Synthesizer,
		store:  cfg.Store,
		log:    log,
		tracer: otel.Tracer(tracerName),
	}
}

// Generate plans a new itinerary. No document is created when the search
// finds nothing or synthesis fails.
func (p *Planner) Generate(ctx context.Context, req itinerary.Request) (*itinerary.Document, error) {
	ctx, span := p.tracer.Start(ctx, "Generate", trace.WithAttributes(
		attribute.String("itinerary.city", req.City),
		attribute.String("itinerary.state", req.State),
		attribute.Int("itinerary.dates", len(req.Dates)),
	))
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fail(span, err, "invalid request")
	}

	entries, err := p.plan(ctx, req)
	if err != nil {
		return nil, fail(span, err, "planning failed")
	}

	doc, err := p.store.Create(ctx, entries, req)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to store itinerary: %w", err), "store failed")
	}

	p.log.Infof("Created itinerary %s for %s, %s (%d entries, $%.2f)", doc.ID, req.City, req.State, len(doc.Entries), doc.TotalCost)
	span.SetAttributes(attribute.String("itinerary.id", doc.ID), attribute.Int("itinerary.entries", len(doc.Entries)))
	span.SetStatus(codes.Ok, "itinerary generated")
	return doc, nil
}

// Get returns a live itinerary.
func (p *Planner) Get(ctx context.Context, id string) (*itinerary.Document, error) {
	return p.store.Get(ctx, id)
}

// Recalculate regenerates an itinerary with extra preference text and more
// excluded titles. The city, state, dates and budget of the original request
// are kept. On success the result lives under a new identifier and id is
// retired; on failure the stored document is untouched.
func (p *Planner) Recalculate(ctx context.Context, id, additionalPrompt string, excluded []string) (*itinerary.Document, error) {
	ctx, span := p.tracer.Start(ctx, "Recalculate", trace.WithAttributes(
		attribute.String("itinerary.previous_id", id),
		attribute.Int("itinerary.excluded", len(excluded)),
	))
	defer span.End()

	prev, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, fail(span, err, "lookup failed")
	}

	req := prev.Request.WithRecalculation(additionalPrompt, excluded)
	entries, err := p.plan(ctx, req)
	if err != nil {
		return nil, fail(span, err, "planning failed")
	}

	doc, err := p.store.Replace(ctx, id, entries, req)
	if err != nil {
		if errors.Is(err, itinerary.ErrUnknownDocument) {
			return nil, fail(span, err, "document replaced concurrently")
		}
		return nil, fail(span, fmt.Errorf("failed to store itinerary: %w", err), "store failed")
	}

	p.log.Infof("Recalculated itinerary %s -> %s (revision %d, %d excluded titles)", id, doc.ID, doc.Revision, len(req.Excluded))
	span.SetAttributes(attribute.String("itinerary.id", doc.ID), attribute.Int("itinerary.revision", doc.Revision))
	span.SetStatus(codes.Ok, "itinerary recalculated")
	return doc, nil
}

func (p *Planner) plan(ctx context.Context, req itinerary.Request) ([]itinerary.Entry, error) {
	candidates := p.search(ctx, req)
	if len(candidates) == 0 {
		p.log.Warnf("No events found for %s, %s on %v", req.City, req.State, req.Dates)
		return nil, itinerary.ErrNoCandidatesFound
	}

	entries, err := p.synth.PlanItinerary(ctx, ai.PlanInput{
		Events:      candidates,
		Dates:       req.Dates,
		City:        req.City,
		State:       req.State,
		Budget:      req.Budget,
		Preferences: req.MergedPreferences(),
		Excluded:    req.Excluded,
	})
	if err != nil {
		p.log.Errorf("Itinerary synthesis for %s, %s failed: %v", req.City, req.State, err)
		return nil, err
	}
	return entries, nil
}

// search queries the source once per requested date and merges the results.
// Events are deduplicated by title and address, and excluded titles never
// reach the synthesizer.
func (p *Planner) search(ctx context.Context, req itinerary.Request) []itinerary.RawEvent {
	ctx, span := p.tracer.Start(ctx, "SearchEvents", trace.WithAttributes(attribute.String("events.source", p.source.Name())))
	defer span.End()

	prefs := req.MergedPreferences()
	var all []itinerary.RawEvent
	for _, date := range req.Dates {
		found := p.source.SearchEvents(ctx, req.City, req.State, date, req.Budget, prefs)
		p.log.Debugf("%s returned %d events for %s", p.source.Name(), len(found), date)
		all = append(all, found...)
	}

	all = lo.UniqBy(all, func(e itinerary.RawEvent) string { return e.Title + "|" + e.Address })
	all = lo.Filter(all, func(e itinerary.RawEvent, _ int) bool { return !req.IsExcluded(e.Title) })
	span.SetAttributes(attribute.Int("events.count", len(all)))
	return all
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
