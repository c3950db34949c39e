package planner

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sw33tLie/metropolis/pkg/ai"
	"github.com/sw33tLie/metropolis/pkg/itinerary"
	"github.com/sw33tLie/metropolis/pkg/storage"
)

type stubSource struct {
	mu     sync.Mutex
	events map[string][]itinerary.RawEvent // by date; "" applies to every date
	calls  []string
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) SearchEvents(ctx context.Context, city, state, date string, budget itinerary.Budget, preferences string) []itinerary.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, date)
	if evs, ok := s.events[date]; ok {
		return evs
	}
	return s.events[""]
}

type stubSynth struct {
	entries []itinerary.Entry
	err     error
	inputs  []ai.PlanInput
}

func (s *stubSynth) PlanItinerary(ctx context.Context, in ai.PlanInput) ([]itinerary.Entry, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	// behave like a well-instructed model: never return excluded titles
	var out []itinerary.Entry
	for _, e := range s.entries {
		excluded := false
		for _, t := range in.Excluded {
			if t == e.Title {
				excluded = true
			}
		}
		if !excluded {
			out = append(out, e)
		}
	}
	return out, nil
}

func providenceEvents() []itinerary.RawEvent {
	return []itinerary.RawEvent{
		{Title: "WaterFire", Address: "WaterPlace Park"},
		{Title: "Jazz at the Dean", Address: "122 Fountain St"},
		{Title: "Gallery Night", Address: "Downtown"},
	}
}

func providenceRequest() itinerary.Request {
	return itinerary.Request{
		City:        "Providence",
		State:       "RI",
		Dates:       []string{"2025-04-10"},
		Budget:      itinerary.BudgetUpTo50,
		Preferences: []string{"music"},
	}
}

func newTestPlanner(src *stubSource, synth *stubSynth) (*Planner, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return New(Config{Source: src, Synthesizer: synth, Store: store}), store
}

func TestGenerateProvidence(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": providenceEvents()}}
	synth := &stubSynth{entries: []itinerary.Entry{
		{Title: "Jazz at the Dean", StartTime: "19:00", EndTime: "21:00", Location: "122 Fountain St", EstimatedCost: 25},
		{Title: "WaterFire", StartTime: "21:30", EndTime: "22:30", Location: "WaterPlace Park", EstimatedCost: 10},
	}}
	p, _ := newTestPlanner(src, synth)

	doc, err := p.Generate(context.Background(), providenceRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if doc.ID == "" || len(doc.Entries) != 2 || doc.TotalCost != 35 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Summary != "Your Providence adventure" {
		t.Fatalf("Summary = %q", doc.Summary)
	}

	in := synth.inputs[0]
	if len(in.Events) != 3 || in.Preferences != "music" || in.Budget != itinerary.BudgetUpTo50 || !reflect.DeepEqual(in.Dates, []string{"2025-04-10"}) {
		t.Fatalf("unexpected synthesizer input: %+v", in)
	}

	got, err := p.Get(context.Background(), doc.ID)
	if err != nil || got.ID != doc.ID {
		t.Fatalf("Get: %v", err)
	}
}

func TestGenerateValidation(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": providenceEvents()}}
	p, store := newTestPlanner(src, &stubSynth{})

	bad := providenceRequest()
	bad.Budget = "$1000"
	if _, err := p.Generate(context.Background(), bad); !errors.Is(err, itinerary.ErrInvalidRequest) {
		t.Fatalf("error = %v, want ErrInvalidRequest", err)
	}
	if len(src.calls) != 0 || store.Len() != 0 {
		t.Fatalf("invalid request reached providers")
	}
}

func TestGenerateNoEvents(t *testing.T) {
	src := &stubSource{}
	synth := &stubSynth{}
	p, store := newTestPlanner(src, synth)

	_, err := p.Generate(context.Background(), providenceRequest())
	if !errors.Is(err, itinerary.ErrNoCandidatesFound) {
		t.Fatalf("error = %v, want ErrNoCandidatesFound", err)
	}
	if len(synth.inputs) != 0 {
		t.Fatalf("synthesizer invoked with no candidates")
	}
	if store.Len() != 0 {
		t.Fatalf("document created without candidates")
	}
}

func TestGenerateSynthesisFailure(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": providenceEvents()}}
	synth := &stubSynth{err: itinerary.ErrSynthesisSchema}
	p, store := newTestPlanner(src, synth)

	if _, err := p.Generate(context.Background(), providenceRequest()); !errors.Is(err, itinerary.ErrSynthesisSchema) {
		t.Fatalf("error = %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("document created after failed synthesis")
	}
}

func TestGenerateMultiDaySearchesEachDate(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{
		"2025-06-14": {{Title: "WaterFire", Address: "WaterPlace Park"}, {Title: "Market", Address: "Lippitt Park"}},
		"2025-06-15": {{Title: "WaterFire", Address: "WaterPlace Park"}, {Title: "Brunch Tour", Address: "Wickenden St"}},
	}}
	synth := &stubSynth{entries: []itinerary.Entry{{Title: "Market", StartTime: "10:00", EndTime: "11:00", Location: "Lippitt Park"}}}
	p, _ := newTestPlanner(src, synth)

	req := providenceRequest()
	req.Dates = []string{"2025-06-15", "2025-06-14", "2025-06-15"}
	doc, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !reflect.DeepEqual(src.calls, []string{"2025-06-14", "2025-06-15"}) {
		t.Fatalf("search calls = %v", src.calls)
	}
	if !reflect.DeepEqual(doc.Request.Dates, []string{"2025-06-14", "2025-06-15"}) {
		t.Fatalf("stored dates = %v", doc.Request.Dates)
	}
	titles := []string{}
	for _, e := range synth.inputs[0].Events {
		titles = append(titles, e.Title)
	}
	if !reflect.DeepEqual(titles, []string{"WaterFire", "Market", "Brunch Tour"}) {
		t.Fatalf("merged candidates = %v", titles)
	}
}

func TestRecalculate(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": providenceEvents()}}
	synth := &stubSynth{entries: []itinerary.Entry{
		{Title: "Jazz at the Dean", StartTime: "19:00", EndTime: "21:00", Location: "122 Fountain St", EstimatedCost: 25},
		{Title: "WaterFire", StartTime: "21:30", EndTime: "22:30", Location: "WaterPlace Park", EstimatedCost: 10},
		{Title: "Gallery Night", StartTime: "17:00", EndTime: "18:30", Location: "Downtown"},
	}}
	p, store := newTestPlanner(src, synth)
	ctx := context.Background()

	first, err := p.Generate(ctx, providenceRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	second, err := p.Recalculate(ctx, first.ID, "  add more outdoor activities ", []string{"WaterFire"})
	if err != nil {
		t.Fatalf("Recalculate: %v", err)
	}
	if second.ID == first.ID || second.PreviousID != first.ID || second.Revision != 1 {
		t.Fatalf("unexpected lineage: %+v", second)
	}
	for _, e := range second.Entries {
		if e.Title == "WaterFire" {
			t.Fatalf("excluded title reappeared: %+v", second.Entries)
		}
	}
	if second.TotalCost != 25 {
		t.Fatalf("TotalCost = %v", second.TotalCost)
	}
	if second.Request.City != "Providence" || !reflect.DeepEqual(second.Request.Dates, []string{"2025-04-10"}) || second.Request.Budget != itinerary.BudgetUpTo50 {
		t.Fatalf("context not preserved: %+v", second.Request)
	}

	in := synth.inputs[1]
	if in.Preferences != "music; add more outdoor activities" {
		t.Fatalf("merged preferences = %q", in.Preferences)
	}
	for _, e := range in.Events {
		if e.Title == "WaterFire" {
			t.Fatalf("excluded raw event sent to synthesizer")
		}
	}

	if _, err := p.Get(ctx, first.ID); !errors.Is(err, itinerary.ErrUnknownDocument) {
		t.Fatalf("old id still live: %v", err)
	}

	// exclusions accumulate across recalculations
	third, err := p.Recalculate(ctx, second.ID, "", []string{"Gallery Night"})
	if err != nil {
		t.Fatalf("second Recalculate: %v", err)
	}
	if !reflect.DeepEqual(third.Request.Excluded, []string{"WaterFire", "Gallery Night"}) {
		t.Fatalf("excluded = %v", third.Request.Excluded)
	}
	if len(third.Entries) != 1 || third.Entries[0].Title != "Jazz at the Dean" {
		t.Fatalf("entries = %+v", third.Entries)
	}
	if !reflect.DeepEqual(synth.inputs[2].Excluded, []string{"WaterFire", "Gallery Night"}) {
		t.Fatalf("synthesizer exclusions = %v", synth.inputs[2].Excluded)
	}
	if store.Len() != 1 {
		t.Fatalf("live documents = %d, want 1", store.Len())
	}
}

func TestRecalculateUnknownID(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": providenceEvents()}}
	synth := &stubSynth{}
	p, _ := newTestPlanner(src, synth)

	if _, err := p.Recalculate(context.Background(), "nope", "more jazz", nil); !errors.Is(err, itinerary.ErrUnknownDocument) {
		t.Fatalf("error = %v, want ErrUnknownDocument", err)
	}
	if len(src.calls) != 0 || len(synth.inputs) != 0 {
		t.Fatalf("providers called for unknown id")
	}
}

func TestRecalculateNoEventsKeepsDocument(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": providenceEvents()}}
	synth := &stubSynth{entries: []itinerary.Entry{{Title: "WaterFire", StartTime: "20:00", EndTime: "21:00", Location: "x"}}}
	p, _ := newTestPlanner(src, synth)
	ctx := context.Background()

	doc, err := p.Generate(ctx, providenceRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	src.events = map[string][]itinerary.RawEvent{}
	if _, err := p.Recalculate(ctx, doc.ID, "", nil); !errors.Is(err, itinerary.ErrNoCandidatesFound) {
		t.Fatalf("error = %v, want ErrNoCandidatesFound", err)
	}

	got, err := p.Get(ctx, doc.ID)
	if err != nil || !reflect.DeepEqual(got.Entries, doc.Entries) {
		t.Fatalf("document changed after failed recalculation: %+v, %v", got, err)
	}
}

func TestRecalculateExcludingEverything(t *testing.T) {
	src := &stubSource{events: map[string][]itinerary.RawEvent{"": {{Title: "WaterFire"}}}}
	synth := &stubSynth{entries: []itinerary.Entry{{Title: "WaterFire", StartTime: "20:00", EndTime: "21:00", Location: "x"}}}
	p, _ := newTestPlanner(src, synth)
	ctx := context.Background()

	doc, _ := p.Generate(ctx, providenceRequest())
	if _, err := p.Recalculate(ctx, doc.ID, "", []string{"WaterFire"}); !errors.Is(err, itinerary.ErrNoCandidatesFound) {
		t.Fatalf("error = %v, want ErrNoCandidatesFound", err)
	}
}
