package itinerary

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EffectiveDate is the entry's own date, or defaultDate when it has none.
func (e Entry) EffectiveDate(defaultDate string) string {
	if e.Date != "" {
		return e.Date
	}
	return defaultDate
}

// Key identifies an entry for deduplication.
func (e Entry) Key(defaultDate string) string {
	return e.Title + "|" + e.StartTime + "|" + e.EffectiveDate(defaultDate)
}

// TotalCost sums the estimated costs of entries.
func TotalCost(entries []Entry) float64 {
	return lo.SumBy(entries, func(e Entry) float64 { return e.EstimatedCost })
}

// Summary is the short human readable description shown alongside an itinerary.
func Summary(city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		return "Your adventure"
	}
	return fmt.Sprintf("Your %s adventure", cases.Title(language.English).String(city))
}

// NewDocument builds a first-generation document. Stores set PreviousID and
// Revision themselves when replacing.
func NewDocument(id string, entries []Entry, req Request, now time.Time) *Document {
	if entries == nil {
		entries = []Entry{}
	}
	return &Document{
		ID:        id,
		Entries:   entries,
		Request:   req,
		TotalCost: TotalCost(entries),
		Summary:   Summary(req.City),
		CreatedAt: now.UTC(),
	}
}

// FirstDate is the document's earliest requested date.
func (d *Document) FirstDate() string {
	return d.Request.FirstDate()
}

// EntriesOn returns the entries whose effective date is date. An empty date
// returns every entry.
func (d *Document) EntriesOn(date string) []Entry {
	if date == "" {
		return d.Entries
	}
	first := d.FirstDate()
	return lo.Filter(d.Entries, func(e Entry, _ int) bool { return e.EffectiveDate(first) == date })
}
