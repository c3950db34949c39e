package itinerary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// DateLayout is the ISO calendar date format used for every date field.
const DateLayout = "2006-01-02"

// Normalize trims free text, sorts dates ascending and drops duplicate dates,
// empty preference fragments and duplicate exclusions.
func (r *Request) Normalize() {
	r.City = strings.TrimSpace(r.City)
	r.State = strings.TrimSpace(r.State)
	r.Budget = Budget(strings.TrimSpace(string(r.Budget)))

	dates := lo.Map(r.Dates, func(d string, _ int) string { return strings.TrimSpace(d) })
	dates = lo.Uniq(lo.Filter(dates, func(d string, _ int) bool { return d != "" }))
	sort.Strings(dates)
	r.Dates = dates

	prefs := lo.Map(r.Preferences, func(p string, _ int) string { return strings.TrimSpace(p) })
	r.Preferences = lo.Filter(prefs, func(p string, _ int) bool { return p != "" })

	r.Excluded = lo.Uniq(lo.Filter(r.Excluded, func(t string, _ int) bool { return t != "" }))
}

// Validate checks that the request can be planned.
func (r Request) Validate() error {
	if strings.TrimSpace(r.City) == "" {
		return fmt.Errorf("%w: city is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.State) == "" {
		return fmt.Errorf("%w: state is required", ErrInvalidRequest)
	}
	if len(r.Dates) == 0 {
		return fmt.Errorf("%w: at least one date is required", ErrInvalidRequest)
	}
	for _, d := range r.Dates {
		if _, err := time.Parse(DateLayout, strings.TrimSpace(d)); err != nil {
			return fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrInvalidRequest, d)
		}
	}
	if !r.Budget.Valid() {
		return fmt.Errorf("%w: unknown budget %q", ErrInvalidRequest, r.Budget)
	}
	return nil
}

// MergedPreferences joins the preference fragments in order.
func (r Request) MergedPreferences() string {
	parts := lo.Filter(r.Preferences, func(p string, _ int) bool { return strings.TrimSpace(p) != "" })
	parts = lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) })
	return strings.Join(parts, "; ")
}

// FirstDate returns the earliest requested date, or "" when there is none.
// Dates are expected to be normalized.
func (r Request) FirstDate() string {
	if len(r.Dates) == 0 {
		return ""
	}
	return r.Dates[0]
}

// IsExcluded reports whether title is in the exclusion set. Matching is exact.
func (r Request) IsExcluded(title string) bool {
	return lo.Contains(r.Excluded, title)
}

// WithRecalculation derives the request for a recalculation: the location,
// dates and budget are kept, the prompt is appended as a new preference
// fragment and the exclusions are unioned with the previous ones.
func (r Request) WithRecalculation(additionalPrompt string, excluded []string) Request {
	next := Request{
		City:        r.City,
		State:       r.State,
		Dates:       append([]string(nil), r.Dates...),
		Budget:      r.Budget,
		Preferences: append([]string(nil), r.Preferences...),
		Excluded:    append([]string(nil), r.Excluded...),
	}
	if p := strings.TrimSpace(additionalPrompt); p != "" {
		next.Preferences = append(next.Preferences, p)
	}
	next.Excluded = lo.Uniq(append(next.Excluded, excluded...))
	next.Excluded = lo.Filter(next.Excluded, func(t string, _ int) bool { return t != "" })
	return next
}
