package ai

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

var timeLayouts = []string{"15:04", "3:04 PM", "3:04PM", "15:04:05"}

// ParseEntries validates a model response against the entry schema. Any
// violation is reported as itinerary.ErrSynthesisSchema.
func ParseEntries(raw string, dates []string) ([]itinerary.Entry, error) {
	body := stripCodeFence(raw)
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", itinerary.ErrSynthesisSchema)
	}

	root := gjson.Parse(body)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		list := root.Get("events")
		if !list.IsArray() {
			list = root.Get("itinerary")
		}
		if !list.IsArray() {
			return nil, fmt.Errorf("%w: expected an array of entries", itinerary.ErrSynthesisSchema)
		}
		items = list.Array()
	default:
		return nil, fmt.Errorf("%w: expected an array of entries", itinerary.ErrSynthesisSchema)
	}

	entries := make([]itinerary.Entry, 0, len(items))
	for i, item := range items {
		e, err := parseEntry(item, dates)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", itinerary.ErrSynthesisSchema, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseEntry(item gjson.Result, dates []string) (itinerary.Entry, error) {
	if !item.IsObject() {
		return itinerary.Entry{}, fmt.Errorf("not an object")
	}

	required := func(field string) (string, error) {
		v := item.Get(field)
		if !v.Exists() || v.Type != gjson.String || strings.TrimSpace(v.String()) == "" {
			return "", fmt.Errorf("missing %s", field)
		}
		return strings.TrimSpace(v.String()), nil
	}

	title, err := required("title")
	if err != nil {
		return itinerary.Entry{}, err
	}
	startRaw, err := required("start_time")
	if err != nil {
		return itinerary.Entry{}, err
	}
	endRaw, err := required("end_time")
	if err != nil {
		return itinerary.Entry{}, err
	}
	location, err := required("location")
	if err != nil {
		return itinerary.Entry{}, err
	}

	start, err := NormalizeClock(startRaw)
	if err != nil {
		return itinerary.Entry{}, err
	}
	end, err := NormalizeClock(endRaw)
	if err != nil {
		return itinerary.Entry{}, err
	}
	if start >= end {
		return itinerary.Entry{}, fmt.Errorf("start_time %s is not before end_time %s", start, end)
	}

	cost, err := parseCost(item.Get("estimated_cost"))
	if err != nil {
		return itinerary.Entry{}, err
	}

	date := strings.TrimSpace(item.Get("date").String())
	if date != "" && !lo.Contains(dates, date) {
		return itinerary.Entry{}, fmt.Errorf("date %q is not one of the requested dates", date)
	}

	return itinerary.Entry{
		Title:         title,
		StartTime:     start,
		EndTime:       end,
		Location:      location,
		Description:   strings.TrimSpace(item.Get("description").String()),
		TicketInfo:    strings.TrimSpace(item.Get("ticket_info").String()),
		EstimatedCost: cost,
		Date:          date,
	}, nil
}

// NormalizeClock parses a time of day and renders it as HH:MM.
func NormalizeClock(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("unparsable time %q", s)
}

func parseCost(v gjson.Result) (float64, error) {
	var cost float64
	switch v.Type {
	case gjson.Null:
		return 0, nil
	case gjson.Number:
		cost = v.Float()
	case gjson.String:
		s := strings.TrimSpace(strings.ToLower(v.String()))
		s = strings.NewReplacer("$", "", ",", "", "usd", "").Replace(s)
		s = strings.TrimSpace(s)
		if s == "" || s == "free" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unparsable estimated_cost %q", v.String())
		}
		cost = f
	default:
		return 0, fmt.Errorf("unparsable estimated_cost %s", v.Raw)
	}
	if cost < 0 {
		return 0, fmt.Errorf("negative estimated_cost %v", cost)
	}
	return cost, nil
}

// Finalize removes excluded titles and duplicates (same title, start time
// and day, first one wins) and orders entries by day then start time.
func Finalize(entries []itinerary.Entry, excluded []string, firstDate string) []itinerary.Entry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]itinerary.Entry, 0, len(entries))
	for _, e := range entries {
		if lo.Contains(excluded, e.Title) {
			continue
		}
		key := e.Key(firstDate)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].EffectiveDate(firstDate), out[j].EffectiveDate(firstDate)
		if di != dj {
			return di < dj
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
