// Package export renders stored itineraries as calendar files and printable
// PDF documents.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
)

const (
	ProductID      = "-//Metropolis Itinerary//metropolis.app//"
	CalendarMIME   = "text/calendar; charset=utf-8"
	defaultStart   = "09:00"
	defaultEnd     = "10:00"
	icsLocalLayout = "20060102T150405"
)

var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://metropolis.app/itinerary"))

// ICSEncoder serializes documents to iCalendar. Start and end times are
// written as floating local times: an itinerary is planned in the city's
// own wall clock.
type ICSEncoder struct {
	// Now stamps DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

func (e ICSEncoder) Encode(doc *itinerary.Document) ([]byte, error) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC()

	cal := ics.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetVersion("2.0")
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(fmt.Sprintf("Metropolis - %s Itinerary", doc.Request.City))

	firstDate := doc.FirstDate()
	if firstDate == "" {
		firstDate = stamp.Format(itinerary.DateLayout)
	}

	for i, entry := range doc.Entries {
		date := entry.EffectiveDate(firstDate)
		start, err := localDateTime(date, entry.StartTime, defaultStart)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, entry.Title, err)
		}
		end, err := localDateTime(date, entry.EndTime, defaultEnd)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, entry.Title, err)
		}

		event := cal.AddEvent(EntryUID(doc.ID, i, entry, date))
		event.SetDtStampTime(stamp)
		event.SetProperty(ics.ComponentPropertyDtStart, start.Format(icsLocalLayout))
		event.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icsLocalLayout))
		title := entry.Title
		if title == "" {
			title = "Event"
		}
		event.SetSummary(title)
		event.SetDescription(description(entry))
		event.SetLocation(entry.Location)
	}

	return []byte(cal.Serialize()), nil
}

// EntryUID is stable for a given document, position and entry.
func EntryUID(docID string, index int, entry itinerary.Entry, date string) string {
	name := fmt.Sprintf("%s|%d|%s|%s|%s", docID, index, entry.Title, entry.StartTime, date)
	return uuid.NewSHA1(uidNamespace, []byte(name)).String()
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename is the attachment name used when downloading a calendar.
func Filename(doc *itinerary.Document) string {
	return baseName(doc) + ".ics"
}

func baseName(doc *itinerary.Document) string {
	city := strings.Trim(unsafeFilename.ReplaceAllString(strings.TrimSpace(doc.Request.City), "_"), "_")
	if city == "" {
		city = "itinerary"
	}
	date := doc.FirstDate()
	if date == "" {
		return "metropolis_" + city
	}
	return fmt.Sprintf("metropolis_%s_%s", city, date)
}

func localDateTime(date, clock, fallback string) (time.Time, error) {
	day, err := time.Parse(itinerary.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	t, err := time.Parse("15:04", clock)
	if err != nil {
		t, _ = time.Parse("15:04", fallback)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

func description(e itinerary.Entry) string {
	desc := e.Description
	if e.TicketInfo != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += "Tickets: " + e.TicketInfo
	}
	return desc
}
