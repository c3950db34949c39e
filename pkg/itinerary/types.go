package itinerary

import "time"

// Request is the set of parameters a planning request is built from.
type Request struct {
	City   string   `json:"city" yaml:"city" bson:"city"`
	State  string   `json:"state" yaml:"state" bson:"state"`
	Dates  []string `json:"dates" yaml:"dates" bson:"dates"`
	Budget Budget   `json:"budget" yaml:"budget" bson:"budget"`

	// Preferences are kept as ordered fragments: the initial free text first,
	// then every additional prompt given on recalculation.
	Preferences []string `json:"preferences,omitempty" yaml:"preferences,omitempty" bson:"preferences,omitempty"`

	// Excluded holds every title removed over the document's history.
	Excluded []string `json:"excluded,omitempty" yaml:"excluded,omitempty" bson:"excluded,omitempty"`
}

// RawEvent is a candidate event as returned by the events search provider.
// Providers are free to omit any field.
type RawEvent struct {
	Title       string `json:"title" yaml:"title"`
	Address     string `json:"address,omitempty" yaml:"address,omitempty"`
	When        string `json:"when,omitempty" yaml:"when,omitempty"`
	StartDate   string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	Venue       string `json:"venue,omitempty" yaml:"venue,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	TicketInfo  string `json:"ticket_info,omitempty" yaml:"ticket_info,omitempty"`
	Link        string `json:"link,omitempty" yaml:"link,omitempty"`
	LinkDomain  string `json:"link_domain,omitempty" yaml:"link_domain,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

// Entry is a single scheduled item of an itinerary.
type Entry struct {
	Title         string  `json:"title" yaml:"title" bson:"title"`
	StartTime     string  `json:"start_time" yaml:"start_time" bson:"start_time"`
	EndTime       string  `json:"end_time" yaml:"end_time" bson:"end_time"`
	Location      string  `json:"location" yaml:"location" bson:"location"`
	Description   string  `json:"description" yaml:"description" bson:"description"`
	TicketInfo    string  `json:"ticket_info" yaml:"ticket_info" bson:"ticket_info"`
	EstimatedCost float64 `json:"estimated_cost" yaml:"estimated_cost" bson:"estimated_cost"`
	Date          string  `json:"date,omitempty" yaml:"date,omitempty" bson:"date,omitempty"`
}

// Document is a stored, addressable itinerary.
type Document struct {
	ID         string    `json:"itinerary_id" yaml:"itinerary_id" bson:"_id"`
	Entries    []Entry   `json:"events" yaml:"events" bson:"entries"`
	Request    Request   `json:"request" yaml:"request" bson:"request"`
	TotalCost  float64   `json:"total_cost" yaml:"total_cost" bson:"total_cost"`
	Summary    string    `json:"summary" yaml:"summary" bson:"summary"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at" bson:"created_at"`
	PreviousID string    `json:"previous_itinerary_id,omitempty" yaml:"previous_itinerary_id,omitempty" bson:"previous_id,omitempty"`
	Revision   int       `json:"revision" yaml:"revision" bson:"revision"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// GeocodedEntry is an Entry with the coordinates its location resolved to.
// Lat and Lng are nil when the location could not be resolved.
type GeocodedEntry struct {
	Entry
	Lat              *float64 `json:"lat" yaml:"lat"`
	Lng              *float64 `json:"lng" yaml:"lng"`
	ResolvedLocation string   `json:"resolved_location" yaml:"resolved_location"`
}

// Resolved reports whether the entry has coordinates.
func (g GeocodedEntry) Resolved() bool {
	return g.Lat != nil && g.Lng != nil
}

// Point returns the entry coordinates. Only meaningful when Resolved is true.
func (g GeocodedEntry) Point() LatLng {
	if !g.Resolved() {
		return LatLng{}
	}
	return LatLng{Lat: *g.Lat, Lng: *g.Lng}
}
