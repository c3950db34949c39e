package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/sw33tLie/metropolis/pkg/itinerary"
	"github.com/sw33tLie/metropolis/pkg/whttp"
)

const (
	defaultSerpAPIEndpoint = "https://serpapi.com/search.json"
	defaultTimeout         = 15 * time.Second
	DefaultMaxResults      = 15
)

// SerpAPIConfig configures the SerpAPI google_events adapter.
type SerpAPIConfig struct {
	APIKey     string
	Endpoint   string
	Timeout    time.Duration
	MaxResults int
	// DateInQuery appends the requested date to the search text.
	DateInQuery bool
	HTTPClient  *retryablehttp.Client
	Log         Logger
}

// SerpAPI searches Google Events through serpapi.com.
type SerpAPI struct {
	apiKey      string
	endpoint    string
	maxResults  int
	dateInQuery bool
	client      *retryablehttp.Client
	log         Logger
}

func NewSerpAPI(cfg SerpAPIConfig) *SerpAPI {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultSerpAPIEndpoint
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		// single attempt per search
		client = whttp.NewClient(whttp.Options{Timeout: timeout, Retries: 0})
	}

	var log Logger = nopLogger{}
	if cfg.Log != nil {
		log = cfg.Log
	}

	return &SerpAPI{
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		maxResults:  maxResults,
		dateInQuery: cfg.DateInQuery,
		client:      client,
		log:         log,
	}
}

func (s *SerpAPI) Name() string { return "serpapi" }

// SearchEvents runs one google_events query for the city. Budget and
// preferences are not sent to the provider; the synthesizer filters on them.
func (s *SerpAPI) SearchEvents(ctx context.Context, city, state, date string, budget itinerary.Budget, preferences string) []itinerary.RawEvent {
	query := s.Query(city, state, date)
	s.log.Debugf("[serpapi] searching %q", query)

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		URL: s.endpoint,
		Query: url.Values{
			"engine":  {"google_events"},
			"q":       {query},
			"hl":      {"en"},
			"gl":      {"us"},
			"api_key": {s.apiKey},
		},
	}, s.client)
	if err != nil {
		s.log.Warnf("[serpapi] request for %q failed: %v", query, err)
		return []itinerary.RawEvent{}
	}
	if !res.OK() {
		s.log.Warnf("[serpapi] request for %q returned %s", query, res.Describe())
		return []itinerary.RawEvent{}
	}

	events, err := ParseEvents(res.BodyString)
	if err != nil {
		s.log.Warnf("[serpapi] %v", err)
		return []itinerary.RawEvent{}
	}
	if len(events) > s.maxResults {
		events = events[:s.maxResults]
	}
	s.log.Debugf("[serpapi] found %d events for %q", len(events), query)
	return events
}

// Query builds the search text sent to the provider.
func (s *SerpAPI) Query(city, state, date string) string {
	q := fmt.Sprintf("Events in %s, %s", strings.TrimSpace(city), strings.TrimSpace(state))
	if s.dateInQuery {
		if t, err := time.Parse(itinerary.DateLayout, date); err == nil {
			q += " on " + t.Format("January 2")
		}
	}
	return q
}

// ParseEvents extracts events_results from a google_events payload.
func ParseEvents(body string) ([]itinerary.RawEvent, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("invalid JSON in events response")
	}
	if e := gjson.Get(body, "error"); e.Exists() {
		return nil, fmt.Errorf("provider error: %s", e.String())
	}

	var events []itinerary.RawEvent
	for _, item := range gjson.Get(body, "events_results").Array() {
		title := strings.TrimSpace(item.Get("title").String())
		if title == "" {
			continue
		}
		addr := lo.Map(item.Get("address").Array(), func(r gjson.Result, _ int) string { return strings.TrimSpace(r.String()) })
		addr = lo.Filter(addr, func(a string, _ int) bool { return a != "" })

		link := item.Get("link").String()
		events = append(events, itinerary.RawEvent{
			Title:       title,
			Address:     strings.Join(addr, ", "),
			When:        item.Get("date.when").String(),
			StartDate:   item.Get("date.start_date").String(),
			Venue:       item.Get("venue.name").String(),
			Description: textFromMarkup(item.Get("description").String()),
			TicketInfo:  ticketInfo(item.Get("ticket_info")),
			Link:        link,
			LinkDomain:  registrableDomain(link),
			Thumbnail:   item.Get("thumbnail").String(),
		})
	}
	if events == nil {
		events = []itinerary.RawEvent{}
	}
	return events, nil
}

// ticketInfo summarizes the ticket_info array: prices when the provider has
// them, ticket vendors otherwise.
func ticketInfo(r gjson.Result) string {
	var prices, sources []string
	for _, t := range r.Array() {
		if p := strings.TrimSpace(t.Get("price").String()); p != "" {
			prices = append(prices, p)
		}
		if s := strings.TrimSpace(t.Get("source").String()); s != "" {
			sources = append(sources, s)
		}
	}
	if len(prices) > 0 {
		return strings.Join(lo.Uniq(prices), ", ")
	}
	return strings.Join(lo.Uniq(sources), ", ")
}

func textFromMarkup(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// registrableDomain returns e.g. "ticketmaster.com" for
// "https://www.ticketmaster.com/event/123".
func registrableDomain(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	domain, err := publicsuffix.Domain(u.Hostname())
	if err != nil {
		return ""
	}
	return domain
}
