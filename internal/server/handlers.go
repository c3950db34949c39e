package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/sw33tLie/metropolis/pkg/export"
	"github.com/sw33tLie/metropolis/pkg/itinerary"
	"github.com/sw33tLie/metropolis/pkg/maps"
)

const maxBodyBytes = 1 << 20

type GenerateRequest struct {
	City        string   `json:"city"`
	State       string   `json:"state"`
	Dates       []string `json:"dates"`
	Date        string   `json:"date,omitempty"`
	Budget      string   `json:"budget"`
	Preferences string   `json:"preferences"`
}

// Request folds the single date field into Dates.
func (g GenerateRequest) Request() itinerary.Request {
	req := itinerary.Request{
		City:   g.City,
		State:  g.State,
		Dates:  append([]string(nil), g.Dates...),
		Budget: itinerary.Budget(g.Budget),
	}
	if g.Date != "" {
		req.Dates = append(req.Dates, g.Date)
	}
	if strings.TrimSpace(g.Preferences) != "" {
		req.Preferences = []string{g.Preferences}
	}
	return req
}

type RecalculateRequest struct {
	ItineraryID      string   `json:"itinerary_id"`
	AdditionalPrompt string   `json:"additional_prompt"`
	ExcludedEvents   []string `json:"excluded_events"`
}

type GeocodeRequest struct {
	ItineraryID string `json:"itinerary_id"`
}

type RouteRequest struct {
	ItineraryID string `json:"itinerary_id"`
	Mode        string `json:"mode"`
	Date        string `json:"date,omitempty"`
}

// ItineraryResponse is the wire shape of a stored itinerary.
type ItineraryResponse struct {
	ItineraryID string            `json:"itinerary_id"`
	Events      []itinerary.Entry `json:"events"`
	TotalCost   float64           `json:"total_cost"`
	City        string            `json:"city"`
	State       string            `json:"state"`
	Dates       []string          `json:"dates"`
	Budget      itinerary.Budget  `json:"budget"`
	Preferences string            `json:"preferences"`
	Excluded    []string          `json:"excluded_events,omitempty"`
	Summary     string            `json:"summary"`
	Revision    int               `json:"revision"`
	PreviousID  string            `json:"previous_itinerary_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newItineraryResponse(doc *itinerary.Document) ItineraryResponse {
	return ItineraryResponse{
		ItineraryID: doc.ID,
		Events:      doc.Entries,
		TotalCost:   doc.TotalCost,
		City:        doc.Request.City,
		State:       doc.Request.State,
		Dates:       doc.Request.Dates,
		Budget:      doc.Request.Budget,
		Preferences: doc.Request.MergedPreferences(),
		Excluded:    doc.Request.Excluded,
		Summary:     doc.Summary,
		Revision:    doc.Revision,
		PreviousID:  doc.PreviousID,
		CreatedAt:   doc.CreatedAt,
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body GenerateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	doc, err := s.planner.Generate(r.Context(), body.Request())
	if err != nil {
		s.respondPlanError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, newItineraryResponse(doc))
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body RecalculateRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.ItineraryID) == "" {
		RespondWithError(w, http.StatusBadRequest, "itinerary_id is required")
		return
	}

	doc, err := s.planner.Recalculate(r.Context(), body.ItineraryID, body.AdditionalPrompt, body.ExcludedEvents)
	if err != nil {
		s.respondPlanError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, newItineraryResponse(doc))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doc, ok := s.lookup(w, r, ps.ByName("id"))
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, newItineraryResponse(doc))
}

func (s *Server) handleExportICS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doc, ok := s.lookup(w, r, ps.ByName("id"))
	if !ok {
		return
	}
	data, err := s.ics.Encode(doc)
	if err != nil {
		s.log.Errorf("Calendar export of %s failed: %v", doc.ID, err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to export itinerary")
		return
	}
	writeAttachment(w, data, export.CalendarMIME, export.Filename(doc))
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	doc, ok := s.lookup(w, r, ps.ByName("id"))
	if !ok {
		return
	}
	data, err := s.pdf.Encode(doc)
	if err != nil {
		s.log.Errorf("PDF export of %s failed: %v", doc.ID, err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to export itinerary")
		return
	}
	writeAttachment(w, data, "application/pdf", export.PDFFilename(doc))
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body GeocodeRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if s.resolver == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Maps are not configured")
		return
	}
	doc, ok := s.lookup(w, r, body.ItineraryID)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, s.resolver.Resolve(r.Context(), doc))
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body RouteRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if s.routes == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "Maps are not configured")
		return
	}
	mode, err := maps.ParseMode(body.Mode)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Date != "" {
		if _, err := time.Parse(itinerary.DateLayout, body.Date); err != nil {
			RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", body.Date))
			return
		}
	}
	doc, ok := s.lookup(w, r, body.ItineraryID)
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, s.routes.Build(r.Context(), doc, mode, body.Date))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	RespondWithJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleBudgets(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	RespondWithJSON(w, http.StatusOK, map[string][]itinerary.Budget{"budgets": itinerary.Budgets()})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, id string) (*itinerary.Document, bool) {
	if strings.TrimSpace(id) == "" {
		RespondWithError(w, http.StatusBadRequest, "itinerary_id is required")
		return nil, false
	}
	doc, err := s.planner.Get(r.Context(), id)
	if err != nil {
		s.respondPlanError(w, err)
		return nil, false
	}
	return doc, true
}

// respondPlanError maps planner errors to status codes. Internal details of
// synthesis and storage failures are logged, not returned.
func (s *Server) respondPlanError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, itinerary.ErrInvalidRequest):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, itinerary.ErrNoCandidatesFound):
		RespondWithError(w, http.StatusNotFound, "No events found for your criteria")
	case errors.Is(err, itinerary.ErrUnknownDocument):
		RespondWithError(w, http.StatusNotFound, "Itinerary not found")
	default:
		s.log.Errorf("Itinerary request failed: %v", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to generate itinerary")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeAttachment(w http.ResponseWriter, data []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// RespondWithJSON writes data as a JSON body with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondWithError writes {"error": msg}.
func RespondWithError(w http.ResponseWriter, status int, msg string) {
	RespondWithJSON(w, status, map[string]string{"error": msg})
}
