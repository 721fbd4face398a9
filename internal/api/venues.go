package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

type createVenueRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type setLabelRequest struct {
	Ramp        *bool  `json:"ramp"`
	Curb        *bool  `json:"curb"`
	EvidenceRef string `json:"evidence_ref"`
}

// venueIDParam validates the {venueID} path parameter.
func venueIDParam(r *http.Request) (core.VenueID, error) {
	id := chi.URLParam(r, "venueID")
	if err := core.ValidateID("venue_id", id); err != nil {
		return "", err
	}
	return core.VenueID(id), nil
}

// handleListVenues lists all venues with their current labels.
func (s *Server) handleListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.venues.ListVenues(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	out := make([]venueResponse, len(venues))
	for i, v := range venues {
		out[i] = toVenueResponse(v)
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleCreateVenue registers a venue with no label.
func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	var req createVenueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := core.ValidateVenueName(req.Name); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.ID != "" {
		if err := core.ValidateID("venue_id", req.ID); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	venue := &core.Venue{ID: core.VenueID(req.ID), Name: strings.TrimSpace(req.Name)}
	if err := s.venues.CreateVenue(r.Context(), venue); err != nil {
		s.respondError(w, r, err)
		return
	}
	created, err := s.venues.GetVenue(r.Context(), venue.ID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.WithVenue(string(created.ID)).Info("venue created", "name", created.Name)
	s.respondJSON(w, http.StatusCreated, toVenueResponse(created))
}

// handleGetVenue returns a venue with its label state and report averages.
func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	venue, err := s.venues.GetVenue(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	scores, err := s.reports.VenueScores(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := toVenueResponse(venue)
	resp.AverageScores = &scores
	s.respondJSON(w, http.StatusOK, resp)
}

// handleSetLabel forces a venue's label.
func (s *Server) handleSetLabel(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req setLabelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Ramp == nil || req.Curb == nil {
		s.respondError(w, r, core.ErrValidation(core.CodeInvalidPayload, "ramp and curb are required"))
		return
	}
	label := core.VenueLabel{
		Label:       core.Label{Ramp: *req.Ramp, Curb: *req.Curb},
		EvidenceRef: core.EvidenceRef(req.EvidenceRef),
	}
	if label.EvidenceRef != "" {
		if err := label.EvidenceRef.Validate(); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	venue, err := s.engine.Orchestrator.ForceLabel(r.Context(), id, label)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toVenueResponse(venue))
}
