package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/service/reconcile"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

type submitReportRequest struct {
	AuthorID      string          `json:"author_id"`
	AssertedLabel *labelDTO       `json:"asserted_label"`
	EvidenceRefs  []string        `json:"evidence_refs"`
	Experience    core.Experience `json:"experience"`
	Text          string          `json:"text"`
}

type submitReportResponse struct {
	ReportID string `json:"report_id"`
}

type deleteResponse struct {
	OK bool `json:"ok"`
}

// parseLimit reads ?limit=, defaulting to 50 and accepting 1..100.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, core.ErrValidation(core.CodeInvalidPayload, "limit must be between 1 and 100").
			WithDetail("limit", raw)
	}
	return n, nil
}

// handleSubmitReport accepts a report. Reconciliation runs inline but its
// failures never fail the submission once the report is stored.
func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req submitReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.AssertedLabel == nil {
		s.respondError(w, r, core.ErrValidation(core.CodeInvalidPayload, "asserted_label is required"))
		return
	}

	refs := make([]core.EvidenceRef, len(req.EvidenceRefs))
	for i, ref := range req.EvidenceRefs {
		refs[i] = core.EvidenceRef(ref)
	}

	reportID, err := s.engine.Intake.Submit(r.Context(), reconcile.SubmitRequest{
		VenueID:      id,
		AuthorID:     req.AuthorID,
		Asserted:     core.Label{Ramp: req.AssertedLabel.Ramp, Curb: req.AssertedLabel.Curb},
		EvidenceRefs: refs,
		Experience:   req.Experience,
		Text:         req.Text,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, submitReportResponse{ReportID: string(reportID)})
}

// handleListVenueReports lists a venue's reports, newest first.
func (s *Server) handleListVenueReports(w http.ResponseWriter, r *http.Request) {
	id, err := venueIDParam(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if _, err := s.venues.GetVenue(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	reports, err := s.reports.RecentReports(r.Context(), id, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReportList(reports))
}

// handleListUserReports lists one author's reports, newest first.
func (s *Server) handleListUserReports(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := core.ValidateID("user_id", userID); err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	reports, err := s.reports.ListReportsByAuthor(r.Context(), userID, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReportList(reports))
}

// handleDeleteReport removes a report.
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	if err := core.ValidateID("report_id", id); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.reports.DeleteReport(r.Context(), core.ReportID(id)); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.WithReport(id).Info("report deleted")
	s.respondJSON(w, http.StatusOK, deleteResponse{OK: true})
}
