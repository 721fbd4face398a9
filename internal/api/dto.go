package api

import (
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

type labelDTO struct {
	Ramp bool `json:"ramp"`
	Curb bool `json:"curb"`
}

type venueLabelDTO struct {
	Ramp        bool   `json:"ramp"`
	Curb        bool   `json:"curb"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

type venueResponse struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	CurrentLabel  *venueLabelDTO     `json:"current_label"`
	NeedsEvidence bool               `json:"needs_evidence"`
	LastRecheckAt *time.Time         `json:"last_recheck_at"`
	CreatedAt     time.Time          `json:"created_at"`
	AverageScores *core.ReportScores `json:"average_scores,omitempty"`
}

func toVenueResponse(v *core.Venue) venueResponse {
	resp := venueResponse{
		ID:            string(v.ID),
		Name:          v.Name,
		NeedsEvidence: v.NeedsEvidence,
		LastRecheckAt: v.LastRecheckAt,
		CreatedAt:     v.CreatedAt,
	}
	if v.Label != nil {
		resp.CurrentLabel = &venueLabelDTO{
			Ramp:        v.Label.Ramp,
			Curb:        v.Label.Curb,
			EvidenceRef: string(v.Label.EvidenceRef),
		}
	}
	return resp
}

type reportResponse struct {
	ID            string          `json:"id"`
	VenueID       string          `json:"venue_id"`
	AuthorID      string          `json:"author_id"`
	CreatedAt     time.Time       `json:"created_at"`
	AssertedLabel labelDTO        `json:"asserted_label"`
	EvidenceRefs  []string        `json:"evidence_refs"`
	Experience    core.Experience `json:"experience"`
	Text          string          `json:"text,omitempty"`
	Disagrees     *bool           `json:"disagrees"`
}

func toReportResponse(r *core.Report) reportResponse {
	refs := make([]string, len(r.EvidenceRefs))
	for i, ref := range r.EvidenceRefs {
		refs[i] = string(ref)
	}
	return reportResponse{
		ID:            string(r.ID),
		VenueID:       string(r.VenueID),
		AuthorID:      r.AuthorID,
		CreatedAt:     r.CreatedAt,
		AssertedLabel: labelDTO{Ramp: r.Asserted.Ramp, Curb: r.Asserted.Curb},
		EvidenceRefs:  refs,
		Experience:    r.Experience,
		Text:          r.Text,
		Disagrees:     r.Disagrees,
	}
}

func toReportList(reports []*core.Report) []reportResponse {
	out := make([]reportResponse, len(reports))
	for i, r := range reports {
		out[i] = toReportResponse(r)
	}
	return out
}
