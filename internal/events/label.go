package events

import (
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// Event type constants for label reconciliation.
const (
	TypeLabelUpdated       = "label:updated"
	TypeLabelNeedsEvidence = "label:needs_evidence"
	TypeReportSubmitted    = "report:submitted"
)

// LabelPayload is the wire form of a venue label.
type LabelPayload struct {
	Ramp        bool   `json:"ramp"`
	Curb        bool   `json:"curb"`
	EvidenceRef string `json:"evidence_ref,omitempty"`
}

// LabelUpdatedEvent is emitted when a venue's label is committed, whether by
// initial labelling, re-evaluation, or an internal forced set.
type LabelUpdatedEvent struct {
	BaseEvent
	Label  LabelPayload `json:"label"`
	Source string       `json:"source"`
}

// NewLabelUpdatedEvent creates a new label updated event.
func NewLabelUpdatedEvent(venueID core.VenueID, label core.VenueLabel, source string, at time.Time) LabelUpdatedEvent {
	return LabelUpdatedEvent{
		BaseEvent: NewBaseEvent(TypeLabelUpdated, string(venueID), at),
		Label: LabelPayload{
			Ramp:        label.Ramp,
			Curb:        label.Curb,
			EvidenceRef: string(label.EvidenceRef),
		},
		Source: source,
	}
}

// LabelNeedsEvidenceEvent is emitted when re-evaluation could not resolve a
// label from the available evidence.
type LabelNeedsEvidenceEvent struct {
	BaseEvent
	EvidenceTried int `json:"evidence_tried"`
}

// NewLabelNeedsEvidenceEvent creates a new needs-evidence event.
func NewLabelNeedsEvidenceEvent(venueID core.VenueID, tried int, at time.Time) LabelNeedsEvidenceEvent {
	return LabelNeedsEvidenceEvent{
		BaseEvent:     NewBaseEvent(TypeLabelNeedsEvidence, string(venueID), at),
		EvidenceTried: tried,
	}
}

// ReportSubmittedEvent is emitted once a report is persisted.
type ReportSubmittedEvent struct {
	BaseEvent
	ReportID  string `json:"report_id"`
	Disagrees bool   `json:"disagrees"`
}

// NewReportSubmittedEvent creates a new report submitted event.
func NewReportSubmittedEvent(r *core.Report) ReportSubmittedEvent {
	return ReportSubmittedEvent{
		BaseEvent: NewBaseEvent(TypeReportSubmitted, string(r.VenueID), r.CreatedAt),
		ReportID:  string(r.ID),
		Disagrees: r.IsDisagreeing(),
	}
}
