package core

import (
	"time"
	"unicode/utf8"
)

// ReportID uniquely identifies a report.
type ReportID string

// MaxReportTextLength bounds the free-text part of a report.
const MaxReportTextLength = 2000

// Experience holds the informational part of a report. It plays no role in
// label reconciliation.
type Experience struct {
	EnteredAlone        bool `json:"entered_alone" yaml:"entered_alone"`
	Comfort             bool `json:"comfort" yaml:"comfort"`
	EnteredSuccessfully bool `json:"entered_successfully" yaml:"entered_successfully"`
}

// Report is a user-submitted accessibility observation.
type Report struct {
	ID           ReportID
	VenueID      VenueID
	AuthorID     string
	CreatedAt    time.Time
	Experience   Experience
	Asserted     Label
	EvidenceRefs []EvidenceRef
	Text         string
	// Disagrees is computed once against the label in force at submission.
	// Nil marks a legacy report that predates the field; it is back-filled
	// the first time the report enters a consensus window.
	Disagrees *bool
	// Seq is assigned by the store on insert and only grows. It orders
	// reports by arrival regardless of clock readings.
	Seq int64
}

// DisagreementKnown reports whether the disagreement flag has been computed.
func (r *Report) DisagreementKnown() bool {
	return r.Disagrees != nil
}

// IsDisagreeing returns the stored flag, treating unknown as false.
func (r *Report) IsDisagreeing() bool {
	return r.Disagrees != nil && *r.Disagrees
}

// SetDisagrees records the disagreement flag.
func (r *Report) SetDisagrees(v bool) {
	r.Disagrees = &v
}

// Validate checks the externally supplied fields of a report.
func (r *Report) Validate() error {
	if err := ValidateID("venue_id", string(r.VenueID)); err != nil {
		return err
	}
	if err := ValidateID("author_id", r.AuthorID); err != nil {
		return err
	}
	if len(r.EvidenceRefs) > MaxEvidencePerReport {
		return ErrValidation(CodeTooManyEvidence, "too many evidence references").
			WithDetail("max", MaxEvidencePerReport)
	}
	for _, ref := range r.EvidenceRefs {
		if err := ref.Validate(); err != nil {
			return err
		}
	}
	if utf8.RuneCountInString(r.Text) > MaxReportTextLength {
		return ErrValidation(CodeTextTooLong, "report text is too long")
	}
	return nil
}

// ReportScores aggregates the informational flags of a venue's reports.
type ReportScores struct {
	EnterSuccessRate   float64 `json:"enter_success_rate"`
	AloneEntryRate     float64 `json:"alone_entry_rate"`
	ComfortRate        float64 `json:"comfort_rate"`
	LabelAgreementRate float64 `json:"label_agreement_rate"`
	ReportCount        int     `json:"report_count"`
}
