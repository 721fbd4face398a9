package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

// VenueID uniquely identifies a venue.
type VenueID string

// VenueState is the reconciliation state of a venue.
type VenueState string

const (
	VenueStateNoLabel VenueState = "no_label"
	VenueStateLabeled VenueState = "labeled"
)

// MaxVenueNameLength bounds venue display names.
const MaxVenueNameLength = 200

// Venue is a physical place assessed for wheelchair accessibility.
type Venue struct {
	ID            VenueID
	Name          string
	Label         *VenueLabel
	NeedsEvidence bool
	LastRecheckAt *time.Time
	// RecheckedThrough is the Seq of the newest report the last label-state
	// commit acted on. Reports at or below it are never re-triggered.
	RecheckedThrough int64
	// Version increments on every label-state write and guards
	// compare-and-set commits.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// State returns the steady state of the venue.
func (v *Venue) State() VenueState {
	if v.Label == nil {
		return VenueStateNoLabel
	}
	return VenueStateLabeled
}

// Clone returns a deep copy of the venue.
func (v *Venue) Clone() *Venue {
	if v == nil {
		return nil
	}
	c := *v
	if v.Label != nil {
		l := *v.Label
		c.Label = &l
	}
	if v.LastRecheckAt != nil {
		t := *v.LastRecheckAt
		c.LastRecheckAt = &t
	}
	return &c
}

// ValidateVenueName checks a venue display name.
func ValidateVenueName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrValidation(CodeInvalidName, "venue name is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxVenueNameLength {
		return ErrValidation(CodeInvalidName, "venue name is too long")
	}
	return nil
}
