package core

// Label is a ramp/curb accessibility claim.
type Label struct {
	Ramp bool `json:"ramp" yaml:"ramp"`
	Curb bool `json:"curb" yaml:"curb"`
}

// VenueLabel is the label in force for a venue together with the evidence
// that produced it.
type VenueLabel struct {
	Label
	EvidenceRef EvidenceRef `json:"evidence_ref,omitempty"`
}

// Equal reports whether two venue labels carry the same claim and evidence.
func (l *VenueLabel) Equal(other *VenueLabel) bool {
	if l == nil || other == nil {
		return l == nil && other == nil
	}
	return l.Label == other.Label && l.EvidenceRef == other.EvidenceRef
}

// Disagrees reports whether an asserted label contradicts the label in force.
// A venue without a label can never be disagreed with.
func Disagrees(asserted Label, current *VenueLabel) bool {
	if current == nil {
		return false
	}
	return asserted.Ramp != current.Ramp || asserted.Curb != current.Curb
}
