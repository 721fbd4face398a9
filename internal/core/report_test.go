package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReport() *Report {
	return &Report{
		VenueID:      "venue-1",
		AuthorID:     "user_42",
		Asserted:     Label{Ramp: true},
		EvidenceRefs: []EvidenceRef{"https://bucket.s3.amazonaws.com/reviews/venue-1/a.jpg"},
	}
}

func TestReport_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(r *Report)
		wantErr bool
	}{
		{"valid", func(*Report) {}, false},
		{"no evidence", func(r *Report) { r.EvidenceRefs = nil }, false},
		{"empty venue", func(r *Report) { r.VenueID = "" }, true},
		{"venue with slash", func(r *Report) { r.VenueID = "a/b" }, true},
		{"empty author", func(r *Report) { r.AuthorID = "" }, true},
		{"relative evidence", func(r *Report) { r.EvidenceRefs = []EvidenceRef{"/tmp/a.jpg"} }, true},
		{"ftp evidence", func(r *Report) { r.EvidenceRefs = []EvidenceRef{"ftp://host/a.jpg"} }, true},
		{"too much evidence", func(r *Report) {
			r.EvidenceRefs = make([]EvidenceRef, MaxEvidencePerReport+1)
			for i := range r.EvidenceRefs {
				r.EvidenceRefs[i] = "https://img.example/x.jpg"
			}
		}, true},
		{"long text", func(r *Report) { r.Text = strings.Repeat("a", MaxReportTextLength+1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReport()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsCategory(err, ErrCatValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReport_DisagreementFlag(t *testing.T) {
	t.Parallel()

	r := validReport()
	assert.False(t, r.DisagreementKnown())
	assert.False(t, r.IsDisagreeing())

	r.SetDisagrees(true)
	assert.True(t, r.DisagreementKnown())
	assert.True(t, r.IsDisagreeing())
}

func TestVenue_StateAndClone(t *testing.T) {
	t.Parallel()

	v := &Venue{ID: "v1", Name: "Cafe"}
	assert.Equal(t, VenueStateNoLabel, v.State())

	v.Label = &VenueLabel{Label: Label{Curb: true}}
	assert.Equal(t, VenueStateLabeled, v.State())

	c := v.Clone()
	c.Label.Curb = false
	assert.True(t, v.Label.Curb, "clone must not share the label")

	assert.Error(t, ValidateVenueName("   "))
	assert.NoError(t, ValidateVenueName("카페 스타"))
}
