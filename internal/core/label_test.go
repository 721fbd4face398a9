package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisagrees(t *testing.T) {
	t.Parallel()

	labeled := &VenueLabel{Label: Label{Ramp: true, Curb: false}}

	tests := []struct {
		name     string
		asserted Label
		current  *VenueLabel
		want     bool
	}{
		{"no label never disagrees", Label{Ramp: false, Curb: true}, nil, false},
		{"same label", Label{Ramp: true, Curb: false}, labeled, false},
		{"ramp differs", Label{Ramp: false, Curb: false}, labeled, true},
		{"curb differs", Label{Ramp: true, Curb: true}, labeled, true},
		{"both differ", Label{Ramp: false, Curb: true}, labeled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Disagrees(tt.asserted, tt.current))
		})
	}
}

func TestDisagrees_Exhaustive(t *testing.T) {
	t.Parallel()

	bools := []bool{false, true}
	for _, lr := range bools {
		for _, lc := range bools {
			current := &VenueLabel{Label: Label{Ramp: lr, Curb: lc}}
			for _, ar := range bools {
				for _, ac := range bools {
					asserted := Label{Ramp: ar, Curb: ac}
					want := ar != lr || ac != lc
					assert.Equal(t, want, Disagrees(asserted, current), "asserted=%+v current=%+v", asserted, current.Label)
					assert.False(t, Disagrees(asserted, nil))
				}
			}
		}
	}
}

func TestVenueLabel_Equal(t *testing.T) {
	t.Parallel()

	a := &VenueLabel{Label: Label{Ramp: true}, EvidenceRef: "https://img.example/a.jpg"}
	b := &VenueLabel{Label: Label{Ramp: true}, EvidenceRef: "https://img.example/a.jpg"}
	c := &VenueLabel{Label: Label{Ramp: true}, EvidenceRef: "https://img.example/c.jpg"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	var nilLabel *VenueLabel
	assert.True(t, nilLabel.Equal(nil))
}
