package snapshot

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/fsutil"
)

// ValidateSnapshot reads and checks a snapshot file without touching any
// store.
func ValidateSnapshot(inputPath string, maxBytes int64) (*Document, error) {
	if inputPath == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	data, err := fsutil.ReadFileLimited(inputPath, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func validateDocument(doc *Document) error {
	if doc.Version != FormatVersion {
		return fmt.Errorf("unsupported snapshot version %d (want %d)", doc.Version, FormatVersion)
	}

	venueIDs := make(map[string]bool, len(doc.Venues))
	reportIDs := make(map[string]bool)
	for i, v := range doc.Venues {
		where := fmt.Sprintf("venues[%d]", i)
		if err := core.ValidateID("venue_id", v.ID); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if venueIDs[v.ID] {
			return fmt.Errorf("%s: duplicate venue id %q", where, v.ID)
		}
		venueIDs[v.ID] = true
		if err := core.ValidateVenueName(v.Name); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if v.Label != nil && v.Label.EvidenceRef != "" {
			if err := core.EvidenceRef(v.Label.EvidenceRef).Validate(); err != nil {
				return fmt.Errorf("%s.label: %w", where, err)
			}
		}
		if v.NeedsEvidence && v.Label == nil {
			return fmt.Errorf("%s: needs_evidence requires a label", where)
		}

		if v.RecheckedThrough != nil && *v.RecheckedThrough != "" && !hasReport(v.Reports, *v.RecheckedThrough) {
			return fmt.Errorf("%s: rechecked_through names unknown report %q", where, *v.RecheckedThrough)
		}

		for j, r := range v.Reports {
			rwhere := fmt.Sprintf("%s.reports[%d]", where, j)
			if r.ID != "" {
				if err := core.ValidateID("report_id", r.ID); err != nil {
					return fmt.Errorf("%s: %w", rwhere, err)
				}
				if reportIDs[r.ID] {
					return fmt.Errorf("%s: duplicate report id %q", rwhere, r.ID)
				}
				reportIDs[r.ID] = true
			}
			if err := toReport(v.ID, r).Validate(); err != nil {
				return fmt.Errorf("%s: %w", rwhere, err)
			}
		}
	}
	return nil
}

func hasReport(reports []ReportEntry, id string) bool {
	for _, r := range reports {
		if r.ID == id {
			return true
		}
	}
	return false
}

func toReport(venueID string, r ReportEntry) *core.Report {
	refs := make([]core.EvidenceRef, len(r.EvidenceRefs))
	for i, ref := range r.EvidenceRefs {
		refs[i] = core.EvidenceRef(ref)
	}
	report := &core.Report{
		ID:           core.ReportID(r.ID),
		VenueID:      core.VenueID(venueID),
		AuthorID:     r.AuthorID,
		CreatedAt:    r.CreatedAt.UTC(),
		Asserted:     r.Asserted,
		EvidenceRefs: refs,
		Experience:   r.Experience,
		Text:         r.Text,
	}
	if r.Disagrees != nil {
		report.SetDisagrees(*r.Disagrees)
	}
	return report
}

func toReportEntry(r *core.Report) ReportEntry {
	refs := make([]string, len(r.EvidenceRefs))
	for i, ref := range r.EvidenceRefs {
		refs[i] = string(ref)
	}
	return ReportEntry{
		ID:           string(r.ID),
		AuthorID:     r.AuthorID,
		CreatedAt:    r.CreatedAt.UTC(),
		Asserted:     r.Asserted,
		EvidenceRefs: refs,
		Experience:   r.Experience,
		Text:         r.Text,
		Disagrees:    r.Disagrees,
	}
}
