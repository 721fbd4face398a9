package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// Import loads a snapshot into the stores. Venues are created unlabeled,
// their reports inserted with their stored disagreement flags, and label
// state restored last through restorer, including which reports the last
// recheck covered.
func Import(ctx context.Context, venues core.VenueStore, reports core.ReportStore, restorer Restorer, opts *ImportOptions) (*ImportReport, error) {
	if err := normalizeImportOptions(opts); err != nil {
		return nil, err
	}

	doc, err := ValidateSnapshot(opts.InputPath, opts.MaxBytes)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{
		DryRun:         opts.DryRun,
		ConflictPolicy: opts.ConflictPolicy,
		Venues:         make([]VenueImportReport, 0, len(doc.Venues)),
	}

	for _, entry := range doc.Venues {
		vr, err := importVenue(ctx, venues, reports, restorer, entry, opts, report)
		if err != nil {
			return report, err
		}
		report.Venues = append(report.Venues, vr)
	}
	return report, nil
}

func normalizeImportOptions(opts *ImportOptions) error {
	if opts == nil {
		return fmt.Errorf("import options are required")
	}
	if opts.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	switch opts.ConflictPolicy {
	case "":
		opts.ConflictPolicy = ConflictSkip
	case ConflictSkip, ConflictFail:
	default:
		return fmt.Errorf("unknown conflict policy %q", opts.ConflictPolicy)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return nil
}

func importVenue(ctx context.Context, venues core.VenueStore, reports core.ReportStore, restorer Restorer, entry VenueEntry, opts *ImportOptions, ir *ImportReport) (VenueImportReport, error) {
	vr := VenueImportReport{ID: entry.ID}
	id := core.VenueID(entry.ID)

	_, err := venues.GetVenue(ctx, id)
	switch {
	case err == nil:
		conflict := fmt.Sprintf("venue %s already exists", entry.ID)
		ir.Conflicts = append(ir.Conflicts, conflict)
		if opts.ConflictPolicy == ConflictFail {
			return vr, fmt.Errorf("%s", conflict)
		}
		vr.Action = ActionSkipped
		vr.Reason = "already exists"
		return vr, nil
	case !core.IsCategory(err, core.ErrCatNotFound):
		return vr, fmt.Errorf("checking venue %s: %w", entry.ID, err)
	}

	if opts.DryRun {
		vr.Action = ActionPlanned
		vr.ReportsImported = len(entry.Reports)
		vr.Labeled = entry.Label != nil
		return vr, nil
	}

	if err := venues.CreateVenue(ctx, &core.Venue{ID: id, Name: entry.Name}); err != nil {
		return vr, fmt.Errorf("creating venue %s: %w", entry.ID, err)
	}
	vr.Action = ActionCreated

	now := opts.Now().UTC()
	seqs := make(map[string]int64, len(entry.Reports))
	for _, re := range entry.Reports {
		r := toReport(entry.ID, re)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.ID != "" {
			if _, err := reports.GetReport(ctx, r.ID); err == nil {
				ir.Conflicts = append(ir.Conflicts, fmt.Sprintf("report %s already exists", r.ID))
				if opts.ConflictPolicy == ConflictFail {
					return vr, fmt.Errorf("report %s already exists", r.ID)
				}
				vr.ReportsSkipped++
				continue
			}
		}
		if err := reports.InsertReport(ctx, r); err != nil {
			return vr, fmt.Errorf("inserting report for %s: %w", entry.ID, err)
		}
		seqs[string(r.ID)] = r.Seq
		vr.ReportsImported++
	}

	if entry.Label == nil && !entry.NeedsEvidence && entry.LastRecheckAt == nil {
		return vr, nil
	}
	state := core.LabelState{
		NeedsEvidence: entry.NeedsEvidence,
		LastRecheckAt: entry.LastRecheckAt,
		Through:       core.ThroughLatest,
	}
	if entry.Label != nil {
		state.Label = &core.VenueLabel{
			Label:       core.Label{Ramp: entry.Label.Ramp, Curb: entry.Label.Curb},
			EvidenceRef: core.EvidenceRef(entry.Label.EvidenceRef),
		}
		if state.LastRecheckAt == nil {
			state.LastRecheckAt = &now
		}
	}
	if through := entry.RecheckedThrough; through != nil {
		seq, ok := seqs[*through]
		switch {
		case *through == "":
			state.Through = 0
		case ok:
			state.Through = seq
		default:
			ir.Warnings = append(ir.Warnings, fmt.Sprintf("venue %s: report %s was not imported; treating all reports as rechecked", entry.ID, *through))
		}
	}

	if _, err := restorer.RestoreState(ctx, id, state); err != nil {
		return vr, fmt.Errorf("restoring venue %s: %w", entry.ID, err)
	}
	vr.Labeled = state.Label != nil
	return vr, nil
}
