package snapshot

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
	"github.com/kang022878/WheelCity-back-2025/internal/fsutil"
)

// Export writes venues and their reports to opts.OutputPath. Reports are
// written oldest first so a re-import preserves their order.
func Export(ctx context.Context, venues core.VenueStore, reports core.ReportStore, opts *ExportOptions) (*ExportResult, error) {
	if opts == nil || opts.OutputPath == "" {
		return nil, fmt.Errorf("output path is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	all, err := venues.ListVenues(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing venues: %w", err)
	}
	selected, err := selectVenues(all, opts.VenueIDs)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version:    FormatVersion,
		ExportedAt: now().UTC(),
		Venues:     make([]VenueEntry, 0, len(selected)),
	}
	result := &ExportResult{OutputPath: opts.OutputPath}

	for _, v := range selected {
		entry := VenueEntry{
			ID:            string(v.ID),
			Name:          v.Name,
			NeedsEvidence: v.NeedsEvidence,
			LastRecheckAt: v.LastRecheckAt,
		}
		if v.Label != nil {
			entry.Label = &LabelEntry{
				Ramp:        v.Label.Ramp,
				Curb:        v.Label.Curb,
				EvidenceRef: string(v.Label.EvidenceRef),
			}
		}

		rs, err := reports.RecentReports(ctx, v.ID, math.MaxInt32)
		if err != nil {
			return nil, fmt.Errorf("listing reports for %s: %w", v.ID, err)
		}
		slices.Reverse(rs)
		for _, r := range rs {
			entry.Reports = append(entry.Reports, toReportEntry(r))
		}
		if v.Label != nil || v.NeedsEvidence || v.LastRecheckAt != nil {
			through := coveredReport(rs, v.RecheckedThrough)
			entry.RecheckedThrough = &through
		}

		result.ReportCount += len(rs)
		doc.Venues = append(doc.Venues, entry)
	}
	result.VenueCount = len(doc.Venues)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := fsutil.WriteFileAtomic(opts.OutputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	return result, nil
}

// coveredReport returns the ID of the newest report at or below through,
// or "" if the recheck covered none of them.
func coveredReport(reports []*core.Report, through int64) string {
	var (
		id  string
		seq int64
	)
	for _, r := range reports {
		if r.Seq <= through && r.Seq > seq {
			id, seq = string(r.ID), r.Seq
		}
	}
	return id
}

func selectVenues(all []*core.Venue, ids []string) ([]*core.Venue, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[core.VenueID]*core.Venue, len(all))
	for _, v := range all {
		byID[v.ID] = v
	}
	out := make([]*core.Venue, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[core.VenueID(id)]
		if !ok {
			return nil, core.ErrNotFound("venue", id)
		}
		out = append(out, v)
	}
	return out, nil
}
