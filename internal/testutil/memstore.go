package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

// MemoryStore is an in-memory VenueStore and ReportStore with the same
// compare-and-set semantics as the SQLite store.
type MemoryStore struct {
	mu      sync.Mutex
	venues  map[core.VenueID]*core.Venue
	order   []core.VenueID
	reports []*storedReport
	seq     int64
	now     func() time.Time

	// BeforeCommit runs before every label-state commit, outside the store
	// lock. Tests use it to interleave concurrent writers.
	BeforeCommit func(id core.VenueID)

	insertErr error
	commits   int
}

type storedReport struct {
	seq    int64
	report *core.Report
}

var (
	_ core.VenueStore  = (*MemoryStore)(nil)
	_ core.ReportStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		venues: make(map[core.VenueID]*core.Venue),
		now:    time.Now,
	}
}

// WithInsertError makes InsertReport fail with err.
func (m *MemoryStore) WithInsertError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErr = err
	return m
}

// CommitCount returns the number of successful label-state commits.
func (m *MemoryStore) CommitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// CreateVenue implements core.VenueStore.
func (m *MemoryStore) CreateVenue(_ context.Context, venue *core.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if venue.ID == "" {
		venue.ID = core.VenueID(fmt.Sprintf("venue-%d", len(m.order)+1))
	}
	if _, exists := m.venues[venue.ID]; exists {
		return core.ErrValidation(core.CodeDuplicateID, "venue already exists: "+string(venue.ID))
	}
	now := m.now().UTC()
	if venue.CreatedAt.IsZero() {
		venue.CreatedAt = now
	}
	venue.UpdatedAt = now
	venue.Label = nil
	venue.NeedsEvidence = false
	venue.LastRecheckAt = nil
	venue.RecheckedThrough = 0
	venue.Version = 0

	m.venues[venue.ID] = venue.Clone()
	m.order = append(m.order, venue.ID)
	return nil
}

// GetVenue implements core.VenueStore.
func (m *MemoryStore) GetVenue(_ context.Context, id core.VenueID) (*core.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[id]
	if !ok {
		return nil, core.ErrNotFound("venue", string(id))
	}
	return v.Clone(), nil
}

// ListVenues implements core.VenueStore.
func (m *MemoryStore) ListVenues(_ context.Context) ([]*core.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*core.Venue, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.venues[id].Clone())
	}
	return out, nil
}

// CommitLabel implements core.VenueStore.
func (m *MemoryStore) CommitLabel(_ context.Context, id core.VenueID, expectedVersion int64, label core.VenueLabel, mark core.RecheckMark) error {
	return m.commit(id, expectedVersion, func(v *core.Venue) {
		l := label
		v.Label = &l
		v.NeedsEvidence = false
		m.applyMark(v, mark)
	})
}

// CommitNeedsEvidence implements core.VenueStore.
func (m *MemoryStore) CommitNeedsEvidence(_ context.Context, id core.VenueID, expectedVersion int64, mark core.RecheckMark) error {
	return m.commit(id, expectedVersion, func(v *core.Venue) {
		v.NeedsEvidence = true
		m.applyMark(v, mark)
	})
}

// RestoreLabelState implements core.VenueStore.
func (m *MemoryStore) RestoreLabelState(_ context.Context, id core.VenueID, expectedVersion int64, state core.LabelState) error {
	return m.commit(id, expectedVersion, func(v *core.Venue) {
		v.Label = nil
		if state.Label != nil {
			l := *state.Label
			v.Label = &l
		}
		v.NeedsEvidence = state.NeedsEvidence
		v.LastRecheckAt = nil
		if state.LastRecheckAt != nil {
			t := state.LastRecheckAt.UTC()
			v.LastRecheckAt = &t
		}
		v.RecheckedThrough = m.resolveThrough(id, state.Through)
	})
}

// applyMark must be called with m.mu held.
func (m *MemoryStore) applyMark(v *core.Venue, mark core.RecheckMark) {
	t := mark.At.UTC()
	v.LastRecheckAt = &t
	v.RecheckedThrough = max(v.RecheckedThrough, m.resolveThrough(v.ID, mark.Through))
}

func (m *MemoryStore) resolveThrough(id core.VenueID, through int64) int64 {
	if through >= 0 {
		return through
	}
	var latest int64
	for _, sr := range m.reports {
		if sr.report.VenueID == id && sr.seq > latest {
			latest = sr.seq
		}
	}
	return latest
}

func (m *MemoryStore) commit(id core.VenueID, expectedVersion int64, apply func(*core.Venue)) error {
	if m.BeforeCommit != nil {
		m.BeforeCommit(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[id]
	if !ok {
		return core.ErrNotFound("venue", string(id))
	}
	if v.Version != expectedVersion {
		return core.ErrConflict("venue", string(id))
	}
	apply(v)
	v.Version++
	v.UpdatedAt = m.now().UTC()
	m.commits++
	return nil
}

// SetVenueLabel overwrites a venue's label directly, bumping its version.
// It stands in for an out-of-band writer in tests.
func (m *MemoryStore) SetVenueLabel(id core.VenueID, label *core.VenueLabel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.venues[id]; ok {
		if label == nil {
			v.Label = nil
		} else {
			l := *label
			v.Label = &l
		}
		v.Version++
	}
}

// InsertReport implements core.ReportStore.
func (m *MemoryStore) InsertReport(_ context.Context, r *core.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.venues[r.VenueID]; !ok {
		return core.ErrStorage("venue does not exist: " + string(r.VenueID))
	}
	m.seq++
	if r.ID == "" {
		r.ID = core.ReportID(fmt.Sprintf("report-%d", m.seq))
	}
	for _, sr := range m.reports {
		if sr.report.ID == r.ID {
			return core.ErrStorage("duplicate report id: " + string(r.ID))
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}
	r.Seq = m.seq
	m.reports = append(m.reports, &storedReport{seq: m.seq, report: cloneReport(r)})
	return nil
}

// GetReport implements core.ReportStore.
func (m *MemoryStore) GetReport(_ context.Context, id core.ReportID) (*core.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sr := m.find(id); sr != nil {
		return cloneReport(sr.report), nil
	}
	return nil, core.ErrNotFound("report", string(id))
}

// RecentReports implements core.ReportStore.
func (m *MemoryStore) RecentReports(_ context.Context, venueID core.VenueID, n int) ([]*core.Report, error) {
	return m.filter(func(r *core.Report) bool { return r.VenueID == venueID }, n), nil
}

// ListReportsByAuthor implements core.ReportStore.
func (m *MemoryStore) ListReportsByAuthor(_ context.Context, authorID string, limit int) ([]*core.Report, error) {
	return m.filter(func(r *core.Report) bool { return r.AuthorID == authorID }, limit), nil
}

// SetDisagreement implements core.ReportStore.
func (m *MemoryStore) SetDisagreement(_ context.Context, id core.ReportID, disagrees bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sr := m.find(id)
	if sr == nil {
		return core.ErrNotFound("report", string(id))
	}
	if sr.report.Disagrees == nil {
		sr.report.SetDisagrees(disagrees)
	}
	return nil
}

// DeleteReport implements core.ReportStore.
func (m *MemoryStore) DeleteReport(_ context.Context, id core.ReportID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sr := range m.reports {
		if sr.report.ID == id {
			m.reports = append(m.reports[:i], m.reports[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound("report", string(id))
}

// VenueScores implements core.ReportStore.
func (m *MemoryStore) VenueScores(_ context.Context, venueID core.VenueID) (core.ReportScores, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var scores core.ReportScores
	var success, alone, comfort, agree, known int
	for _, sr := range m.reports {
		r := sr.report
		if r.VenueID != venueID {
			continue
		}
		scores.ReportCount++
		if r.Experience.EnteredSuccessfully {
			success++
		}
		if r.Experience.EnteredAlone {
			alone++
		}
		if r.Experience.Comfort {
			comfort++
		}
		if r.DisagreementKnown() {
			known++
			if !r.IsDisagreeing() {
				agree++
			}
		}
	}
	if scores.ReportCount > 0 {
		n := float64(scores.ReportCount)
		scores.EnterSuccessRate = float64(success) / n
		scores.AloneEntryRate = float64(alone) / n
		scores.ComfortRate = float64(comfort) / n
	}
	if known > 0 {
		scores.LabelAgreementRate = float64(agree) / float64(known)
	}
	return scores, nil
}

func (m *MemoryStore) find(id core.ReportID) *storedReport {
	for _, sr := range m.reports {
		if sr.report.ID == id {
			return sr
		}
	}
	return nil
}

// filter returns matching reports newest first, ties broken by insertion.
func (m *MemoryStore) filter(match func(*core.Report) bool, limit int) []*core.Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]*storedReport, 0)
	for _, sr := range m.reports {
		if match(sr.report) {
			matched = append(matched, sr)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.report.CreatedAt.Equal(b.report.CreatedAt) {
			return a.report.CreatedAt.After(b.report.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*core.Report, len(matched))
	for i, sr := range matched {
		out[i] = cloneReport(sr.report)
	}
	return out
}

func cloneReport(r *core.Report) *core.Report {
	c := *r
	c.EvidenceRefs = append([]core.EvidenceRef(nil), r.EvidenceRefs...)
	if r.Disagrees != nil {
		d := *r.Disagrees
		c.Disagrees = &d
	}
	return &c
}
