// Package store persists venues and reports in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

//go:embed migrations/002_add_rechecked_through.sql
var migrationV2 string

// SQLiteStore implements core.VenueStore and core.ReportStore.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	now    func() time.Time
}

// Option configures the store.
type Option func(*SQLiteStore)

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

var (
	_ core.VenueStore  = (*SQLiteStore)(nil)
	_ core.ReportStore = (*SQLiteStore)(nil)
)

// Open opens (creating if needed) the database at dbPath and applies
// pending migrations.
func Open(dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		dbPath: dbPath,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway and a single
	// connection avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("pinging database", err)
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}

	if version < 2 {
		if _, err := s.db.Exec(migrationV2); err != nil {
			return fmt.Errorf("applying migration v2: %w", err)
		}
	}
	return nil
}

func storageErr(op string, err error) error {
	return core.ErrStorage(op).WithCause(err)
}

// =============================================================================
// Venues
// =============================================================================

const venueColumns = `id, name, label_ramp, label_curb, label_evidence_ref,
	needs_evidence, last_recheck_at, rechecked_through, version, created_at, updated_at`

// throughExpr resolves a recheck mark's coverage. ThroughLatest becomes the
// newest report of the venue; coverage never moves backwards.
const throughExpr = `MAX(rechecked_through, CASE WHEN ? < 0
		THEN (SELECT COALESCE(MAX(seq), 0) FROM reports WHERE venue_id = venues.id)
		ELSE ? END)`

// CreateVenue registers a venue. Registration never carries a label.
func (s *SQLiteStore) CreateVenue(ctx context.Context, venue *core.Venue) error {
	if venue.ID == "" {
		venue.ID = core.VenueID(uuid.NewString())
	}
	now := s.now().UTC()
	if venue.CreatedAt.IsZero() {
		venue.CreatedAt = now
	}
	venue.UpdatedAt = now
	venue.Label = nil
	venue.NeedsEvidence = false
	venue.LastRecheckAt = nil
	venue.RecheckedThrough = 0
	venue.Version = 0

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO venues (id, name, needs_evidence, version, created_at, updated_at)
		VALUES (?, ?, 0, 0, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, string(venue.ID), venue.Name, venue.CreatedAt.UnixNano(), venue.UpdatedAt.UnixNano())
	if err != nil {
		return storageErr("inserting venue", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrValidation(core.CodeDuplicateID, fmt.Sprintf("venue already exists: %s", venue.ID))
	}
	return nil
}

// GetVenue loads a venue by ID.
func (s *SQLiteStore) GetVenue(ctx context.Context, id core.VenueID) (*core.Venue, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+venueColumns+" FROM venues WHERE id = ?", string(id))
	v, err := scanVenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("venue", string(id))
	}
	if err != nil {
		return nil, storageErr("loading venue", err)
	}
	return v, nil
}

// ListVenues returns all venues, oldest first.
func (s *SQLiteStore) ListVenues(ctx context.Context) ([]*core.Venue, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+venueColumns+" FROM venues ORDER BY created_at, id")
	if err != nil {
		return nil, storageErr("listing venues", err)
	}
	defer rows.Close()

	var venues []*core.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, storageErr("scanning venue", err)
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing venues", err)
	}
	return venues, nil
}

// CommitLabel sets the label if the venue is still at expectedVersion.
func (s *SQLiteStore) CommitLabel(ctx context.Context, id core.VenueID, expectedVersion int64, label core.VenueLabel, mark core.RecheckMark) error {
	at := mark.At.UTC().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE venues SET
			label_ramp = ?,
			label_curb = ?,
			label_evidence_ref = ?,
			needs_evidence = 0,
			last_recheck_at = ?,
			rechecked_through = `+throughExpr+`,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, boolToInt(label.Ramp), boolToInt(label.Curb), string(label.EvidenceRef),
		at, mark.Through, mark.Through, at, string(id), expectedVersion)
	if err != nil {
		return storageErr("committing label", err)
	}
	return s.checkCAS(ctx, res, id)
}

// CommitNeedsEvidence flags the venue if it is still at expectedVersion.
func (s *SQLiteStore) CommitNeedsEvidence(ctx context.Context, id core.VenueID, expectedVersion int64, mark core.RecheckMark) error {
	at := mark.At.UTC().UnixNano()
	res, err := s.db.ExecContext(ctx, `
		UPDATE venues SET
			needs_evidence = 1,
			last_recheck_at = ?,
			rechecked_through = `+throughExpr+`,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, at, mark.Through, mark.Through, at, string(id), expectedVersion)
	if err != nil {
		return storageErr("committing needs-evidence", err)
	}
	return s.checkCAS(ctx, res, id)
}

// RestoreLabelState overwrites the label state if the venue is still at
// expectedVersion. Coverage is set as given rather than merged.
func (s *SQLiteStore) RestoreLabelState(ctx context.Context, id core.VenueID, expectedVersion int64, state core.LabelState) error {
	var ramp, curb sql.NullInt64
	var ref sql.NullString
	if state.Label != nil {
		ramp = sql.NullInt64{Int64: boolToInt(state.Label.Ramp), Valid: true}
		curb = sql.NullInt64{Int64: boolToInt(state.Label.Curb), Valid: true}
		ref = sql.NullString{String: string(state.Label.EvidenceRef), Valid: true}
	}
	var lastRecheck sql.NullInt64
	if state.LastRecheckAt != nil {
		lastRecheck = sql.NullInt64{Int64: state.LastRecheckAt.UTC().UnixNano(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE venues SET
			label_ramp = ?,
			label_curb = ?,
			label_evidence_ref = ?,
			needs_evidence = ?,
			last_recheck_at = ?,
			rechecked_through = CASE WHEN ? < 0
				THEN (SELECT COALESCE(MAX(seq), 0) FROM reports WHERE venue_id = venues.id)
				ELSE ? END,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`, ramp, curb, ref, boolToInt(state.NeedsEvidence), lastRecheck,
		state.Through, state.Through, s.now().UTC().UnixNano(), string(id), expectedVersion)
	if err != nil {
		return storageErr("restoring label state", err)
	}
	return s.checkCAS(ctx, res, id)
}

// checkCAS distinguishes a missing venue from a version mismatch when a
// guarded update touched no rows.
func (s *SQLiteStore) checkCAS(ctx context.Context, res sql.Result, id core.VenueID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("reading update result", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM venues WHERE id = ?", string(id)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound("venue", string(id))
	}
	if err != nil {
		return storageErr("checking venue", err)
	}
	return core.ErrConflict("venue", string(id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(row rowScanner) (*core.Venue, error) {
	var (
		v             core.Venue
		id            string
		ramp, curb    sql.NullInt64
		evidenceRef   sql.NullString
		needsEvidence int64
		lastRecheck   sql.NullInt64
		through       int64
		created       int64
		updated       int64
	)
	if err := row.Scan(&id, &v.Name, &ramp, &curb, &evidenceRef,
		&needsEvidence, &lastRecheck, &through, &v.Version, &created, &updated); err != nil {
		return nil, err
	}

	v.ID = core.VenueID(id)
	if ramp.Valid && curb.Valid {
		v.Label = &core.VenueLabel{
			Label:       core.Label{Ramp: ramp.Int64 != 0, Curb: curb.Int64 != 0},
			EvidenceRef: core.EvidenceRef(evidenceRef.String),
		}
	}
	v.NeedsEvidence = needsEvidence != 0
	if lastRecheck.Valid {
		t := fromNanos(lastRecheck.Int64)
		v.LastRecheckAt = &t
	}
	v.RecheckedThrough = through
	v.CreatedAt = fromNanos(created)
	v.UpdatedAt = fromNanos(updated)
	return &v, nil
}

// =============================================================================
// Reports
// =============================================================================

const reportColumns = `id, venue_id, author_id, created_at, entered_alone, comfort,
	entered_successfully, asserted_ramp, asserted_curb, evidence_refs, text, disagrees, seq`

// InsertReport persists a report. Missing IDs and timestamps are assigned.
func (s *SQLiteStore) InsertReport(ctx context.Context, r *core.Report) error {
	if r.ID == "" {
		r.ID = core.ReportID(uuid.NewString())
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	refs := r.EvidenceRefs
	if refs == nil {
		refs = []core.EvidenceRef{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("marshaling evidence refs: %w", err)
	}

	var disagrees sql.NullInt64
	if r.Disagrees != nil {
		disagrees = sql.NullInt64{Int64: boolToInt(*r.Disagrees), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (
			id, venue_id, author_id, created_at, entered_alone, comfort,
			entered_successfully, asserted_ramp, asserted_curb, evidence_refs, text, disagrees
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(r.ID), string(r.VenueID), r.AuthorID, r.CreatedAt.UTC().UnixNano(),
		boolToInt(r.Experience.EnteredAlone), boolToInt(r.Experience.Comfort),
		boolToInt(r.Experience.EnteredSuccessfully),
		boolToInt(r.Asserted.Ramp), boolToInt(r.Asserted.Curb),
		string(refsJSON), r.Text, disagrees,
	)
	if err != nil {
		return storageErr("inserting report", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return storageErr("reading report sequence", err)
	}
	r.Seq = seq
	return nil
}

// GetReport loads a report by ID.
func (s *SQLiteStore) GetReport(ctx context.Context, id core.ReportID) (*core.Report, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM reports WHERE id = ?", string(id))
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound("report", string(id))
	}
	if err != nil {
		return nil, storageErr("loading report", err)
	}
	return r, nil
}

// RecentReports returns up to n reports for a venue, newest first. Reports
// sharing a timestamp are ordered by insertion.
func (s *SQLiteStore) RecentReports(ctx context.Context, venueID core.VenueID, n int) ([]*core.Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE venue_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, string(venueID), n)
}

// ListReportsByAuthor returns up to limit reports written by an author,
// newest first.
func (s *SQLiteStore) ListReportsByAuthor(ctx context.Context, authorID string, limit int) ([]*core.Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE author_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, authorID, limit)
}

func (s *SQLiteStore) queryReports(ctx context.Context, query string, args ...any) ([]*core.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("querying reports", err)
	}
	defer rows.Close()

	reports := make([]*core.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, storageErr("scanning report", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("querying reports", err)
	}
	return reports, nil
}

// SetDisagreement back-fills the flag of a legacy report. Already computed
// flags are left alone.
func (s *SQLiteStore) SetDisagreement(ctx context.Context, id core.ReportID, disagrees bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reports SET disagrees = ? WHERE id = ? AND disagrees IS NULL",
		boolToInt(disagrees), string(id))
	if err != nil {
		return storageErr("back-filling disagreement", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.GetReport(ctx, id); err != nil {
		return err
	}
	return nil
}

// DeleteReport removes a report.
func (s *SQLiteStore) DeleteReport(ctx context.Context, id core.ReportID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", string(id))
	if err != nil {
		return storageErr("deleting report", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound("report", string(id))
	}
	return nil
}

// VenueScores aggregates the experience flags of a venue's reports.
func (s *SQLiteStore) VenueScores(ctx context.Context, venueID core.VenueID) (core.ReportScores, error) {
	var scores core.ReportScores
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(entered_successfully), 0.0),
			COALESCE(AVG(entered_alone), 0.0),
			COALESCE(AVG(comfort), 0.0),
			COALESCE(AVG(CASE WHEN disagrees IS NULL THEN NULL WHEN disagrees = 0 THEN 1.0 ELSE 0.0 END), 0.0)
		FROM reports WHERE venue_id = ?
	`, string(venueID)).Scan(
		&scores.ReportCount,
		&scores.EnterSuccessRate,
		&scores.AloneEntryRate,
		&scores.ComfortRate,
		&scores.LabelAgreementRate,
	)
	if err != nil {
		return core.ReportScores{}, storageErr("aggregating scores", err)
	}
	return scores, nil
}

func scanReport(row rowScanner) (*core.Report, error) {
	var (
		r                       core.Report
		id, venueID             string
		created                 int64
		alone, comfort, entered int64
		ramp, curb              int64
		refsJSON                string
		disagrees               sql.NullInt64
	)
	if err := row.Scan(&id, &venueID, &r.AuthorID, &created, &alone, &comfort,
		&entered, &ramp, &curb, &refsJSON, &r.Text, &disagrees, &r.Seq); err != nil {
		return nil, err
	}

	r.ID = core.ReportID(id)
	r.VenueID = core.VenueID(venueID)
	r.CreatedAt = fromNanos(created)
	r.Experience = core.Experience{
		EnteredAlone:        alone != 0,
		Comfort:             comfort != 0,
		EnteredSuccessfully: entered != 0,
	}
	r.Asserted = core.Label{Ramp: ramp != 0, Curb: curb != 0}
	if err := json.Unmarshal([]byte(refsJSON), &r.EvidenceRefs); err != nil {
		return nil, fmt.Errorf("decoding evidence refs of report %s: %w", id, err)
	}
	if disagrees.Valid {
		r.SetDisagrees(disagrees.Int64 != 0)
	}
	return &r, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
