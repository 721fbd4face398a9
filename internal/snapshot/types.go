// Package snapshot imports and exports venues and their reports as YAML
// documents. Imports write label state through the reconciliation engine so
// they are serialized with live traffic.
package snapshot

import (
	"context"
	"time"

	"github.com/kang022878/WheelCity-back-2025/internal/core"
)

const (
	// FormatVersion is the current snapshot document format version.
	FormatVersion = 1

	// DefaultMaxBytes bounds the size of an imported document.
	DefaultMaxBytes = 64 << 20
)

// ConflictPolicy controls how import handles venues or reports that
// already exist.
type ConflictPolicy string

const (
	ConflictSkip ConflictPolicy = "skip"
	ConflictFail ConflictPolicy = "fail"
)

// Document is the top-level snapshot file.
type Document struct {
	Version    int          `yaml:"version"`
	ExportedAt time.Time    `yaml:"exported_at,omitempty"`
	Venues     []VenueEntry `yaml:"venues"`
}

// VenueEntry is one venue with its label state and reports.
type VenueEntry struct {
	ID            string      `yaml:"id"`
	Name          string      `yaml:"name"`
	Label         *LabelEntry `yaml:"label,omitempty"`
	NeedsEvidence bool        `yaml:"needs_evidence,omitempty"`
	LastRecheckAt *time.Time  `yaml:"last_recheck_at,omitempty"`
	// RecheckedThrough names the newest report the last recheck covered.
	// Empty means none; absent means every report in the entry.
	RecheckedThrough *string       `yaml:"rechecked_through,omitempty"`
	Reports          []ReportEntry `yaml:"reports,omitempty"`
}

// LabelEntry is a venue label.
type LabelEntry struct {
	Ramp        bool   `yaml:"ramp"`
	Curb        bool   `yaml:"curb"`
	EvidenceRef string `yaml:"evidence_ref,omitempty"`
}

// ReportEntry is a stored report. Disagrees may be omitted for reports that
// predate the flag; it is back-filled the first time the report enters a
// consensus window.
type ReportEntry struct {
	ID           string          `yaml:"id,omitempty"`
	AuthorID     string          `yaml:"author_id"`
	CreatedAt    time.Time       `yaml:"created_at,omitempty"`
	Asserted     core.Label      `yaml:"asserted_label"`
	EvidenceRefs []string        `yaml:"evidence_refs,omitempty"`
	Experience   core.Experience `yaml:"experience"`
	Text         string          `yaml:"text,omitempty"`
	Disagrees    *bool           `yaml:"disagrees,omitempty"`
}

// ExportOptions configures snapshot export behavior.
type ExportOptions struct {
	OutputPath string
	// VenueIDs restricts the export. Empty exports every venue.
	VenueIDs []string
	Now      func() time.Time
}

// ExportResult describes an export operation.
type ExportResult struct {
	OutputPath  string `json:"output_path"`
	VenueCount  int    `json:"venue_count"`
	ReportCount int    `json:"report_count"`
}

// ImportOptions configures snapshot import behavior.
type ImportOptions struct {
	InputPath      string
	DryRun         bool
	ConflictPolicy ConflictPolicy
	MaxBytes       int64
	Now            func() time.Time
}

// VenueImportReport is the per-venue result of an import.
type VenueImportReport struct {
	ID              string `json:"id"`
	Action          string `json:"action"`
	Reason          string `json:"reason,omitempty"`
	ReportsImported int    `json:"reports_imported"`
	ReportsSkipped  int    `json:"reports_skipped"`
	Labeled         bool   `json:"labeled"`
}

// Import actions.
const (
	ActionCreated = "created"
	ActionSkipped = "skipped"
	ActionPlanned = "planned"
)

// ImportReport summarizes an import.
type ImportReport struct {
	DryRun         bool                `json:"dry_run"`
	ConflictPolicy ConflictPolicy      `json:"conflict_policy"`
	Venues         []VenueImportReport `json:"venues"`
	Conflicts      []string            `json:"conflicts,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
}

// Restorer writes a venue's label state under the engine's venue lock.
type Restorer interface {
	RestoreState(ctx context.Context, venueID core.VenueID, state core.LabelState) (*core.Venue, error)
}
