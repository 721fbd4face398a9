package reconcile

import (
	"sync"
	"time"
)

// Metrics collects reconciliation counters. It is safe for concurrent use.
type Metrics struct {
	mu              sync.RWMutex
	outcomes        map[Outcome]int
	triggers        int
	inferenceCalls  int
	inferenceFailed int
	conflicts       int
	totalDuration   time.Duration
	runs            int
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Outcomes         map[Outcome]int `json:"outcomes"`
	Triggers         int             `json:"reevaluation_triggers"`
	InferenceCalls   int             `json:"inference_calls"`
	InferenceFailed  int             `json:"inference_failures"`
	CommitConflicts  int             `json:"commit_conflicts"`
	AvgRunDurationMS int64           `json:"avg_run_duration_ms"`
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{outcomes: make(map[Outcome]int)}
}

func (m *Metrics) recordOutcome(o Outcome, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[o]++
	m.runs++
	m.totalDuration += d
}

func (m *Metrics) recordTrigger() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers++
}

func (m *Metrics) recordInference(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inferenceCalls++
	if failed {
		m.inferenceFailed++
	}
}

func (m *Metrics) recordConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	outcomes := make(map[Outcome]int, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	s := MetricsSnapshot{
		Outcomes:        outcomes,
		Triggers:        m.triggers,
		InferenceCalls:  m.inferenceCalls,
		InferenceFailed: m.inferenceFailed,
		CommitConflicts: m.conflicts,
	}
	if m.runs > 0 {
		s.AvgRunDurationMS = (m.totalDuration / time.Duration(m.runs)).Milliseconds()
	}
	return s
}
