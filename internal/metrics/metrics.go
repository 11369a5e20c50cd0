package metrics

import (
	"sync"
	"time"
)

// Metrics collects pipeline counters for the monitoring endpoints.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	EntriesFetched    int64
	SourcesFailed     int64
	CandidatesBuilt   int64
	DuplicatesSkipped int64
	BelowThreshold    int64
	MessagesDelivered int64
	SendFailures      int64
	RunsCompleted     int64

	// Status
	LastRunTime     time.Time
	LastRunDuration time.Duration
	LastErrorTime   time.Time
	LastError       string
	IsHealthy       bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddEntriesFetched(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EntriesFetched += n
}

func (m *Metrics) IncSourceFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourcesFailed++
}

func (m *Metrics) AddCandidatesBuilt(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CandidatesBuilt += n
}

func (m *Metrics) IncDuplicateSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesSkipped++
}

func (m *Metrics) IncBelowThreshold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BelowThreshold++
}

func (m *Metrics) IncMessageDelivered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesDelivered++
}

func (m *Metrics) IncSendFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendFailures++
}

func (m *Metrics) SetLastRun(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunsCompleted++
	m.LastRunTime = time.Now()
	m.LastRunDuration = d
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"entries_fetched":      m.EntriesFetched,
		"sources_failed":       m.SourcesFailed,
		"candidates_built":     m.CandidatesBuilt,
		"duplicates_skipped":   m.DuplicatesSkipped,
		"below_threshold":      m.BelowThreshold,
		"messages_delivered":   m.MessagesDelivered,
		"send_failures":        m.SendFailures,
		"runs_completed":       m.RunsCompleted,
		"last_run_time":        m.LastRunTime.Format(time.RFC3339),
		"last_run_duration_ms": m.LastRunDuration.Milliseconds(),
		"last_error_time":      m.LastErrorTime.Format(time.RFC3339),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}
