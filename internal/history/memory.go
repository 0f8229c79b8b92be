package history

import (
	"sync"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gdsync"
)

// MemoryHistory is an in-memory implementation of the History interface for
// tests and memory-backed deployments. Safe for concurrent use.
type MemoryHistory struct {
	mu   sync.Mutex
	runs []*gdsync.Run
}

var _ gdsync.History = (*MemoryHistory)(nil)

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

// RecordRun appends a run.
func (m *MemoryHistory) RecordRun(run *gdsync.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *run
	copied.Failures = append([]gdsync.RunFailure(nil), run.Failures...)
	m.runs = append(m.runs, &copied)
	return nil
}

// ListRuns returns up to limit runs, newest first by insertion order.
func (m *MemoryHistory) ListRuns(limit int) ([]*gdsync.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var runs []*gdsync.Run
	for i := len(m.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, m.runs[i])
	}
	return runs, nil
}

// Close is a no-op; it exists so MemoryHistory can stand in for the SQLite
// store everywhere.
func (m *MemoryHistory) Close() error { return nil }
