package gdsync

import (
	"fmt"
	"time"
)

// Run is one recorded pipeline pass.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  int
	Failed     int
	Skipped    int
	Failures   []RunFailure
}

// RunFailure captures one asset that failed during a run, with the stage
// that broke and why.
type RunFailure struct {
	Asset  string
	Stage  Stage
	Reason string
}

// History records completed runs for later inspection. It is strictly
// append-only observability: neither the resolver nor the orchestrator ever
// reads it to decide what to process, so a lost or corrupt history never
// affects correctness.
type History interface {
	// RecordRun appends a completed run.
	RecordRun(run *Run) error

	// ListRuns returns the most recent runs, ordered newest first.
	ListRuns(limit int) ([]*Run, error)
}

// GetHistory returns the most recent runs, ordered newest first.
func (s *Service) GetHistory(limit int) ([]*Run, error) {
	if s.history == nil {
		return nil, nil
	}
	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
