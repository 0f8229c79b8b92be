package gdsync

import (
	"context"
	"time"
)

// MinInterval is the smallest supported scheduling interval for production
// use. The config layer raises smaller configured values to it; the
// scheduler itself accepts any positive interval so tests can tick fast.
const MinInterval = 2 * time.Hour

// Runner is the unit of work the scheduler drives. *Service implements it.
type Runner interface {
	Run(ctx context.Context) (*RunReport, error)
}

// Scheduler invokes a Runner immediately and then on a fixed interval. Runs
// never overlap: the loop is a single goroutine, and a tick that fires while
// a run is in flight is skipped, not queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   Logger
}

// NewScheduler creates a Scheduler. interval must be positive.
func NewScheduler(runner Runner, interval time.Duration, logger Logger) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start blocks until ctx is cancelled, running once immediately and then on
// every interval tick. Run errors are logged and the loop keeps going; only
// cancellation stops it, and that returns nil.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
			// A run that outlasted the interval leaves one stale tick
			// queued in the channel. Drain it so the skipped tick does not
			// trigger an immediate back-to-back run.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-run; the select exits on the next pass.
			return
		}
		s.logger.Error("run failed", "error", err)
		return
	}
	succeeded, failed, skipped := report.Counts()
	s.logger.Info("scheduled run finished", "succeeded", succeeded, "failed", failed, "skipped", skipped)
}
