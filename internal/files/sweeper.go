package files

import (
	"context"
	"time"

	"filesafe-backend/internal/shared/metrics"
	"filesafe-backend/internal/shared/telemetry"
)

// Sweeper periodically fails records stuck in a transient status. It is the
// sole backstop that moves an abandoned upload, or a scan callback that
// never arrives, into a terminal state.
type Sweeper struct {
	Repo     Repo
	Interval time.Duration
	Grace    time.Duration
	Now      func() time.Time

	cancel context.CancelFunc
}

// NewSweeper constructs a Sweeper. Records older than interval+grace in
// Uploading or Scanning are transitioned to Failed on each cycle.
func NewSweeper(repo Repo, interval, grace time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if grace < 0 {
		grace = 0
	}
	return &Sweeper{
		Repo:     repo,
		Interval: interval,
		Grace:    grace,
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Start launches the sweep loop on its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.run(loopCtx)

	telemetry.Info("sweeper.started", map[string]any{
		"interval": s.Interval.String(),
		"grace":    s.Grace.String(),
	})
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed cycle never halts the schedule; it is retried on
			// the next tick.
			if _, err := s.RunOnce(ctx); err != nil {
				telemetry.Error("sweep.failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// RunOnce executes a single sweep cycle and returns the number of records
// transitioned to Failed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	metrics.IncSweepRun()
	cutoff := s.now().Add(-s.Interval).Add(-s.Grace)

	total := 0
	for _, status := range []Status{StatusUploading, StatusScanning} {
		stuck, err := s.Repo.ListStatusOlderThan(ctx, status, cutoff)
		if err != nil {
			return total, err
		}
		for _, rec := range stuck {
			failed := rec.WithStatus(StatusFailed, s.now())
			if err := s.Repo.Update(ctx, failed); err != nil {
				return total, err
			}
			total++
			telemetry.Warn("sweep.record_failed", map[string]any{
				"file_id":           rec.ID,
				"created_at":        rec.CreatedAt.Format(time.RFC3339),
				"status_transition": string(status) + "->" + string(StatusFailed),
			})
		}
	}

	metrics.AddSweepFailedFiles(total)
	if total > 0 {
		telemetry.Info("sweep.completed", map[string]any{"failed_records": total})
	}
	return total, nil
}
