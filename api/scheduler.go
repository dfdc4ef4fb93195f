/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically runs the full correction cycle so that whatever the real-time
  path got wrong is repaired from the scan history:

    1. Batch reconciliation (records)
    2. Directory name sync (accounts)
    3. Payroll aggregation (totals)

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Every batch and payroll run is recorded for audit and the runs endpoint

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true, scheduler_enabled)

STATUS:
  LastRun, NextRun and Status feed the /healthz response.

USAGE:
  scheduler := NewReconciliationScheduler(cycle, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerReconcile and TriggerPayroll (manual runs)
  - attendance/cycle.go: The cycle itself
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// ReconciliationScheduler runs the correction cycle on a ticker.
type ReconciliationScheduler struct {
	Cycle         *attendance.Cycle
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu  sync.Mutex
	lastRun time.Time
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(cycle *attendance.Cycle, logger *slog.Logger) *ReconciliationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconciliationScheduler{
		Cycle:         cycle,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Logger:        logger,
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run(ctx)

	rs.Logger.Info("scheduler started", "interval", rs.CheckInterval.String())
}

// Stop stops the scheduler and waits for an in-flight cycle to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.cancel()
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(ctx)
		case <-rs.stop:
			return
		}
	}
}

// RunNow runs one cycle immediately (for testing/admin).
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (attendance.CycleReport, error) {
	rs.Logger.InfoContext(ctx, "reconciliation cycle starting")

	report, err := rs.Cycle.Run(ctx)
	if err != nil {
		rs.Logger.ErrorContext(ctx, "reconciliation cycle failed", "error", err)
		return report, err
	}

	rs.lastMu.Lock()
	rs.lastRun = time.Now()
	rs.lastMu.Unlock()

	rs.Logger.InfoContext(ctx, "reconciliation cycle completed",
		"records_written", report.Batch.Written,
		"records_failed", len(report.Batch.Failures),
		"accounts_synced", report.Synced,
		"accounts_paid", len(report.Payroll.Accounts),
	)
	return report, nil
}

// LastRun returns when the last successful cycle finished.
func (rs *ReconciliationScheduler) LastRun() time.Time {
	rs.lastMu.Lock()
	defer rs.lastMu.Unlock()
	return rs.lastRun
}

// NextRun returns when the next scheduled cycle is due, or the zero time
// when the scheduler is not running.
func (rs *ReconciliationScheduler) NextRun() time.Time {
	rs.mu.Lock()
	running := rs.ticker != nil
	rs.mu.Unlock()
	if !running {
		return time.Time{}
	}
	last := rs.LastRun()
	if last.IsZero() {
		return time.Now()
	}
	return last.Add(rs.CheckInterval)
}

// Status summarizes the scheduler for the health endpoint.
func (rs *ReconciliationScheduler) Status() SchedulerStatusDTO {
	status := SchedulerStatusDTO{
		Enabled:  rs.Enabled,
		Interval: rs.CheckInterval.String(),
	}
	if last := rs.LastRun(); !last.IsZero() {
		status.LastRun = &last
	}
	if next := rs.NextRun(); !next.IsZero() {
		status.NextRun = &next
	}
	return status
}
