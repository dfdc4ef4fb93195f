package attendance

import (
	"context"
	"fmt"
)

// Cycle is one full correction pass: recompute records from the scan
// history, refresh account names, then recompute payroll.
type Cycle struct {
	Reconciler *Reconciler
	Directory  *Directory
	Aggregator *Aggregator
}

// CycleReport collects the outcome of each step.
type CycleReport struct {
	Batch   BatchReport   `json:"batch"`
	Synced  int           `json:"synced"`
	Payroll PayrollReport `json:"payroll"`
}

// Run executes the three steps in order. A step that cannot start aborts the
// cycle; per-key failures inside a step do not.
func (c *Cycle) Run(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	var err error

	if report.Batch, err = c.Reconciler.Run(ctx); err != nil {
		return report, fmt.Errorf("batch reconciliation: %w", err)
	}
	if report.Synced, err = c.Directory.SyncNames(ctx); err != nil {
		return report, fmt.Errorf("directory sync: %w", err)
	}
	if report.Payroll, err = c.Aggregator.Run(ctx); err != nil {
		return report, fmt.Errorf("payroll: %w", err)
	}
	return report, nil
}
