/*
batch.go - Batch reconciliation job

PURPOSE:
  Recomputes every attendance record from the raw scan history. The batch
  job is the source of truth: whatever the incremental updater wrote is
  overwritten by the canonical pairing of the full scan set.

FLOW:
  1. Snapshot inbox + archive (deduplicated by scan id)
  2. Skip malformed scans, partition the rest by (subject, date)
  3. Pair each partition and replace its record
  4. Persist a run summary

FAILURE POLICY:
  Only a failed snapshot aborts the run. A record that cannot be written is
  logged, reported and skipped; the remaining partitions still run.

IDEMPOTENCY:
  The output is a pure function of the snapshot. Running twice on the same
  scans yields identical records. The inbox and archive are never modified.
*/
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Reconciler runs the batch reconciliation job.
type Reconciler struct {
	Repo     *Repository
	Schedule Schedule
	Logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewReconciler creates a batch job over repo.
func NewReconciler(repo *Repository, schedule Schedule, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		Repo:     repo,
		Schedule: schedule,
		Logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// BatchReport is the outcome of one batch run.
type BatchReport struct {
	RunID      string      `json:"runId"`
	Partitions int         `json:"partitions"`
	Written    int         `json:"written"`
	Malformed  int         `json:"malformed"`
	Failures   []*KeyError `json:"-"`
}

// FailedKeys lists the keys whose write failed.
func (r BatchReport) FailedKeys() []RecordKey {
	keys := make([]RecordKey, len(r.Failures))
	for i, f := range r.Failures {
		keys[i] = f.Key
	}
	return keys
}

// Snapshot returns the full raw scan history: inbox and archive merged, one
// entry per scan id, plus the number of undecodable values.
func (rc *Reconciler) Snapshot(ctx context.Context) ([]ScanEvent, int, error) {
	inbox, err := rc.Repo.ListInbox(ctx)
	if err != nil {
		return nil, 0, err
	}
	archive, err := rc.Repo.ListArchive(ctx)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool, len(inbox.Scans)+len(archive.Scans))
	scans := make([]ScanEvent, 0, len(inbox.Scans)+len(archive.Scans))
	for _, list := range []ScanList{archive, inbox} {
		for _, scan := range list.Scans {
			if seen[scan.ID] {
				continue
			}
			seen[scan.ID] = true
			scans = append(scans, scan)
		}
	}

	malformed := len(inbox.Malformed) + len(archive.Malformed)
	for path, err := range inbox.Malformed {
		rc.Logger.WarnContext(ctx, "skipping undecodable scan", "path", path, "error", err)
	}
	for path, err := range archive.Malformed {
		rc.Logger.WarnContext(ctx, "skipping undecodable scan", "path", path, "error", err)
	}
	return scans, malformed, nil
}

// Run recomputes every record found in the scan history.
func (rc *Reconciler) Run(ctx context.Context) (BatchReport, error) {
	started := rc.now()
	report := BatchReport{RunID: rc.newID()}

	scans, malformed, err := rc.Snapshot(ctx)
	if err != nil {
		rc.Logger.ErrorContext(ctx, "batch snapshot failed", "run", report.RunID, "error", err)
		return report, fmt.Errorf("snapshot scans: %w", err)
	}
	report.Malformed = malformed

	parts, invalid := Partition(rc.Schedule, scans)
	for _, scan := range invalid {
		rc.Logger.WarnContext(ctx, "skipping malformed scan", "scan", scan.ID, "error", scan.Validate())
	}
	report.Malformed += len(invalid)

	keys := SortedKeys(parts)
	report.Partitions = len(keys)
	for _, k := range keys {
		rec, ok := Pair(rc.Schedule, k.SubjectID, k.Date, parts[k])
		if !ok {
			continue
		}
		if err := rc.Repo.PutRecord(ctx, rec); err != nil {
			kerr := &KeyError{Key: k, Op: "write record", Err: err}
			rc.Logger.ErrorContext(ctx, "record write failed",
				"subject", k.SubjectID, "date", k.Date, "error", err)
			report.Failures = append(report.Failures, kerr)
			continue
		}
		report.Written++
	}

	run := Run{
		ID:          report.RunID,
		Kind:        RunBatch,
		StartedAt:   started,
		CompletedAt: rc.now(),
		Partitions:  report.Partitions,
		Written:     report.Written,
		Failed:      len(report.Failures),
		Malformed:   report.Malformed,
	}
	for _, f := range report.Failures {
		run.Errors = append(run.Errors, f.Error())
	}
	if err := rc.Repo.SaveRun(ctx, run); err != nil {
		rc.Logger.WarnContext(ctx, "saving batch run failed", "run", run.ID, "error", err)
	}

	rc.Logger.InfoContext(ctx, "batch reconciliation completed",
		"run", report.RunID,
		"partitions", report.Partitions,
		"written", report.Written,
		"failed", len(report.Failures),
		"malformed", report.Malformed,
	)
	return report, nil
}
