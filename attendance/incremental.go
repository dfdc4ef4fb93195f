/*
incremental.go - Real-time incremental updater

PURPOSE:
  Folds one freshly observed scan into the stored record of its
  (subject, date) key without re-reading the scan history. It is a one-step
  approximation of the pairing state machine; periodic batch runs correct
  anything it gets wrong.

TRANSITIONS:
  no record              -> arrival (lateness vs arrival threshold)
  arrival, no departure  -> departure, status Departed
                            (refused at/after the threshold when the
                            schedule is strict)
  arrival and departure  -> refused, day already closed

CONCURRENCY:
  Calls for the same key are serialized; different keys run in parallel.

INBOX:
  A successfully applied scan is archived and removed from the inbox.
  Refused or failed scans stay in the inbox for the next batch run.
  A scan whose id is already archived is never folded in again; the
  stored record comes back with ErrAlreadyApplied.
*/
package attendance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Updater applies single scans to stored records.
type Updater struct {
	Repo     *Repository
	Schedule Schedule
	Logger   *slog.Logger

	locks *keyLocker
}

// NewUpdater creates an incremental updater over repo.
func NewUpdater(repo *Repository, schedule Schedule, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		Repo:     repo,
		Schedule: schedule,
		Logger:   logger,
		locks:    newKeyLocker(),
	}
}

// Apply folds scan into the record of its key and returns the stored result.
func (u *Updater) Apply(ctx context.Context, scan ScanEvent) (Record, error) {
	if err := scan.Validate(); err != nil {
		return Record{}, err
	}
	k := RecordKey{SubjectID: scan.SubjectID, Date: u.Schedule.DateKey(scan.Timestamp)}

	unlock := u.locks.Lock(k)
	defer unlock()

	existing, found, err := u.Repo.GetRecord(ctx, k)
	if err != nil {
		return Record{}, &KeyError{Key: k, Op: "read record", Err: err}
	}

	if scan.ID != "" {
		archived, err := u.Repo.IsArchived(ctx, scan.ID)
		if err != nil {
			return existing, &KeyError{Key: k, Op: "check archive", Err: err}
		}
		if archived {
			return existing, fmt.Errorf("%w: %s", ErrAlreadyApplied, scan.ID)
		}
	}

	next, err := u.transition(k, existing, found, scan)
	if err != nil {
		return existing, err
	}

	if err := u.Repo.PutRecord(ctx, next); err != nil {
		return existing, &KeyError{Key: k, Op: "write record", Err: err}
	}
	if scan.ID != "" {
		if err := u.Repo.ArchiveScan(ctx, scan); err != nil {
			return next, &KeyError{Key: k, Op: "archive scan", Err: err}
		}
	}
	return next, nil
}

func (u *Updater) transition(k RecordKey, existing Record, found bool, scan ScanEvent) (Record, error) {
	ts := scan.Timestamp

	if !found || existing.ArrivalAt == nil {
		return Record{
			SubjectID:      k.SubjectID,
			Date:           k.Date,
			ArrivalAt:      &ts,
			DisplayName:    u.displayName(k, existing, scan),
			Status:         StatusPresent,
			IsLate:         ts.After(u.Schedule.ArrivalOn(k.Date)),
			DeductionHours: decimal.Zero,
			WorkedHours:    decimal.Zero,
		}, nil
	}

	if existing.DepartureAt != nil {
		return Record{}, &PolicyViolationError{Key: k, Reason: "day already closed, cannot depart twice"}
	}

	threshold := u.Schedule.DepartureOn(k.Date)
	if u.Schedule.StrictDeparture && !ts.Before(threshold) {
		return Record{}, &PolicyViolationError{Key: k, Reason: "cannot return after departure threshold " + u.Schedule.Departure.String()}
	}

	next := existing
	next.SubjectID, next.Date = k.SubjectID, k.Date
	next.DepartureAt = &ts
	next.Status = StatusDeparted
	next.WorkedHours = nonNegative(HoursBetween(*existing.ArrivalAt, ts))
	next.DeductionHours = decimal.Zero
	if ts.Before(threshold) {
		next.DeductionHours = nonNegative(HoursBetween(ts, threshold))
	}
	next.DisplayName = u.displayName(k, existing, scan)
	return next, nil
}

func (u *Updater) displayName(k RecordKey, existing Record, scan ScanEvent) string {
	switch {
	case scan.DisplayName != "":
		return scan.DisplayName
	case existing.DisplayName != "":
		return existing.DisplayName
	default:
		return PlaceholderName(k.SubjectID)
	}
}
