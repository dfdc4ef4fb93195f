package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// Directory keeps employee accounts in step with what the scanners report.
type Directory struct {
	Repo     *Repository
	Schedule Schedule
	Logger   *slog.Logger
}

func NewDirectory(repo *Repository, schedule Schedule, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{Repo: repo, Schedule: schedule, Logger: logger}
}

// LatestNames returns, per subject, the display name of its most recent
// record. Placeholder names never win.
func LatestNames(records []Record) map[SubjectID]string {
	latest := make(map[SubjectID]Date)
	names := make(map[SubjectID]string)
	for _, rec := range records {
		if rec.DisplayName == "" || IsPlaceholderName(rec.SubjectID, rec.DisplayName) {
			continue
		}
		if d, ok := latest[rec.SubjectID]; ok && d > rec.Date {
			continue
		}
		latest[rec.SubjectID] = rec.Date
		names[rec.SubjectID] = rec.DisplayName
	}
	return names
}

// SyncNames writes each subject's latest name into its account, creating
// missing accounts as employees with no hourly rate, so payroll applies
// DefaultHourlyRate until one is set. It returns the number of accounts
// written.
func (d *Directory) SyncNames(ctx context.Context) (int, error) {
	records, err := d.Repo.ListRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	names := LatestNames(records)

	subjects := make([]SubjectID, 0, len(names))
	for id := range names {
		subjects = append(subjects, id)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })

	written := 0
	for _, id := range subjects {
		acct, found, err := d.Repo.GetAccount(ctx, id)
		if err != nil {
			d.Logger.ErrorContext(ctx, "account read failed", "subject", id, "error", err)
			continue
		}
		if !found {
			acct = Account{
				SubjectID:  id,
				Role:       RoleEmployee,
				TotalHours: decimal.Zero,
				Salary:     decimal.Zero,
			}
		} else if acct.DisplayName == names[id] {
			continue
		}
		acct.DisplayName = names[id]
		if err := d.Repo.PutAccount(ctx, acct); err != nil {
			d.Logger.ErrorContext(ctx, "account write failed", "subject", id, "error", err)
			continue
		}
		written++
	}

	d.Logger.InfoContext(ctx, "directory names synced", "accounts", written)
	return written, nil
}

// Unregistered lists inbox scans whose subject has no account, restricted to
// date when it is non-nil, in timestamp order.
func (d *Directory) Unregistered(ctx context.Context, date *Date) ([]ScanEvent, error) {
	accounts, err := d.Repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	known := make(map[SubjectID]bool, len(accounts))
	for _, acct := range accounts {
		known[acct.SubjectID] = true
	}

	inbox, err := d.Repo.ListInbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	var out []ScanEvent
	for _, scan := range inbox.Scans {
		if scan.Validate() != nil || known[scan.SubjectID] {
			continue
		}
		if date != nil && d.Schedule.DateKey(scan.Timestamp) != *date {
			continue
		}
		out = append(out, scan)
	}
	SortScans(out)
	return out, nil
}
