/*
payroll.go - Payroll aggregation

PURPOSE:
  Rolls daily attendance records up into per-employee totals. For every
  account with role employee:

    totalHours = Σ workedHours of the subject's records
    salary     = totalHours × hourlyRate   (rate defaults to 10)

  Both are rounded to two places. Records are matched to an account by exact
  subject id; "1" never picks up the records of "12".

PRESERVATION:
  The account is read, its totals replaced, and the full value written back.
  Role, display name and the raw hourly rate are never touched.
*/
package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregator recomputes payroll totals from stored records.
type Aggregator struct {
	Repo   *Repository
	Logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewAggregator creates a payroll aggregator over repo.
func NewAggregator(repo *Repository, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		Repo:   repo,
		Logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// PayrollReport is the outcome of one payroll run.
type PayrollReport struct {
	RunID    string          `json:"runId"`
	Accounts []Account       `json:"accounts"`
	Skipped  int             `json:"skipped"`
	Failures []*AccountError `json:"-"`
}

// AccountError is a write failure on one employee account.
type AccountError struct {
	SubjectID SubjectID
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("write account %s: %v", e.SubjectID, e.Err)
}

func (e *AccountError) Unwrap() []error { return []error{ErrStoreFailure, e.Err} }

// HoursBySubject sums worked hours per subject id.
func HoursBySubject(records []Record) map[SubjectID]decimal.Decimal {
	totals := make(map[SubjectID]decimal.Decimal)
	for _, rec := range records {
		totals[rec.SubjectID] = totals[rec.SubjectID].Add(rec.WorkedHours)
	}
	return totals
}

// Payroll computes the totals of acct given its summed hours.
func Payroll(acct Account, hours decimal.Decimal) Account {
	acct.TotalHours = hours.Round(2)
	acct.Salary = hours.Mul(acct.HourlyRate.OrDefault()).Round(2)
	return acct
}

// Run recomputes the totals of every employee account.
func (a *Aggregator) Run(ctx context.Context) (PayrollReport, error) {
	started := a.now()
	report := PayrollReport{RunID: a.newID()}

	accounts, err := a.Repo.ListAccounts(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "payroll account listing failed", "run", report.RunID, "error", err)
		return report, fmt.Errorf("list accounts: %w", err)
	}
	records, err := a.Repo.ListRecords(ctx)
	if err != nil {
		a.Logger.ErrorContext(ctx, "payroll record listing failed", "run", report.RunID, "error", err)
		return report, fmt.Errorf("list records: %w", err)
	}
	hours := HoursBySubject(records)

	for _, acct := range accounts {
		if acct.Role != RoleEmployee {
			report.Skipped++
			continue
		}
		if _, ok := acct.HourlyRate.Decimal(); !ok && acct.HourlyRate.IsSet() {
			a.Logger.WarnContext(ctx, "non-numeric hourly rate, using default",
				"subject", acct.SubjectID, "default", DefaultHourlyRate.String())
		}
		updated := Payroll(acct, hours[acct.SubjectID])
		if err := a.Repo.PutAccount(ctx, updated); err != nil {
			a.Logger.ErrorContext(ctx, "account write failed", "subject", acct.SubjectID, "error", err)
			report.Failures = append(report.Failures, &AccountError{SubjectID: acct.SubjectID, Err: err})
			continue
		}
		report.Accounts = append(report.Accounts, updated)
	}

	run := Run{
		ID:          report.RunID,
		Kind:        RunPayroll,
		StartedAt:   started,
		CompletedAt: a.now(),
		Partitions:  len(accounts),
		Written:     len(report.Accounts),
		Failed:      len(report.Failures),
	}
	for _, f := range report.Failures {
		run.Errors = append(run.Errors, f.Error())
	}
	if err := a.Repo.SaveRun(ctx, run); err != nil {
		a.Logger.WarnContext(ctx, "saving payroll run failed", "run", run.ID, "error", err)
	}

	a.Logger.InfoContext(ctx, "payroll completed",
		"run", report.RunID,
		"accounts", len(report.Accounts),
		"skipped", report.Skipped,
		"failed", len(report.Failures),
	)
	return report, nil
}
