package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Summary is an attendance report for one subject over an inclusive date
// range. Days without a record count as absent.
type Summary struct {
	SubjectID         SubjectID       `json:"subjectId"`
	From              Date            `json:"from"`
	To                Date            `json:"to"`
	TotalDays         int             `json:"totalDays"`
	PresentDays       int             `json:"presentDays"`
	AttendancePercent decimal.Decimal `json:"attendancePercent"`
	AbsencePercent    decimal.Decimal `json:"absencePercent"`
	TotalHours        decimal.Decimal `json:"totalHours"`
	LateArrivals      int             `json:"lateArrivals"`
	LateHours         decimal.Decimal `json:"lateHours"`
	LateHoursPercent  decimal.Decimal `json:"lateHoursPercent"`
}

// Reporter builds attendance summaries from stored records.
type Reporter struct {
	Repo     *Repository
	Schedule Schedule
}

func NewReporter(repo *Repository, schedule Schedule) *Reporter {
	return &Reporter{Repo: repo, Schedule: schedule}
}

var hundred = decimal.NewFromInt(100)

// Summary reports on subject between from and to, both inclusive.
func (r *Reporter) Summary(ctx context.Context, subject SubjectID, from, to Date) (Summary, error) {
	if _, err := ParseDate(from.String()); err != nil {
		return Summary{}, err
	}
	if _, err := ParseDate(to.String()); err != nil {
		return Summary{}, err
	}
	if to < from {
		return Summary{}, fmt.Errorf("%w: range end %s before start %s", ErrMalformedInput, to, from)
	}

	records, err := r.Repo.ListRecords(ctx)
	if err != nil {
		return Summary{}, err
	}
	var inRange []Record
	for _, rec := range records {
		if rec.SubjectID == subject && rec.Date >= from && rec.Date <= to {
			inRange = append(inRange, rec)
		}
	}
	return Summarize(r.Schedule, subject, from, to, inRange), nil
}

// Summarize computes the summary of records, which must all belong to
// subject and fall within [from, to].
func Summarize(s Schedule, subject SubjectID, from, to Date, records []Record) Summary {
	sum := Summary{
		SubjectID:  subject,
		From:       from,
		To:         to,
		TotalDays:  daysInclusive(from, to),
		TotalHours: decimal.Zero,
		LateHours:  decimal.Zero,
	}

	lateHours := decimal.Zero
	for _, rec := range records {
		if rec.IsPresent() {
			sum.PresentDays++
		}
		sum.TotalHours = sum.TotalHours.Add(rec.WorkedHours)
		if rec.IsLate && rec.ArrivalAt != nil {
			sum.LateArrivals++
			lateHours = lateHours.Add(nonNegative(HoursBetween(s.ArrivalOn(rec.Date), *rec.ArrivalAt)))
		}
	}
	sum.TotalHours = sum.TotalHours.Round(2)
	sum.LateHours = lateHours.Round(2)

	sum.AttendancePercent = decimal.Zero
	if sum.TotalDays > 0 {
		sum.AttendancePercent = decimal.NewFromInt(int64(sum.PresentDays)).
			Div(decimal.NewFromInt(int64(sum.TotalDays))).Mul(hundred).Round(1)
	}
	sum.AbsencePercent = hundred.Sub(sum.AttendancePercent)

	sum.LateHoursPercent = decimal.Zero
	if sum.TotalHours.IsPositive() {
		sum.LateHoursPercent = sum.LateHours.Div(sum.TotalHours).Mul(hundred).Round(1)
	}
	return sum
}

func daysInclusive(from, to Date) int {
	span := to.Time(time.UTC).Sub(from.Time(time.UTC))
	if span < 0 {
		return 0
	}
	return int(span/(24*time.Hour)) + 1
}
