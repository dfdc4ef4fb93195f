/*
Package attendance provides the attendance reconciliation and payroll engine.

PURPOSE:
  Turns raw badge scans into one attendance record per employee per day and
  rolls those records up into payroll totals. The same pairing rules back
  both the batch recomputation and the real-time incremental updater.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScanEvent: One badge read (subject, instant, optional name)
  - Record: The reconciled outcome of one (subject, date) key
  - Account: An employee account carrying payroll totals
  - Date / RecordKey: Calendar date and the (subject, date) record key

DESIGN PRINCIPLES:
  1. Full-value writes: every record write replaces the whole value
  2. Precision: hours and money use decimal.Decimal, two places
  3. Explicit schedule: thresholds travel as a Schedule value, never globals
  4. Preservation: account role and hourly rate survive every engine write

SEE ALSO:
  - schedule.go: Time utilities and thresholds
  - pairing.go: The canonical scan pairing state machine
  - batch.go / incremental.go: The two reconciliation paths
  - payroll.go: Totals and salary
*/
package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SubjectID string

// Date is a calendar date in YYYY-MM-DD form, always computed in the
// schedule's zone.
type Date string

const dateLayout = "2006-01-02"

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: invalid date %q", ErrMalformedInput, s)
	}
	return Date(s), nil
}

func (d Date) String() string { return string(d) }

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return Date(d.Time(time.UTC).AddDate(0, 0, n).Format(dateLayout))
}

// RecordKey identifies one attendance record.
type RecordKey struct {
	SubjectID SubjectID
	Date      Date
}

func (k RecordKey) String() string { return string(k.SubjectID) + "_" + string(k.Date) }

// ParseRecordKey splits "{subjectId}_{date}" on the last underscore so subject
// ids may themselves contain underscores.
func ParseRecordKey(s string) (RecordKey, error) {
	i := strings.LastIndex(s, "_")
	if i <= 0 || i == len(s)-1 {
		return RecordKey{}, fmt.Errorf("%w: invalid record key %q", ErrMalformedInput, s)
	}
	date, err := ParseDate(s[i+1:])
	if err != nil {
		return RecordKey{}, err
	}
	return RecordKey{SubjectID: SubjectID(s[:i]), Date: date}, nil
}

// =============================================================================
// SCAN EVENT
// =============================================================================

// ScanEvent is one badge read. ID is the inbox key and is not part of the
// stored value.
type ScanEvent struct {
	ID          string    `json:"-"`
	SubjectID   SubjectID `json:"subjectId"`
	Timestamp   time.Time `json:"timestamp"`
	DisplayName string    `json:"displayName,omitempty"`
}

// Validate reports MalformedInput for a scan without subject or timestamp.
func (s ScanEvent) Validate() error {
	if strings.TrimSpace(string(s.SubjectID)) == "" {
		return fmt.Errorf("%w: scan %q has no subject id", ErrMalformedInput, s.ID)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: scan %q has no timestamp", ErrMalformedInput, s.ID)
	}
	return nil
}

type scanWire struct {
	SubjectID   SubjectID       `json:"subjectId"`
	Timestamp   json.RawMessage `json:"timestamp"`
	DisplayName string          `json:"displayName,omitempty"`
}

// UnmarshalJSON accepts the timestamp as an RFC 3339 string or as epoch
// milliseconds.
func (s *ScanEvent) UnmarshalJSON(data []byte) error {
	var w scanWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	ts, err := parseInstant(w.Timestamp)
	if err != nil {
		return err
	}
	s.SubjectID = w.SubjectID
	s.Timestamp = ts
	s.DisplayName = w.DisplayName
	return nil
}

func parseInstant(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrMalformedInput, s)
		}
		return t, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %s", ErrMalformedInput, raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// =============================================================================
// ATTENDANCE RECORD
// =============================================================================

type Status string

const (
	StatusPresent  Status = "Present"
	StatusAbsent   Status = "Absent"
	StatusDeparted Status = "Departed"
)

// Record is the reconciled attendance of one subject on one date.
type Record struct {
	SubjectID      SubjectID       `json:"subjectId"`
	Date           Date            `json:"date"`
	ArrivalAt      *time.Time      `json:"arrivalAt"`
	DepartureAt    *time.Time      `json:"departureAt"`
	DisplayName    string          `json:"displayName"`
	Status         Status          `json:"status"`
	IsLate         bool            `json:"isLate"`
	DeductionHours decimal.Decimal `json:"deductionHours"`
	WorkedHours    decimal.Decimal `json:"workedHours"`
}

func (r Record) Key() RecordKey { return RecordKey{SubjectID: r.SubjectID, Date: r.Date} }

// IsPresent reports whether the subject showed up that day.
func (r Record) IsPresent() bool {
	return r.Status == StatusPresent || r.Status == StatusDeparted
}

// PlaceholderName is used when none of a day's scans carried a name.
func PlaceholderName(id SubjectID) string { return fmt.Sprintf("Unknown (%s)", id) }

// IsPlaceholderName reports whether name is the placeholder for id.
func IsPlaceholderName(id SubjectID, name string) bool { return name == PlaceholderName(id) }

// =============================================================================
// EMPLOYEE ACCOUNT
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// DefaultHourlyRate applies when an account's rate is unset or not a number.
var DefaultHourlyRate = decimal.NewFromInt(10)

// Rate is an hourly rate kept exactly as stored, so a malformed value written
// by administration survives an engine round trip untouched.
type Rate struct {
	raw json.RawMessage
}

// NewRate builds a numeric rate.
func NewRate(d decimal.Decimal) Rate {
	return Rate{raw: json.RawMessage(d.String())}
}

// Decimal returns the numeric value and whether the stored value was numeric.
func (r Rate) Decimal() (decimal.Decimal, bool) {
	raw := bytes.TrimSpace(r.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// OrDefault returns the numeric rate or DefaultHourlyRate.
func (r Rate) OrDefault() decimal.Decimal {
	if d, ok := r.Decimal(); ok {
		return d
	}
	return DefaultHourlyRate
}

func (r Rate) IsSet() bool {
	raw := bytes.TrimSpace(r.raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.IsSet() {
		return []byte("null"), nil
	}
	return r.raw, nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	r.raw = append(json.RawMessage(nil), data...)
	return nil
}

// Account is an employee account. TotalHours and Salary belong to the payroll
// aggregator; Role and HourlyRate belong to administration.
type Account struct {
	SubjectID   SubjectID       `json:"subjectId"`
	DisplayName string          `json:"displayName"`
	Role        Role            `json:"role"`
	HourlyRate  Rate            `json:"hourlyRate"`
	TotalHours  decimal.Decimal `json:"totalHours"`
	Salary      decimal.Decimal `json:"salary"`

	// extra holds stored fields the engine does not model; they are written
	// back unchanged.
	extra map[string]json.RawMessage
}

type accountFields Account

var accountKeys = map[string]bool{
	"subjectId": true, "displayName": true, "role": true,
	"hourlyRate": true, "totalHours": true, "salary": true,
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var fields accountFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if accountKeys[k] {
			delete(all, k)
		}
	}
	*a = Account(fields)
	if len(all) > 0 {
		a.extra = all
	}
	return nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(accountFields(a))
	if err != nil || len(a.extra) == 0 {
		return raw, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	for k, v := range a.extra {
		all[k] = v
	}
	return json.Marshal(all)
}
