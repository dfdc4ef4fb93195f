/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the stored documents from the external API contract, allowing:
  - Display forms ("2025-05-01 9:00 AM") next to machine timestamps
  - Fixed two-place rendering of hours and money
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Scans:     ScanDTO, SubmitScanResponse
  Records:   RecordDTO
  Employees: EmployeeDTO, SummaryDTO
  Runs:      BatchReportDTO, PayrollReportDTO, RunDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// SCANS
// =============================================================================

// ScanDTO represents a raw scan in API responses.
type ScanDTO struct {
	ID          string `json:"id"`
	SubjectID   string `json:"subjectId"`
	Timestamp   string `json:"timestamp"`
	Display     string `json:"display"`
	DisplayName string `json:"displayName,omitempty"`
}

// SubmitScanResponse acknowledges a scan written to the inbox.
type SubmitScanResponse struct {
	ID string `json:"id"`
}

// =============================================================================
// RECORDS
// =============================================================================

// RecordDTO represents an attendance record in API responses.
type RecordDTO struct {
	SubjectID        string  `json:"subjectId"`
	Date             string  `json:"date"`
	DisplayName      string  `json:"displayName"`
	Status           string  `json:"status"`
	ArrivalAt        *string `json:"arrivalAt"`
	ArrivalDisplay   string  `json:"arrivalDisplay,omitempty"`
	DepartureAt      *string `json:"departureAt"`
	DepartureDisplay string  `json:"departureDisplay,omitempty"`
	IsLate           bool    `json:"isLate"`
	DeductionHours   string  `json:"deductionHours"`
	WorkedHours      string  `json:"workedHours"`
}

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee account in API responses. The hourly
// rate is echoed exactly as stored.
type EmployeeDTO struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Role        string          `json:"role"`
	HourlyRate  attendance.Rate `json:"hourlyRate"`
	TotalHours  string          `json:"totalHours"`
	Salary      string          `json:"salary"`
}

// SummaryDTO is the attendance summary of one employee.
type SummaryDTO struct {
	SubjectID         string `json:"subjectId"`
	From              string `json:"from"`
	To                string `json:"to"`
	TotalDays         int    `json:"totalDays"`
	PresentDays       int    `json:"presentDays"`
	AttendancePercent string `json:"attendancePercent"`
	AbsencePercent    string `json:"absencePercent"`
	TotalHours        string `json:"totalHours"`
	LateArrivals      int    `json:"lateArrivals"`
	LateHours         string `json:"lateHours"`
	LateHoursPercent  string `json:"lateHoursPercent"`
}

// =============================================================================
// RUNS
// =============================================================================

// BatchReportDTO is the response of a manual batch run.
type BatchReportDTO struct {
	RunID      string   `json:"runId"`
	Partitions int      `json:"partitions"`
	Written    int      `json:"written"`
	Malformed  int      `json:"malformed"`
	Failed     []string `json:"failed"`
}

// PayrollReportDTO is the response of a manual payroll run.
type PayrollReportDTO struct {
	RunID    string        `json:"runId"`
	Accounts []EmployeeDTO `json:"accounts"`
	Skipped  int           `json:"skipped"`
	Failed   []string      `json:"failed"`
}

// RunDTO is one stored reconciliation run.
type RunDTO struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	StartedAt   string   `json:"startedAt"`
	CompletedAt string   `json:"completedAt"`
	Partitions  int      `json:"partitions"`
	Written     int      `json:"written"`
	Failed      int      `json:"failed"`
	Malformed   int      `json:"malformed"`
	Errors      []string `json:"errors,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    string              `json:"status"`
	Scheduler *SchedulerStatusDTO `json:"scheduler,omitempty"`
}

type SchedulerStatusDTO struct {
	Enabled  bool       `json:"enabled"`
	Interval string     `json:"interval"`
	LastRun  *time.Time `json:"lastRun,omitempty"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toScanDTO(s attendance.ScanEvent, loc *time.Location) ScanDTO {
	return ScanDTO{
		ID:          s.ID,
		SubjectID:   string(s.SubjectID),
		Timestamp:   s.Timestamp.UTC().Format(time.RFC3339),
		Display:     attendance.FormatInstant(s.Timestamp, loc),
		DisplayName: s.DisplayName,
	}
}

func toRecordDTO(r attendance.Record, loc *time.Location) RecordDTO {
	dto := RecordDTO{
		SubjectID:      string(r.SubjectID),
		Date:           r.Date.String(),
		DisplayName:    r.DisplayName,
		Status:         string(r.Status),
		IsLate:         r.IsLate,
		DeductionHours: r.DeductionHours.StringFixed(2),
		WorkedHours:    r.WorkedHours.StringFixed(2),
	}
	if r.ArrivalAt != nil {
		s := r.ArrivalAt.UTC().Format(time.RFC3339)
		dto.ArrivalAt = &s
		dto.ArrivalDisplay = attendance.FormatInstant(*r.ArrivalAt, loc)
	}
	if r.DepartureAt != nil {
		s := r.DepartureAt.UTC().Format(time.RFC3339)
		dto.DepartureAt = &s
		dto.DepartureDisplay = attendance.FormatInstant(*r.DepartureAt, loc)
	}
	return dto
}

func toEmployeeDTO(a attendance.Account) EmployeeDTO {
	return EmployeeDTO{
		ID:          string(a.SubjectID),
		DisplayName: a.DisplayName,
		Role:        string(a.Role),
		HourlyRate:  a.HourlyRate,
		TotalHours:  a.TotalHours.StringFixed(2),
		Salary:      a.Salary.StringFixed(2),
	}
}

func toSummaryDTO(s attendance.Summary) SummaryDTO {
	return SummaryDTO{
		SubjectID:         string(s.SubjectID),
		From:              s.From.String(),
		To:                s.To.String(),
		TotalDays:         s.TotalDays,
		PresentDays:       s.PresentDays,
		AttendancePercent: s.AttendancePercent.StringFixed(1),
		AbsencePercent:    s.AbsencePercent.StringFixed(1),
		TotalHours:        s.TotalHours.StringFixed(2),
		LateArrivals:      s.LateArrivals,
		LateHours:         s.LateHours.StringFixed(2),
		LateHoursPercent:  s.LateHoursPercent.StringFixed(1),
	}
}

func toRunDTO(r attendance.Run) RunDTO {
	return RunDTO{
		ID:          r.ID,
		Kind:        string(r.Kind),
		StartedAt:   r.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt: r.CompletedAt.UTC().Format(time.RFC3339),
		Partitions:  r.Partitions,
		Written:     r.Written,
		Failed:      r.Failed,
		Malformed:   r.Malformed,
		Errors:      r.Errors,
	}
}
