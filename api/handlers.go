/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Scans:
    POST   /api/scans                     Write a scan to the inbox
    POST   /api/scans/apply               Write and apply a scan synchronously
    GET    /api/scans/unregistered        Inbox scans without an account

  Records:
    GET    /api/records                   Records, optionally of one date
    GET    /api/records/{subjectId}/{date} One record

  Employees:
    GET    /api/employees                 List accounts
    GET    /api/employees/{id}            One account
    GET    /api/employees/{id}/summary    Attendance summary over a range

  Runs:
    POST   /api/reconcile                 Batch reconciliation
    POST   /api/payroll                   Payroll aggregation
    POST   /api/directory/sync            Refresh account names
    GET    /api/reconciliation/runs       Run history

ARCHITECTURE:
  Handler struct holds the engine components. The same Updater instance
  serves the HTTP apply endpoint and the scan watcher, so per-key
  serialization covers both.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input
  - 404: Record or account not found
  - 409: Update refused by the pairing rules
  - 503: Store failure
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/attendance-engine/attendance"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo       *attendance.Repository
	Schedule   attendance.Schedule
	Reconciler *attendance.Reconciler
	Updater    *attendance.Updater
	Aggregator *attendance.Aggregator
	Directory  *attendance.Directory
	Reporter   *attendance.Reporter
	Logger     *slog.Logger

	// Scheduler is reported on /healthz when set.
	Scheduler *ReconciliationScheduler

	newID func() string
}

// NewHandler wires every engine component over repo.
func NewHandler(repo *attendance.Repository, schedule attendance.Schedule, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Repo:       repo,
		Schedule:   schedule,
		Reconciler: attendance.NewReconciler(repo, schedule, logger),
		Updater:    attendance.NewUpdater(repo, schedule, logger),
		Aggregator: attendance.NewAggregator(repo, logger),
		Directory:  attendance.NewDirectory(repo, schedule, logger),
		Reporter:   attendance.NewReporter(repo, schedule),
		Logger:     logger,
		newID:      uuid.NewString,
	}
}

// Cycle returns the full correction cycle over the handler's components.
func (h *Handler) Cycle() *attendance.Cycle {
	return &attendance.Cycle{
		Reconciler: h.Reconciler,
		Directory:  h.Directory,
		Aggregator: h.Aggregator,
	}
}

// =============================================================================
// SCAN HANDLERS
// =============================================================================

// SubmitScan writes a scan into the inbox.
// POST /api/scans
func (h *Handler) SubmitScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.decodeScan(w, r)
	if !ok {
		return
	}
	if err := h.Repo.PutScan(r.Context(), scan); err != nil {
		writeDomainError(w, "Failed to record scan", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitScanResponse{ID: scan.ID})
}

// ApplyScan writes a scan into the inbox and applies it immediately.
// POST /api/scans/apply
func (h *Handler) ApplyScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := h.decodeScan(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.Repo.PutScan(ctx, scan); err != nil {
		writeDomainError(w, "Failed to record scan", err)
		return
	}
	// The watcher may have applied it already through the inbox write.
	rec, err := h.Updater.Apply(ctx, scan)
	if err != nil && !attendance.IsAlreadyApplied(err) {
		h.Logger.WarnContext(ctx, "scan apply refused",
			"scan", scan.ID, "subject", scan.SubjectID, "error", err)
		writeDomainError(w, "Scan not applied", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec, h.Schedule.Zone()))
}

func (h *Handler) decodeScan(w http.ResponseWriter, r *http.Request) (attendance.ScanEvent, bool) {
	var scan attendance.ScanEvent
	if err := json.NewDecoder(r.Body).Decode(&scan); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return scan, false
	}
	scan.ID = h.newID()
	if err := scan.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scan", err)
		return scan, false
	}
	return scan, true
}

// ListUnregistered returns inbox scans of subjects without an account.
// GET /api/scans/unregistered?date=YYYY-MM-DD
func (h *Handler) ListUnregistered(w http.ResponseWriter, r *http.Request) {
	date, ok := optionalDate(w, r, "date")
	if !ok {
		return
	}
	scans, err := h.Directory.Unregistered(r.Context(), date)
	if err != nil {
		writeDomainError(w, "Failed to list unregistered scans", err)
		return
	}
	dtos := make([]ScanDTO, len(scans))
	for i, s := range scans {
		dtos[i] = toScanDTO(s, h.Schedule.Zone())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns stored records, optionally of one date.
// GET /api/records?date=YYYY-MM-DD
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	date, ok := optionalDate(w, r, "date")
	if !ok {
		return
	}
	records, err := h.Repo.ListRecords(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list records", err)
		return
	}
	dtos := make([]RecordDTO, 0, len(records))
	for _, rec := range records {
		if date != nil && rec.Date != *date {
			continue
		}
		dtos = append(dtos, toRecordDTO(rec, h.Schedule.Zone()))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecord returns one record.
// GET /api/records/{subjectId}/{date}
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	date, err := attendance.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	k := attendance.RecordKey{SubjectID: attendance.SubjectID(chi.URLParam(r, "subjectId")), Date: date}

	rec, found, err := h.Repo.GetRecord(r.Context(), k)
	if err != nil {
		writeDomainError(w, "Failed to get record", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Record not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(rec, h.Schedule.Zone()))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all accounts.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Repo.ListAccounts(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toEmployeeDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single account.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := attendance.SubjectID(chi.URLParam(r, "id"))

	acct, found, err := h.Repo.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(acct))
}

// GetSummary returns the attendance summary of one employee.
// GET /api/employees/{id}/summary?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := attendance.SubjectID(chi.URLParam(r, "id"))
	from, err := attendance.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := attendance.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}

	summary, err := h.Reporter.Summary(r.Context(), id, from, to)
	if err != nil {
		writeDomainError(w, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// TriggerReconcile runs batch reconciliation now.
// POST /api/reconcile
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reconciler.Run(r.Context())
	if err != nil {
		writeDomainError(w, "Reconciliation failed", err)
		return
	}
	failed := make([]string, 0, len(report.Failures))
	for _, k := range report.FailedKeys() {
		failed = append(failed, k.String())
	}
	writeJSON(w, http.StatusOK, BatchReportDTO{
		RunID:      report.RunID,
		Partitions: report.Partitions,
		Written:    report.Written,
		Malformed:  report.Malformed,
		Failed:     failed,
	})
}

// TriggerPayroll runs payroll aggregation now.
// POST /api/payroll
func (h *Handler) TriggerPayroll(w http.ResponseWriter, r *http.Request) {
	report, err := h.Aggregator.Run(r.Context())
	if err != nil {
		writeDomainError(w, "Payroll failed", err)
		return
	}
	dto := PayrollReportDTO{
		RunID:    report.RunID,
		Accounts: make([]EmployeeDTO, len(report.Accounts)),
		Skipped:  report.Skipped,
		Failed:   make([]string, 0, len(report.Failures)),
	}
	for i, a := range report.Accounts {
		dto.Accounts[i] = toEmployeeDTO(a)
	}
	for _, f := range report.Failures {
		dto.Failed = append(dto.Failed, string(f.SubjectID))
	}
	writeJSON(w, http.StatusOK, dto)
}

// SyncDirectory refreshes account names from the latest records.
// POST /api/directory/sync
func (h *Handler) SyncDirectory(w http.ResponseWriter, r *http.Request) {
	n, err := h.Directory.SyncNames(r.Context())
	if err != nil {
		writeDomainError(w, "Directory sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// ListReconciliationRuns returns reconciliation run history.
// GET /api/reconciliation/runs?kind=batch|payroll
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	kind := attendance.RunKind(r.URL.Query().Get("kind"))

	runs, err := h.Repo.ListRuns(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get reconciliation runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		if kind != "" && run.Kind != kind {
			continue
		}
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// Health reports liveness and, when wired, the scheduler state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.Scheduler != nil {
		status := h.Scheduler.Status()
		resp.Scheduler = &status
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func optionalDate(w http.ResponseWriter, r *http.Request, param string) (*attendance.Date, bool) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return nil, true
	}
	d, err := attendance.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s (use YYYY-MM-DD)", param), err)
		return nil, false
	}
	return &d, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	writeJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	var pv *attendance.PolicyViolationError
	switch {
	case errors.As(err, &pv):
		return http.StatusConflict, "policy_violation"
	case attendance.IsMalformed(err):
		return http.StatusBadRequest, "malformed_input"
	case attendance.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case attendance.IsStoreFailure(err):
		return http.StatusServiceUnavailable, "store_failure"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
