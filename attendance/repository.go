package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultStoreTimeout bounds every store call made through a Repository.
const DefaultStoreTimeout = 5 * time.Second

// Repository maps engine types onto store paths. Every call is bounded by
// Timeout and failures come back wrapped in ErrStoreFailure.
type Repository struct {
	Store   Store
	Timeout time.Duration
}

// NewRepository wraps store with the default timeout.
func NewRepository(store Store) *Repository {
	return &Repository{Store: store, Timeout: DefaultStoreTimeout}
}

func (r *Repository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Repository) read(ctx context.Context, path string, v any) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	raw, ok, err := r.Store.Read(ctx, path)
	if err != nil {
		return false, storeErr("read "+path, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrMalformedInput, path, err)
	}
	return true, nil
}

func (r *Repository) write(ctx context.Context, path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.Store.Write(ctx, path, raw); err != nil {
		return storeErr("write "+path, err)
	}
	return nil
}

func (r *Repository) list(ctx context.Context, prefix string) (map[string][]byte, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	values, err := r.Store.List(ctx, prefix)
	if err != nil {
		return nil, storeErr("list "+prefix, err)
	}
	return values, nil
}

// =============================================================================
// SCANS
// =============================================================================

// PutScan writes scan into the inbox under its id.
func (r *Repository) PutScan(ctx context.Context, scan ScanEvent) error {
	if scan.ID == "" {
		return fmt.Errorf("%w: scan has no id", ErrMalformedInput)
	}
	return r.write(ctx, ScanPath(scan.ID), scan)
}

// DecodeScan decodes a stored scan value, taking its id from path.
func DecodeScan(path string, raw []byte) (ScanEvent, error) {
	var scan ScanEvent
	if err := json.Unmarshal(raw, &scan); err != nil {
		return ScanEvent{ID: lastSegment(path)}, fmt.Errorf("%w: decode %s: %v", ErrMalformedInput, path, err)
	}
	scan.ID = lastSegment(path)
	return scan, nil
}

// ScanList is the decoded content of a scan prefix.
type ScanList struct {
	Scans     []ScanEvent
	Malformed map[string]error
}

// ListInbox decodes every scan still in the inbox.
func (r *Repository) ListInbox(ctx context.Context) (ScanList, error) {
	return r.listScans(ctx, ScansPrefix)
}

// ListArchive decodes every consumed scan.
func (r *Repository) ListArchive(ctx context.Context) (ScanList, error) {
	return r.listScans(ctx, ArchivePrefix)
}

func (r *Repository) listScans(ctx context.Context, prefix string) (ScanList, error) {
	values, err := r.list(ctx, prefix)
	if err != nil {
		return ScanList{}, err
	}
	out := ScanList{Malformed: make(map[string]error)}
	for _, path := range sortedPaths(values) {
		scan, err := DecodeScan(path, values[path])
		if err != nil {
			out.Malformed[path] = err
			continue
		}
		out.Scans = append(out.Scans, scan)
	}
	return out, nil
}

// IsArchived reports whether a scan with id has already been consumed.
func (r *Repository) IsArchived(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	_, ok, err := r.Store.Read(ctx, ArchivePath(id))
	if err != nil {
		return false, storeErr("read "+ArchivePath(id), err)
	}
	return ok, nil
}

// ArchiveScan copies scan into the archive and then removes it from the
// inbox.
func (r *Repository) ArchiveScan(ctx context.Context, scan ScanEvent) error {
	if err := r.write(ctx, ArchivePath(scan.ID), scan); err != nil {
		return err
	}
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.Store.Delete(ctx, ScanPath(scan.ID)); err != nil {
		return storeErr("delete "+ScanPath(scan.ID), err)
	}
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

// GetRecord returns the record at k; ok is false when none exists.
func (r *Repository) GetRecord(ctx context.Context, k RecordKey) (Record, bool, error) {
	var rec Record
	ok, err := r.read(ctx, RecordPath(k), &rec)
	if err != nil || !ok {
		return Record{}, false, err
	}
	if rec.SubjectID == "" {
		rec.SubjectID, rec.Date = k.SubjectID, k.Date
	}
	return rec, true, nil
}

// PutRecord replaces the record at rec.Key().
func (r *Repository) PutRecord(ctx context.Context, rec Record) error {
	return r.write(ctx, RecordPath(rec.Key()), rec)
}

// ListRecords decodes every stored record. Values under keys that do not
// parse are skipped; the subject and date always come from the key.
func (r *Repository) ListRecords(ctx context.Context) ([]Record, error) {
	values, err := r.list(ctx, RecordsPrefix)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(values))
	for _, path := range sortedPaths(values) {
		k, err := ParseRecordKey(strings.TrimPrefix(path, RecordsPrefix))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(values[path], &rec); err != nil {
			continue
		}
		rec.SubjectID, rec.Date = k.SubjectID, k.Date
		records = append(records, rec)
	}
	return records, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// GetAccount returns the account of id; ok is false when none exists.
func (r *Repository) GetAccount(ctx context.Context, id SubjectID) (Account, bool, error) {
	var acct Account
	ok, err := r.read(ctx, AccountPath(id), &acct)
	if err != nil || !ok {
		return Account{}, false, err
	}
	acct.SubjectID = id
	return acct, true, nil
}

// PutAccount replaces the account at acct.SubjectID.
func (r *Repository) PutAccount(ctx context.Context, acct Account) error {
	if acct.SubjectID == "" {
		return fmt.Errorf("%w: account has no subject id", ErrMalformedInput)
	}
	return r.write(ctx, AccountPath(acct.SubjectID), acct)
}

// ListAccounts decodes every account, sorted by subject id.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	values, err := r.list(ctx, EmployeesPrefix)
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(values))
	for _, path := range sortedPaths(values) {
		var acct Account
		if err := json.Unmarshal(values[path], &acct); err != nil {
			continue
		}
		acct.SubjectID = SubjectID(strings.TrimPrefix(path, EmployeesPrefix))
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// =============================================================================
// RECONCILIATION RUNS
// =============================================================================

type RunKind string

const (
	RunBatch   RunKind = "batch"
	RunPayroll RunKind = "payroll"
)

// Run summarizes one batch or payroll execution.
type Run struct {
	ID          string    `json:"id"`
	Kind        RunKind   `json:"kind"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
	Partitions  int       `json:"partitions"`
	Written     int       `json:"written"`
	Failed      int       `json:"failed"`
	Malformed   int       `json:"malformed"`
	Errors      []string  `json:"errors,omitempty"`
}

// SaveRun writes run under its id.
func (r *Repository) SaveRun(ctx context.Context, run Run) error {
	return r.write(ctx, RunPath(run.ID), run)
}

// ListRuns returns stored runs, most recent first.
func (r *Repository) ListRuns(ctx context.Context) ([]Run, error) {
	values, err := r.list(ctx, RunsPrefix)
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(values))
	for _, raw := range values {
		var run Run
		if err := json.Unmarshal(raw, &run); err != nil {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

func sortedPaths(values map[string][]byte) []string {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
