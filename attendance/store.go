/*
store.go - Key-value store collaborator

PURPOSE:
  The engine persists everything in a hierarchical key-value store addressed
  by slash-separated paths. Values are JSON documents and every write is a
  full-value replace.

PATHS:
  scans/{id}                          Raw inbox, removed on consumption
  scanArchive/{id}                    Consumed scans kept for batch runs
  attendanceRecords/{subject}_{date}  One record per key
  employees/{subject}                 One account per subject
  reconciliationRuns/{id}             Batch and payroll run summaries

IMPLEMENTATIONS:
  - attendance/store/memory.go: In-memory for tests and dev
  - store/sqlite/sqlite.go: SQLite-backed
  - store/notify: Decorator publishing changes, Redis and in-process hubs
*/
package attendance

import "context"

const (
	ScansPrefix     = "scans/"
	ArchivePrefix   = "scanArchive/"
	RecordsPrefix   = "attendanceRecords/"
	EmployeesPrefix = "employees/"
	RunsPrefix      = "reconciliationRuns/"
)

func ScanPath(id string) string       { return ScansPrefix + id }
func ArchivePath(id string) string    { return ArchivePrefix + id }
func RecordPath(k RecordKey) string   { return RecordsPrefix + k.String() }
func AccountPath(id SubjectID) string { return EmployeesPrefix + string(id) }
func RunPath(id string) string        { return RunsPrefix + id }

// Store is the point-read, full-value-write key-value collaborator.
type Store interface {
	// Read returns the value at path; ok is false when nothing is stored.
	Read(ctx context.Context, path string) (value []byte, ok bool, err error)

	// Write replaces the value at path.
	Write(ctx context.Context, path string, value []byte) error

	// Delete removes path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error

	// List returns every path under prefix with its value.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}

// Change is one value-changed notification.
type Change struct {
	Path    string `json:"path"`
	Value   []byte `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Subscriber delivers live changes under a prefix. Changes to the same path
// arrive in write order; there is no ordering across paths. The channel is
// closed when ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, prefix string) (<-chan Change, error)
}
