package attendance_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const day = attendance.Date("2025-05-01")

// at returns hh:mm on 2025-05-01 UTC.
func at(hh, mm int) time.Time {
	return time.Date(2025, 5, 1, hh, mm, 0, 0, time.UTC)
}

// on returns hh:mm on 2025-05-dd UTC.
func on(dd, hh, mm int) time.Time {
	return time.Date(2025, 5, dd, hh, mm, 0, 0, time.UTC)
}

func scan(id string, subject attendance.SubjectID, ts time.Time, name string) attendance.ScanEvent {
	return attendance.ScanEvent{ID: id, SubjectID: subject, Timestamp: ts, DisplayName: name}
}

func newTestRepo(t *testing.T) (*attendance.Repository, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return attendance.NewRepository(mem), mem
}

func putScans(t *testing.T, repo *attendance.Repository, scans ...attendance.ScanEvent) {
	t.Helper()
	for _, s := range scans {
		require.NoError(t, repo.PutScan(context.Background(), s))
	}
}

func requireInstant(t *testing.T, want time.Time, got *time.Time) {
	t.Helper()
	require.NotNil(t, got)
	require.True(t, want.Equal(*got), "want %s, got %s", want, *got)
}

// =============================================================================
// FAULTY STORE
// =============================================================================

var errInjected = errors.New("injected failure")

// faultyStore fails writes to paths containing any of failWrites, and every
// List call when failList is set.
type faultyStore struct {
	attendance.Store

	mu         sync.Mutex
	failWrites []string
	failList   bool
	failRead   bool
}

func (f *faultyStore) Write(ctx context.Context, path string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, frag := range f.failWrites {
		if strings.Contains(path, frag) {
			return errInjected
		}
	}
	return f.Store.Write(ctx, path, value)
}

func (f *faultyStore) Read(ctx context.Context, path string) ([]byte, bool, error) {
	f.mu.Lock()
	fail := f.failRead
	f.mu.Unlock()
	if fail {
		return nil, false, errInjected
	}
	return f.Store.Read(ctx, path)
}

func (f *faultyStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errInjected
	}
	return f.Store.List(ctx, prefix)
}
