package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

func newTestScheduler(t *testing.T) (*ReconciliationScheduler, *attendance.Repository) {
	t.Helper()
	repo := attendance.NewRepository(store.NewMemory())
	h := NewHandler(repo, attendance.DefaultSchedule(), nil)
	return NewReconciliationScheduler(h.Cycle(), nil), repo
}

func TestScheduler_RunNow(t *testing.T) {
	ctx := context.Background()
	rs, repo := newTestScheduler(t)
	require.NoError(t, repo.PutScan(ctx, attendance.ScanEvent{
		ID:        "s1",
		SubjectID: "e1",
		Timestamp: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}))
	assert.True(t, rs.LastRun().IsZero())

	report, err := rs.RunNow(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Batch.Written)
	assert.False(t, rs.LastRun().IsZero())
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	rs, repo := newTestScheduler(t)
	rs.CheckInterval = time.Hour

	rs.Start()
	defer rs.Stop()

	require.Eventually(t, func() bool { return !rs.LastRun().IsZero() }, 2*time.Second, 10*time.Millisecond)
	runs, err := repo.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestScheduler_NextRunOnlyWhileRunning(t *testing.T) {
	rs, _ := newTestScheduler(t)
	rs.CheckInterval = time.Hour
	assert.True(t, rs.NextRun().IsZero())

	rs.Start()
	require.Eventually(t, func() bool { return !rs.LastRun().IsZero() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, rs.LastRun().Add(time.Hour), rs.NextRun())

	rs.Stop()
	assert.True(t, rs.NextRun().IsZero())
	assert.Nil(t, rs.Status().NextRun)
}

func TestScheduler_Disabled(t *testing.T) {
	rs, _ := newTestScheduler(t)
	rs.Enabled = false

	rs.Start()
	rs.Stop()

	assert.True(t, rs.LastRun().IsZero())
	assert.False(t, rs.Status().Enabled)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	rs, _ := newTestScheduler(t)
	rs.Start()
	rs.Stop()
	rs.Stop()
}
