package attendance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/attendance/store"
)

func newCycle(repo *attendance.Repository) *attendance.Cycle {
	schedule := attendance.DefaultSchedule()
	return &attendance.Cycle{
		Reconciler: attendance.NewReconciler(repo, schedule, nil),
		Directory:  attendance.NewDirectory(repo, schedule, nil),
		Aggregator: attendance.NewAggregator(repo, nil),
	}
}

func TestCycle_Run(t *testing.T) {
	ctx := context.Background()
	repo, mem := newTestRepo(t)

	// GIVEN: A known employee and an unknown one, both with a full day
	putAccountJSON(t, mem, "e1", `{"role":"employee","hourlyRate":20}`)
	putScans(t, repo,
		scan("s1", "e1", at(9, 0), "Ann"),
		scan("s2", "e1", at(17, 0), ""),
		scan("s3", "e2", at(9, 0), "Bob"),
		scan("s4", "e2", at(17, 0), ""),
	)

	// WHEN: One full cycle runs
	report, err := newCycle(repo).Run(ctx)

	// THEN: Records, names and payroll are all in place
	require.NoError(t, err)
	assert.Equal(t, 2, report.Batch.Written)
	assert.Equal(t, 2, report.Synced)
	assert.Len(t, report.Payroll.Accounts, 2)

	ann, _, err := repo.GetAccount(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", ann.DisplayName)
	assert.Equal(t, "160.00", ann.Salary.StringFixed(2))

	// e2 was created without a rate and is paid the default
	bob, found, err := repo.GetAccount(ctx, "e2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "8.00", bob.TotalHours.StringFixed(2))
	assert.Equal(t, "80.00", bob.Salary.StringFixed(2))

	runs, err := repo.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCycle_Run_AbortsOnBatchFailure(t *testing.T) {
	repo := attendance.NewRepository(&faultyStore{Store: store.NewMemory(), failList: true})

	_, err := newCycle(repo).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch reconciliation")
}
