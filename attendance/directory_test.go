package attendance_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

func TestLatestNames_PlaceholderNeverWins(t *testing.T) {
	records := []attendance.Record{
		{SubjectID: "e1", Date: "2025-05-01", DisplayName: "Ann"},
		{SubjectID: "e1", Date: "2025-05-02", DisplayName: attendance.PlaceholderName("e1")},
		{SubjectID: "e2", Date: "2025-05-01", DisplayName: "Bob"},
		{SubjectID: "e2", Date: "2025-05-03", DisplayName: "Robert"},
		{SubjectID: "e3", Date: "2025-05-01", DisplayName: attendance.PlaceholderName("e3")},
	}

	names := attendance.LatestNames(records)

	assert.Equal(t, map[attendance.SubjectID]string{"e1": "Ann", "e2": "Robert"}, names)
}

func TestDirectory_SyncNames_CreatesMissingAccount(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.PutRecord(ctx, attendance.Record{SubjectID: "e1", Date: day, DisplayName: "Ann"}))

	n, err := attendance.NewDirectory(repo, attendance.DefaultSchedule(), nil).SyncNames(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	acct, found, err := repo.GetAccount(ctx, "e1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ann", acct.DisplayName)
	assert.Equal(t, attendance.RoleEmployee, acct.Role)
	assert.False(t, acct.HourlyRate.IsSet())
	assert.Equal(t, attendance.DefaultHourlyRate, acct.HourlyRate.OrDefault())
}

func TestDirectory_SyncNames_PreservesAdministrationFields(t *testing.T) {
	ctx := context.Background()
	repo, mem := newTestRepo(t)
	putAccountJSON(t, mem, "e1", `{"displayName":"A.","role":"admin","hourlyRate":"negotiable","totalHours":"3.00","salary":"30.00"}`)
	require.NoError(t, repo.PutRecord(ctx, attendance.Record{SubjectID: "e1", Date: day, DisplayName: "Ann"}))

	_, err := attendance.NewDirectory(repo, attendance.DefaultSchedule(), nil).SyncNames(ctx)
	require.NoError(t, err)

	acct, _, err := repo.GetAccount(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", acct.DisplayName)
	assert.Equal(t, attendance.RoleAdmin, acct.Role)
	assert.Equal(t, "3.00", acct.TotalHours.StringFixed(2))
	raw, err := acct.HourlyRate.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"negotiable"`, string(raw))
}

func TestAccount_UnmodeledFieldsSurviveEngineWrites(t *testing.T) {
	ctx := context.Background()
	repo, mem := newTestRepo(t)
	putAccountJSON(t, mem, "e1", `{"role":"employee","hourlyRate":10,"email":"ann@example.com","badge":{"color":"blue"}}`)
	require.NoError(t, repo.PutRecord(ctx, attendance.Record{SubjectID: "e1", Date: day, DisplayName: "Ann", WorkedHours: decimal.NewFromInt(8)}))

	// WHEN: Both account writers run
	_, err := attendance.NewDirectory(repo, attendance.DefaultSchedule(), nil).SyncNames(ctx)
	require.NoError(t, err)
	_, err = attendance.NewAggregator(repo, nil).Run(ctx)
	require.NoError(t, err)

	// THEN: The stored document keeps the fields the engine does not know
	raw, ok, err := mem.Read(ctx, attendance.AccountPath("e1"))
	require.NoError(t, err)
	require.True(t, ok)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "ann@example.com", doc["email"])
	assert.Equal(t, map[string]any{"color": "blue"}, doc["badge"])
	assert.Equal(t, "Ann", doc["displayName"])

	acct, _, err := repo.GetAccount(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "80.00", acct.Salary.StringFixed(2))
}

func TestDirectory_SyncNames_SkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	repo, mem := newTestRepo(t)
	putAccountJSON(t, mem, "e1", `{"displayName":"Ann","role":"employee"}`)
	require.NoError(t, repo.PutRecord(ctx, attendance.Record{SubjectID: "e1", Date: day, DisplayName: "Ann"}))

	n, err := attendance.NewDirectory(repo, attendance.DefaultSchedule(), nil).SyncNames(ctx)

	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDirectory_Unregistered(t *testing.T) {
	ctx := context.Background()
	repo, mem := newTestRepo(t)
	putAccountJSON(t, mem, "e1", `{"role":"employee"}`)
	putScans(t, repo,
		scan("s1", "e1", on(1, 8, 0), ""),
		scan("s2", "x9", on(1, 9, 0), "Visitor"),
		scan("s3", "x8", on(1, 8, 30), ""),
		scan("s4", "x9", on(2, 9, 0), ""),
	)
	d := attendance.NewDirectory(repo, attendance.DefaultSchedule(), nil)

	// All dates, in timestamp order
	all, err := d.Unregistered(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"s3", "s2", "s4"}, []string{all[0].ID, all[1].ID, all[2].ID})

	// One date
	date := attendance.Date("2025-05-02")
	one, err := d.Unregistered(ctx, &date)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "s4", one[0].ID)
}
