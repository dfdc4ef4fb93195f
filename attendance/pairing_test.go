package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

func TestPair_OnTimeFullDay(t *testing.T) {
	// GIVEN: Badge in at 08:55, out at 17:10
	scans := []attendance.ScanEvent{
		scan("s2", "e1", at(17, 10), ""),
		scan("s1", "e1", at(8, 55), "Ann"),
	}

	// WHEN: Paired
	rec, ok := attendance.Pair(attendance.DefaultSchedule(), "e1", day, scans)

	// THEN: Not late, full hours, no deduction
	require.True(t, ok)
	requireInstant(t, at(8, 55), rec.ArrivalAt)
	requireInstant(t, at(17, 10), rec.DepartureAt)
	assert.False(t, rec.IsLate)
	assert.Equal(t, "8.25", rec.WorkedHours.StringFixed(2))
	assert.Equal(t, "0.00", rec.DeductionHours.StringFixed(2))
	assert.Equal(t, attendance.StatusPresent, rec.Status)
	assert.Equal(t, "Ann", rec.DisplayName)
}

func TestPair_LoneLateScan(t *testing.T) {
	rec, ok := attendance.Pair(attendance.DefaultSchedule(), "e1", day, []attendance.ScanEvent{
		scan("s1", "e1", at(9, 15), ""),
	})

	require.True(t, ok)
	requireInstant(t, at(9, 15), rec.ArrivalAt)
	assert.Nil(t, rec.DepartureAt)
	assert.True(t, rec.IsLate)
	assert.True(t, rec.WorkedHours.IsZero())
	assert.Equal(t, attendance.StatusPresent, rec.Status)
	assert.Equal(t, "Unknown (e1)", rec.DisplayName)
}

func TestPair_EarlyDepartureDeduction(t *testing.T) {
	rec, ok := attendance.Pair(attendance.DefaultSchedule(), "e1", day, []attendance.ScanEvent{
		scan("s1", "e1", at(8, 50), ""),
		scan("s2", "e1", at(16, 30), ""),
	})

	require.True(t, ok)
	assert.Equal(t, "0.50", rec.DeductionHours.StringFixed(2))
	assert.Equal(t, "7.67", rec.WorkedHours.StringFixed(2))
	assert.False(t, rec.IsLate)
}

func TestPair_NoScansNoRecord(t *testing.T) {
	_, ok := attendance.Pair(attendance.DefaultSchedule(), "e1", day, nil)
	assert.False(t, ok)
}

func TestPair_LastDepartureCandidateWins(t *testing.T) {
	// GIVEN: Arrival, a lunch scan and a late exit
	rec, ok := attendance.Pair(attendance.DefaultSchedule(), "e1", day, []attendance.ScanEvent{
		scan("s3", "e1", at(17, 30), ""),
		scan("s1", "e1", at(8, 0), ""),
		scan("s2", "e1", at(12, 0), ""),
	})

	// THEN: The first scan arrives, the last departs
	require.True(t, ok)
	requireInstant(t, at(8, 0), rec.ArrivalAt)
	requireInstant(t, at(17, 30), rec.DepartureAt)
	assert.Equal(t, "9.50", rec.WorkedHours.StringFixed(2))
	assert.True(t, rec.DeductionHours.IsZero())
}

func TestPair_FirstScanAfterThresholdIsArrival(t *testing.T) {
	rec, ok := attendance.Pair(attendance.DefaultSchedule(), "e1", day, []attendance.ScanEvent{
		scan("s1", "e1", at(18, 0), ""),
	})

	require.True(t, ok)
	requireInstant(t, at(18, 0), rec.ArrivalAt)
	assert.Nil(t, rec.DepartureAt)
	assert.True(t, rec.IsLate)
	assert.True(t, rec.DeductionHours.IsZero())
}

func TestPair_LastNonEmptyNameWins(t *testing.T) {
	rec, _ := attendance.Pair(attendance.DefaultSchedule(), "e1", day, []attendance.ScanEvent{
		scan("s1", "e1", at(8, 0), "Ann"),
		scan("s2", "e1", at(12, 0), "Ann Lee"),
		scan("s3", "e1", at(17, 0), ""),
	})
	assert.Equal(t, "Ann Lee", rec.DisplayName)
}

func TestPair_DepartureAtThresholdHasNoDeduction(t *testing.T) {
	rec, _ := attendance.Pair(attendance.DefaultSchedule(), "e1", day, []attendance.ScanEvent{
		scan("s1", "e1", at(9, 0), ""),
		scan("s2", "e1", at(17, 0), ""),
	})
	assert.False(t, rec.IsLate, "arrival exactly at the threshold is on time")
	assert.True(t, rec.DeductionHours.IsZero())
	assert.Equal(t, "8.00", rec.WorkedHours.StringFixed(2))
}

func TestPair_TiesBrokenByID(t *testing.T) {
	a := []attendance.ScanEvent{scan("b", "e1", at(8, 0), "B"), scan("a", "e1", at(8, 0), "A")}
	b := []attendance.ScanEvent{scan("a", "e1", at(8, 0), "A"), scan("b", "e1", at(8, 0), "B")}

	ra, _ := attendance.Pair(attendance.DefaultSchedule(), "e1", day, a)
	rb, _ := attendance.Pair(attendance.DefaultSchedule(), "e1", day, b)
	assert.Equal(t, ra.DisplayName, rb.DisplayName)
	assert.Equal(t, "B", ra.DisplayName)
}

func TestPartition_GroupsBySubjectAndDate(t *testing.T) {
	parts, malformed := attendance.Partition(attendance.DefaultSchedule(), []attendance.ScanEvent{
		scan("s1", "e1", on(1, 8, 0), ""),
		scan("s2", "e1", on(1, 17, 0), ""),
		scan("s3", "e1", on(2, 8, 0), ""),
		scan("s4", "e2", on(1, 8, 0), ""),
		scan("s5", "", on(1, 8, 0), ""),
	})

	assert.Len(t, malformed, 1)
	assert.Len(t, parts, 3)
	assert.Len(t, parts[attendance.RecordKey{SubjectID: "e1", Date: "2025-05-01"}], 2)

	keys := attendance.SortedKeys(parts)
	require.Len(t, keys, 3)
	assert.Equal(t, "e1_2025-05-01", keys[0].String())
	assert.Equal(t, "e1_2025-05-02", keys[1].String())
	assert.Equal(t, "e2_2025-05-01", keys[2].String())
}
