package attendance_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/attendance"
)

func TestParseRecordKey_SubjectWithUnderscore(t *testing.T) {
	k, err := attendance.ParseRecordKey("emp_42_2025-05-01")
	require.NoError(t, err)
	assert.Equal(t, attendance.SubjectID("emp_42"), k.SubjectID)
	assert.Equal(t, attendance.Date("2025-05-01"), k.Date)
	assert.Equal(t, "emp_42_2025-05-01", k.String())
}

func TestParseRecordKey_Invalid(t *testing.T) {
	for _, in := range []string{"", "e1", "_2025-05-01", "e1_", "e1_2025-13-01"} {
		_, err := attendance.ParseRecordKey(in)
		assert.True(t, attendance.IsMalformed(err), in)
	}
}

func TestScanEvent_TimestampForms(t *testing.T) {
	var fromString, fromMillis attendance.ScanEvent
	require.NoError(t, json.Unmarshal([]byte(`{"subjectId":"e1","timestamp":"2025-05-01T08:55:00Z"}`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`{"subjectId":"e1","timestamp":1746089700000}`), &fromMillis))

	assert.True(t, at(8, 55).Equal(fromString.Timestamp))
	assert.True(t, at(8, 55).Equal(fromMillis.Timestamp))
}

func TestScanEvent_Malformed(t *testing.T) {
	var s attendance.ScanEvent
	err := json.Unmarshal([]byte(`{"subjectId":"e1","timestamp":"yesterday"}`), &s)
	assert.True(t, attendance.IsMalformed(err))

	require.NoError(t, json.Unmarshal([]byte(`{"subjectId":"e1"}`), &s))
	assert.True(t, attendance.IsMalformed(s.Validate()))

	s = attendance.ScanEvent{Timestamp: at(9, 0)}
	assert.True(t, attendance.IsMalformed(s.Validate()))
}

func TestRate_PreservesRawValue(t *testing.T) {
	var acct attendance.Account
	require.NoError(t, json.Unmarshal([]byte(`{"subjectId":"e1","role":"employee","hourlyRate":"twelve"}`), &acct))

	_, numeric := acct.HourlyRate.Decimal()
	assert.False(t, numeric)
	assert.True(t, acct.HourlyRate.OrDefault().Equal(attendance.DefaultHourlyRate))

	out, err := json.Marshal(acct)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"hourlyRate":"twelve"`)
}

func TestRate_NumericForms(t *testing.T) {
	var r attendance.Rate
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &r))
	d, ok := r.Decimal()
	assert.True(t, ok)
	assert.Equal(t, "12.5", d.String())

	require.NoError(t, json.Unmarshal([]byte(`"15"`), &r))
	d, ok = r.Decimal()
	assert.True(t, ok)
	assert.Equal(t, "15", d.String())

	assert.False(t, attendance.Rate{}.IsSet())
	assert.True(t, attendance.NewRate(decimal.NewFromInt(0)).IsSet())
}

func TestErrors_Classification(t *testing.T) {
	k := attendance.RecordKey{SubjectID: "e1", Date: day}

	kerr := &attendance.KeyError{Key: k, Op: "write record", Err: errInjected}
	assert.True(t, attendance.IsStoreFailure(kerr))
	assert.ErrorIs(t, kerr, errInjected)
	assert.Contains(t, kerr.Error(), "e1_2025-05-01")

	pv := &attendance.PolicyViolationError{Key: k, Reason: "day already closed"}
	assert.True(t, attendance.IsPolicyViolation(pv))
	assert.False(t, attendance.IsStoreFailure(pv))
}
