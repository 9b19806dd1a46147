package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   ExecutionStatus
		terminal bool
	}{
		{ExecutionStatusPending, false},
		{ExecutionStatusRunning, false},
		{ExecutionStatusCompleted, true},
		{ExecutionStatusFailed, true},
		{ExecutionStatusCancelled, true},
		{ExecutionStatus("paused"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestTimestamp_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"zoned", `"2024-05-01T10:20:30Z"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)},
		{"offset", `"2024-05-01T12:20:30+02:00"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)},
		{"naive with micros", `"2024-05-01T10:20:30.123456"`, time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC)},
		{"naive", `"2024-05-01T10:20:30"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)},
		{"space separated", `"2024-05-01 10:20:30"`, time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %s", ts.Time)
		})
	}

	t.Run("null", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
		assert.True(t, ts.IsZero())
	})

	t.Run("invalid", func(t *testing.T) {
		var ts Timestamp
		assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	})
}

func TestExecutionPage_Unmarshal(t *testing.T) {
	t.Run("Envelope", func(t *testing.T) {
		var page ExecutionPage
		raw := `{"executions":[{"execution_id":"a","status":"running"}],"total":7,"offset":5,"limit":1}`
		require.NoError(t, json.Unmarshal([]byte(raw), &page))
		require.Len(t, page.Executions, 1)
		assert.Equal(t, "a", page.Executions[0].ExecutionID)
		assert.Equal(t, 7, page.Total)
		assert.Equal(t, 5, page.Offset)
	})

	t.Run("BareArray", func(t *testing.T) {
		var page ExecutionPage
		raw := ` [{"execution_id":"a"},{"execution_id":"b","unknown_field":true}]`
		require.NoError(t, json.Unmarshal([]byte(raw), &page))
		assert.Len(t, page.Executions, 2)
		assert.Equal(t, 2, page.Total)
	})
}

func TestHealthStatus_UnknownValues(t *testing.T) {
	var h Health
	require.NoError(t, json.Unmarshal([]byte(`{"status":"on-fire","version":"0.1.0"}`), &h))
	assert.Equal(t, HealthStatusUnknown, h.Status)

	require.NoError(t, json.Unmarshal([]byte(`{"status":"degraded"}`), &h))
	assert.Equal(t, HealthStatusDegraded, h.Status)
}

func TestExecution_ProgressAndAnomalies(t *testing.T) {
	e := Execution{TotalTasks: 4, CompletedTasks: 1, FailedTasks: 1}
	assert.InDelta(t, 0.25, e.Progress(), 1e-9)
	assert.False(t, e.Anomalous())

	e = Execution{TotalTasks: 2, CompletedTasks: 2, FailedTasks: 1}
	assert.Equal(t, 1.0, e.Progress())
	assert.True(t, e.Anomalous())

	assert.Equal(t, 0.0, (&Execution{}).Progress())
}
