package dashboard

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/roma-console/internal/client"
	"github.com/t77yq/roma-console/internal/model"
	"github.com/t77yq/roma-console/internal/testutil"
	"github.com/t77yq/roma-console/internal/transport"
)

func executions(statuses ...model.ExecutionStatus) []model.Execution {
	out := make([]model.Execution, 0, len(statuses))
	for i, s := range statuses {
		out = append(out, model.Execution{ExecutionID: string(rune('a' + i)), Status: s})
	}
	return out
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		input []model.Execution
		want  model.DashboardStats
	}{
		{
			name:  "empty",
			input: nil,
			want:  model.DashboardStats{},
		},
		{
			name: "mixed",
			input: executions(
				model.ExecutionStatusRunning,
				model.ExecutionStatusCompleted,
				model.ExecutionStatusFailed,
				model.ExecutionStatusPending,
			),
			want: model.DashboardStats{
				TotalExecutions:     4,
				ActiveExecutions:    1,
				CompletedExecutions: 1,
				FailedExecutions:    1,
			},
		},
		{
			name: "pending and cancelled only count toward total",
			input: executions(
				model.ExecutionStatusPending,
				model.ExecutionStatusCancelled,
				model.ExecutionStatusCancelled,
			),
			want: model.DashboardStats{TotalExecutions: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.input))
		})
	}
}

func TestAggregate_Properties(t *testing.T) {
	input := executions(
		model.ExecutionStatusRunning,
		model.ExecutionStatusRunning,
		model.ExecutionStatusCompleted,
		model.ExecutionStatusCancelled,
		model.ExecutionStatusFailed,
	)
	before := make([]model.Execution, len(input))
	copy(before, input)

	stats := Aggregate(input)
	assert.Equal(t, len(input), stats.TotalExecutions)
	assert.LessOrEqual(t, stats.ActiveExecutions+stats.CompletedExecutions+stats.FailedExecutions, stats.TotalExecutions)
	assert.Equal(t, before, input, "input must not be mutated")
}

func setupBoard(t *testing.T) (*Board, *testutil.Backend) {
	t.Helper()

	backend := testutil.NewBackend(t)
	tr, err := transport.New(backend.URL(), &testutil.Recorder{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	return NewBoard(client.New(tr, zaptest.NewLogger(t)), 10, zaptest.NewLogger(t)), backend
}

func TestBoard_RefreshCreateDelete(t *testing.T) {
	board, backend := setupBoard(t)
	ctx := context.Background()

	backend.AddExecution(model.Execution{ExecutionID: "exec-a", Status: model.ExecutionStatusRunning})
	backend.AddExecution(model.Execution{ExecutionID: "exec-b", Status: model.ExecutionStatusCompleted})

	require.NoError(t, board.Refresh(ctx))
	snap := board.Snapshot()
	assert.Len(t, snap.Executions, 2)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, model.DashboardStats{TotalExecutions: 2, ActiveExecutions: 1, CompletedExecutions: 1}, snap.Stats)
	assert.False(t, snap.RefreshedAt.IsZero())

	exec, err := board.Create(ctx, model.CreateExecutionRequest{Goal: "Summarize this document"})
	require.NoError(t, err)
	snap = board.Snapshot()
	require.Len(t, snap.Executions, 3)
	assert.Equal(t, exec.ExecutionID, snap.Executions[0].ExecutionID)
	assert.Equal(t, 3, snap.Stats.TotalExecutions)

	require.NoError(t, board.Delete(ctx, "exec-b"))
	snap = board.Snapshot()
	assert.Len(t, snap.Executions, 2)
	assert.Equal(t, 0, snap.Stats.CompletedExecutions)
	assert.Equal(t, 2, snap.Total)
}

type stubSource struct {
	page    *model.ExecutionPage
	created *model.Execution
}

func (s *stubSource) ListExecutions(context.Context, client.ListOptions) (*model.ExecutionPage, error) {
	return s.page, nil
}

func (s *stubSource) CreateExecution(context.Context, model.CreateExecutionRequest) (*model.Execution, error) {
	return s.created, nil
}

func (s *stubSource) DeleteExecution(context.Context, string) error {
	return nil
}

func TestBoard_CreateKnownExecutionKeepsTotal(t *testing.T) {
	source := &stubSource{
		page: &model.ExecutionPage{
			Executions: []model.Execution{
				{ExecutionID: "exec-a", Status: model.ExecutionStatusPending},
				{ExecutionID: "exec-b", Status: model.ExecutionStatusCompleted},
			},
			Total: 2,
		},
		created: &model.Execution{ExecutionID: "exec-b", Status: model.ExecutionStatusRunning},
	}
	board := NewBoard(source, 10, zaptest.NewLogger(t))
	ctx := context.Background()
	require.NoError(t, board.Refresh(ctx))

	_, err := board.Create(ctx, model.CreateExecutionRequest{Goal: "again"})
	require.NoError(t, err)

	snap := board.Snapshot()
	require.Len(t, snap.Executions, 2)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, "exec-b", snap.Executions[0].ExecutionID)
	assert.Equal(t, model.ExecutionStatusRunning, snap.Executions[0].Status)

	source.created = &model.Execution{ExecutionID: "exec-c", Status: model.ExecutionStatusPending}
	_, err = board.Create(ctx, model.CreateExecutionRequest{Goal: "new"})
	require.NoError(t, err)
	assert.Equal(t, 3, board.Snapshot().Total)
}

func TestBoard_FailuresLeaveCacheUntouched(t *testing.T) {
	board, backend := setupBoard(t)
	ctx := context.Background()

	backend.AddExecution(model.Execution{ExecutionID: "exec-a", Status: model.ExecutionStatusRunning})
	require.NoError(t, board.Refresh(ctx))
	before := board.Snapshot()

	backend.FailWith(http.MethodPost, "/api/v1/executions", http.StatusInternalServerError, "boom")
	_, err := board.Create(ctx, model.CreateExecutionRequest{Goal: "never lands"})
	assert.ErrorIs(t, err, transport.ErrServerError)

	backend.FailWith(http.MethodDelete, "/api/v1/executions/exec-a", http.StatusForbidden, "no")
	assert.ErrorIs(t, board.Delete(ctx, "exec-a"), transport.ErrForbidden)

	backend.FailWith(http.MethodGet, "/api/v1/executions", http.StatusUnauthorized, "")
	assert.ErrorIs(t, board.Refresh(ctx), transport.ErrAuthRequired)

	assert.Equal(t, before, board.Snapshot())
}

func TestBoard_SnapshotIsCopy(t *testing.T) {
	board, backend := setupBoard(t)
	backend.AddExecution(model.Execution{ExecutionID: "exec-a", Status: model.ExecutionStatusRunning})
	require.NoError(t, board.Refresh(context.Background()))

	snap := board.Snapshot()
	snap.Executions[0].Status = model.ExecutionStatusFailed

	assert.Equal(t, model.ExecutionStatusRunning, board.Snapshot().Executions[0].Status)
	assert.Equal(t, 1, board.Stats().ActiveExecutions)
}
