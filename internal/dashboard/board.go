package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/roma-console/internal/client"
	"github.com/t77yq/roma-console/internal/model"
)

// Source is the subset of the resource client the board needs
type Source interface {
	ListExecutions(ctx context.Context, opts client.ListOptions) (*model.ExecutionPage, error)
	CreateExecution(ctx context.Context, req model.CreateExecutionRequest) (*model.Execution, error)
	DeleteExecution(ctx context.Context, executionID string) error
}

// Snapshot is an immutable view of the board
type Snapshot struct {
	Executions  []model.Execution
	Total       int
	Stats       model.DashboardStats
	RefreshedAt time.Time
}

// Board caches the latest execution page and its counters.
// Failed operations leave the cache untouched.
type Board struct {
	logger   *zap.Logger
	source   Source
	pageSize int

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewBoard creates an empty board
func NewBoard(source Source, pageSize int, logger *zap.Logger) *Board {
	if pageSize <= 0 {
		pageSize = client.DefaultLimit
	}
	return &Board{
		logger:   logger.Named("dashboard"),
		source:   source,
		pageSize: pageSize,
		snapshot: Snapshot{Executions: []model.Execution{}},
	}
}

// Refresh reloads the first page of executions
func (b *Board) Refresh(ctx context.Context) error {
	page, err := b.source.ListExecutions(ctx, client.ListOptions{Limit: b.pageSize})
	if err != nil {
		b.logger.Warn("Failed to refresh dashboard", zap.Error(err))
		return err
	}

	executions := make([]model.Execution, len(page.Executions))
	copy(executions, page.Executions)
	total := page.Total
	if total < len(executions) {
		total = len(executions)
	}

	b.mu.Lock()
	b.snapshot = Snapshot{
		Executions:  executions,
		Total:       total,
		Stats:       Aggregate(executions),
		RefreshedAt: time.Now(),
	}
	b.mu.Unlock()

	b.logger.Debug("Dashboard refreshed",
		zap.Int("executions", len(executions)),
		zap.Int("total", total))
	return nil
}

// Snapshot returns a copy of the cached state
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.snapshot
	s.Executions = make([]model.Execution, len(b.snapshot.Executions))
	copy(s.Executions, b.snapshot.Executions)
	return s
}

// Stats returns the cached counters
func (b *Board) Stats() model.DashboardStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot.Stats
}

// Create starts an execution and inserts it at the top of the cache on success
func (b *Board) Create(ctx context.Context, req model.CreateExecutionRequest) (*model.Execution, error) {
	exec, err := b.source.CreateExecution(ctx, req)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	executions := make([]model.Execution, 0, len(b.snapshot.Executions)+1)
	executions = append(executions, *exec)
	total := b.snapshot.Total + 1
	for _, existing := range b.snapshot.Executions {
		if existing.ExecutionID == exec.ExecutionID {
			total--
			continue
		}
		executions = append(executions, existing)
	}
	b.replace(executions, total)
	return exec, nil
}

// Delete removes an execution and drops it from the cache on success
func (b *Board) Delete(ctx context.Context, executionID string) error {
	if err := b.source.DeleteExecution(ctx, executionID); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	executions := make([]model.Execution, 0, len(b.snapshot.Executions))
	removed := false
	for _, existing := range b.snapshot.Executions {
		if existing.ExecutionID == executionID {
			removed = true
			continue
		}
		executions = append(executions, existing)
	}

	total := b.snapshot.Total
	if removed && total > 0 {
		total--
	}
	b.replace(executions, total)
	return nil
}

// replace must be called with mu held
func (b *Board) replace(executions []model.Execution, total int) {
	if total < len(executions) {
		total = len(executions)
	}
	b.snapshot = Snapshot{
		Executions:  executions,
		Total:       total,
		Stats:       Aggregate(executions),
		RefreshedAt: b.snapshot.RefreshedAt,
	}
}
