package dashboard

import "github.com/t77yq/roma-console/internal/model"

// Aggregate folds executions into dashboard counters. The input is not modified.
func Aggregate(executions []model.Execution) model.DashboardStats {
	stats := model.DashboardStats{TotalExecutions: len(executions)}
	for i := range executions {
		switch executions[i].Status {
		case model.ExecutionStatusRunning:
			stats.ActiveExecutions++
		case model.ExecutionStatusCompleted:
			stats.CompletedExecutions++
		case model.ExecutionStatusFailed:
			stats.FailedExecutions++
		}
	}
	return stats
}
