package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultMaxDepth is the decomposition depth used when a create request leaves it unset
const DefaultMaxDepth = 2

// Execution represents one run of the hierarchical agent against a goal
type Execution struct {
	ExecutionID    string                 `json:"execution_id"`
	Status         ExecutionStatus        `json:"status"`
	InitialGoal    string                 `json:"initial_goal"`
	MaxDepth       int                    `json:"max_depth"`
	TotalTasks     int                    `json:"total_tasks"`
	CompletedTasks int                    `json:"completed_tasks"`
	FailedTasks    int                    `json:"failed_tasks"`
	CreatedAt      Timestamp              `json:"created_at"`
	UpdatedAt      Timestamp              `json:"updated_at"`
	Config         map[string]interface{} `json:"config,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Statistics     *ExecutionStatistics   `json:"statistics,omitempty"`
}

// ExecutionStatistics is the backend's task-count breakdown
type ExecutionStatistics struct {
	TotalTasks     int            `json:"total_tasks"`
	CompletedTasks int            `json:"completed_tasks"`
	FailedTasks    int            `json:"failed_tasks"`
	PendingTasks   int            `json:"pending_tasks"`
	RunningTasks   int            `json:"running_tasks"`
	TasksByDepth   map[string]int `json:"tasks_by_depth,omitempty"`
	TasksByModule  map[string]int `json:"tasks_by_module,omitempty"`
}

// Progress returns completed/total in [0, 1]
func (e *Execution) Progress() float64 {
	if e.TotalTasks <= 0 {
		return 0
	}
	p := float64(e.CompletedTasks) / float64(e.TotalTasks)
	if p > 1 {
		return 1
	}
	return p
}

// Anomalous reports task counters that cannot all be true at once.
// Anomalies are for display only.
func (e *Execution) Anomalous() bool {
	return e.TotalTasks < 0 || e.CompletedTasks < 0 || e.FailedTasks < 0 ||
		e.CompletedTasks+e.FailedTasks > e.TotalTasks
}

// ExecutionPage is one page of the execution listing
type ExecutionPage struct {
	Executions []Execution `json:"executions"`
	Total      int         `json:"total"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
}

// UnmarshalJSON accepts both the paged envelope and a bare array
func (p *ExecutionPage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var executions []Execution
		if err := json.Unmarshal(trimmed, &executions); err != nil {
			return fmt.Errorf("failed to decode execution list: %w", err)
		}
		*p = ExecutionPage{Executions: executions, Total: len(executions), Limit: len(executions)}
		return nil
	}
	type envelope ExecutionPage
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("failed to decode execution page: %w", err)
	}
	*p = ExecutionPage(env)
	return nil
}

// CreateExecutionRequest is the body of POST /api/v1/executions
type CreateExecutionRequest struct {
	Goal            string                 `json:"goal"`
	MaxDepth        int                    `json:"max_depth,omitempty"`
	ConfigProfile   string                 `json:"config_profile,omitempty"`
	ConfigOverrides map[string]interface{} `json:"config_overrides,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// StatusSnapshot is the lightweight live projection of one execution
type StatusSnapshot struct {
	ExecutionID               string          `json:"execution_id,omitempty"`
	Status                    ExecutionStatus `json:"status"`
	Progress                  float64         `json:"progress"`
	CurrentTaskID             string          `json:"current_task_id,omitempty"`
	CurrentTaskGoal           string          `json:"current_task_goal,omitempty"`
	CompletedTasks            int             `json:"completed_tasks"`
	TotalTasks                int             `json:"total_tasks"`
	EstimatedRemainingSeconds *float64        `json:"estimated_remaining_seconds,omitempty"`
	LastUpdated               Timestamp       `json:"last_updated"`
}

// ExecutionMetrics aggregates LM usage for one execution
type ExecutionMetrics struct {
	ExecutionID      string                 `json:"execution_id"`
	TotalLMCalls     int                    `json:"total_lm_calls"`
	TotalTokens      int                    `json:"total_tokens"`
	PromptTokens     int                    `json:"prompt_tokens"`
	CompletionTokens int                    `json:"completion_tokens"`
	TotalCostUSD     float64                `json:"total_cost_usd"`
	AverageLatencyMS float64                `json:"average_latency_ms"`
	TaskBreakdown    map[string]interface{} `json:"task_breakdown,omitempty"`
}

// ExecutionData is the full record of an execution including its traces
type ExecutionData struct {
	Execution   *Execution   `json:"execution"`
	Tasks       []TaskTrace  `json:"tasks"`
	LMTraces    []LMTrace    `json:"lm_traces"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
}
