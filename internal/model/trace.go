package model

// TaskTrace records one node of the task decomposition tree
type TaskTrace struct {
	TaskID       string                 `json:"task_id"`
	ExecutionID  string                 `json:"execution_id"`
	ParentTaskID string                 `json:"parent_task_id,omitempty"`
	Goal         string                 `json:"goal"`
	Status       string                 `json:"status"`
	Depth        int                    `json:"depth"`
	Module       string                 `json:"module,omitempty"`
	Result       string                 `json:"result,omitempty"`
	Error        string                 `json:"error,omitempty"`
	StartedAt    Timestamp              `json:"started_at"`
	CompletedAt  Timestamp              `json:"completed_at"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// LMTrace records one language-model call
type LMTrace struct {
	TraceID          string    `json:"trace_id"`
	ExecutionID      string    `json:"execution_id"`
	TaskID           string    `json:"task_id,omitempty"`
	ModuleName       string    `json:"module_name"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMS        float64   `json:"latency_ms"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        Timestamp `json:"created_at"`
}
