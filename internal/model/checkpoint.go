package model

// Checkpoint is a persisted snapshot of an execution that can be restored
type Checkpoint struct {
	CheckpointID  string                 `json:"checkpoint_id"`
	ExecutionID   string                 `json:"execution_id"`
	Trigger       string                 `json:"trigger"`
	State         string                 `json:"state"`
	FilePath      string                 `json:"file_path,omitempty"`
	FileSizeBytes *int64                 `json:"file_size_bytes,omitempty"`
	Compressed    *bool                  `json:"compressed,omitempty"`
	DAGSnapshot   map[string]interface{} `json:"dag_snapshot,omitempty"`
	CreatedAt     Timestamp              `json:"created_at"`
}

// RestoreRequest is the body of POST /api/v1/checkpoints/{id}/restore
type RestoreRequest struct {
	Resume bool `json:"resume"`
}

// RestoreResult is the backend's answer to a restore command
type RestoreResult struct {
	CheckpointID string          `json:"checkpoint_id"`
	ExecutionID  string          `json:"execution_id"`
	Status       ExecutionStatus `json:"status,omitempty"`
	Resumed      bool            `json:"resumed"`
	Message      string          `json:"message,omitempty"`
}
