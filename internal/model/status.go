package model

// ExecutionStatus represents the lifecycle state of an execution
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions can follow this status
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether the execution is currently doing work
func (s ExecutionStatus) IsActive() bool {
	return s == ExecutionStatusRunning
}

// HealthStatus represents the overall state reported by the backend
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// UnmarshalText maps anything outside the known set to unknown
func (s *HealthStatus) UnmarshalText(text []byte) error {
	switch v := HealthStatus(text); v {
	case HealthStatusHealthy, HealthStatusDegraded, HealthStatusUnhealthy:
		*s = v
	default:
		*s = HealthStatusUnknown
	}
	return nil
}
