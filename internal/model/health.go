package model

// Health is a process-wide snapshot of the backend
type Health struct {
	Status           HealthStatus `json:"status"`
	Version          string       `json:"version"`
	UptimeSeconds    float64      `json:"uptime_seconds"`
	ActiveExecutions int          `json:"active_executions"`
	StorageConnected bool         `json:"storage_connected"`
	CacheSize        int          `json:"cache_size"`
	Timestamp        Timestamp    `json:"timestamp"`
}
