package model

// DashboardStats summarises an execution collection. It is derived on the
// client and recomputed from scratch whenever the source changes.
type DashboardStats struct {
	TotalExecutions     int `json:"totalExecutions"`
	ActiveExecutions    int `json:"activeExecutions"`
	CompletedExecutions int `json:"completedExecutions"`
	FailedExecutions    int `json:"failedExecutions"`
}
