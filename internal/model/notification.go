package model

import "time"

// NotificationLevel represents the severity shown to the operator
type NotificationLevel string

const (
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelInfo    NotificationLevel = "info"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelError   NotificationLevel = "error"
)

// Notification is a transient user-visible message
type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Kind      string            `json:"kind,omitempty"`
	Message   string            `json:"message"`
	Operation string            `json:"operation,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
