package model

// ConfigProfile is a named backend configuration preset
type ConfigProfile struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Config      map[string]interface{} `json:"config,omitempty"`
}

// ConfigUpdate is the body of POST /api/v1/config/update
type ConfigUpdate struct {
	Profile   string                 `json:"profile,omitempty"`
	Overrides map[string]interface{} `json:"overrides,omitempty"`
}

// ConfigUpdateResult is the backend's answer to a configuration update
type ConfigUpdateResult struct {
	Profile string                 `json:"profile,omitempty"`
	Applied map[string]interface{} `json:"applied,omitempty"`
	Message string                 `json:"message,omitempty"`
}
