package monitor

import "errors"

var (
	ErrAlreadyRunning = errors.New("health monitor already running")
)
