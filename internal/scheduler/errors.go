package scheduler

import "errors"

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already exists")
	ErrInvalidSpec = errors.New("invalid cron expression")
)
