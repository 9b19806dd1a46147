package poller

import "errors"

var (
	ErrEmptyExecutionID = errors.New("execution id must not be empty")
	ErrNilSink          = errors.New("sink must not be nil")
	ErrAlreadyStarted   = errors.New("poller already started")
	ErrTerminated       = errors.New("poller terminated")
	ErrEmptySnapshot    = errors.New("fetcher returned no snapshot")
)
