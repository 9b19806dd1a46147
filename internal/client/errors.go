package client

import "errors"

var (
	// ErrInvalidArgument is returned when a local precondition fails; no call is made
	ErrInvalidArgument = errors.New("invalid argument")
)
