package errors

import "errors"

var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
	// ErrUnavailable marks backing store transport failures so callers can
	// tell an infrastructure outage apart from ordinary lock contention.
	ErrUnavailable = errors.New("backing store unavailable")
)
