package connection

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel kinds for connection errors.
var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrConnectionLost   = errors.New("connection lost")

	// Transport implementations wrap these so the manager can classify causes.
	ErrDeviceNotFound = errors.New("no matching device found")
	ErrServiceMissing = errors.New("timing service or characteristic not available")
)

// Cause is the human-readable reason carried by a FailedError.
type Cause string

// Known failure causes.
const (
	CauseNotFound       Cause = "not_found"
	CauseHandshake      Cause = "handshake"
	CauseServiceMissing Cause = "service_missing"
	CauseTimeout        Cause = "timeout"
	CauseCancelled      Cause = "cancelled"
	CauseBusy           Cause = "busy"
)

// FailedError reports a scan_and_connect failure.
type FailedError struct {
	Cause Cause
	Err   error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection failed: %s", e.Cause)
	}
	return fmt.Sprintf("connection failed: %s: %v", e.Cause, e.Err)
}

// Unwrap exposes both ErrConnectionFailed and the transport error.
func (e *FailedError) Unwrap() []error {
	return []error{ErrConnectionFailed, e.Err}
}

// classify maps a dial error onto a Cause. scanErr is the scan context's
// error, which wins over whatever the transport returned.
func classify(err, scanErr error) Cause {
	switch {
	case errors.Is(scanErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case scanErr != nil || errors.Is(err, context.Canceled):
		return CauseCancelled
	case errors.Is(err, ErrDeviceNotFound):
		return CauseNotFound
	case errors.Is(err, ErrServiceMissing):
		return CauseServiceMissing
	default:
		return CauseHandshake
	}
}
