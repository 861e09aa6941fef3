package warehouse

import (
	"errors"
	"net"
	"strings"
)

var (
	// ErrTableNotFound is returned by GetTableMetadata when the destination
	// table does not exist.
	ErrTableNotFound = errors.New("destination table not found")

	// ErrTableExists is returned by CreateTable when the table already
	// exists, typically because a concurrent worker won the creation race.
	ErrTableExists = errors.New("destination table already exists")
)

// RetryableError marks a failure as transient: an insert wrapped in it is
// eligible for backoff retry, and a setup step wrapped in it may be re-run.
// The original warehouse error stays attached.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable warehouse error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsRowTooLarge reports whether err is the warehouse rejecting an insert
// payload for size. The destination service only exposes this condition
// through its message text, so the string match is confined here.
func IsRowTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "request entity too large") ||
		strings.Contains(msg, "row too large") ||
		strings.Contains(msg, "request payload size exceeds the limit")
}

// IsTransientSetup reports whether a setup-time failure is connection-level
// and worth re-running setup for, as opposed to a configuration or
// permission problem.
func IsTransientSetup(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls") ||
		strings.Contains(msg, "deadline exceeded")
}
