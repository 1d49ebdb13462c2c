package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	ErrDump              = errors.New("database dump failed")
	ErrCompression       = errors.New("compression failed")
	ErrSizeLimitExceeded = errors.New("backup exceeds transport size limit")
	ErrTransport         = errors.New("transport failed")
	ErrRunInProgress     = errors.New("backup run already in progress")
)

// TransportError is returned by transports that know whether a failure is worth
// a retry.
type TransportError struct {
	Transport  string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Transport, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a transport error is timeout or abort shaped.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		if te.Transient {
			return true
		}
		if te.StatusCode != 0 {
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "aborted") ||
		strings.Contains(msg, "aborterror")
}

// RunError wraps the failure of a whole orchestration run.
type RunError struct {
	RunID   string
	Outcome RunOutcome
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("backup run %s %s: %v", e.RunID, e.Outcome, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
