package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind string

const (
	// KindTimeout means the fetch did not finish within the timeout.
	KindTimeout Kind = "timeout"

	// KindTooLarge means the document exceeds the configured size cap.
	KindTooLarge Kind = "too_large"

	// KindUpstreamStatus means the upstream answered with a non-2xx status.
	KindUpstreamStatus Kind = "upstream_status"

	// KindNetwork covers every other transport failure.
	KindNetwork Kind = "network"

	// KindDecode means a compressed body could not be decompressed.
	KindDecode Kind = "decode"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrTimeout        = errors.New("fetch timeout")
	ErrTooLarge       = errors.New("source too large")
	ErrUpstreamStatus = errors.New("upstream status")
	ErrNetwork        = errors.New("network error")
	ErrDecode         = errors.New("decode error")
)

var kindSentinels = map[Kind]error{
	KindTimeout:        ErrTimeout,
	KindTooLarge:       ErrTooLarge,
	KindUpstreamStatus: ErrUpstreamStatus,
	KindNetwork:        ErrNetwork,
	KindDecode:         ErrDecode,
}

// Error represents a failed source fetch with additional context.
type Error struct {
	Kind       Kind
	StatusCode int
	URL        string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindUpstreamStatus:
		msg = fmt.Sprintf("upstream status %d", e.StatusCode)
	case KindTooLarge:
		msg = "source too large"
	case KindTimeout:
		msg = "fetch timeout"
	case KindDecode:
		msg = "decode failed"
	default:
		msg = "network error"
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of err, or "" when err is not a fetch error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// shouldRetry determines if a failure is worth another attempt. Only transient
// transport failures and 5xx answers qualify.
func shouldRetry(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.Kind {
	case KindNetwork:
		return true
	case KindUpstreamStatus:
		return fe.StatusCode >= 500
	default:
		// Timeouts share one budget; size and 4xx failures repeat identically.
		return false
	}
}
