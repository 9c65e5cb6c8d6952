package apcupsd

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the NIS does not finish its response before
// the client deadline. Partial responses are discarded.
var ErrTimeout = errors.New("timed out waiting for end of status")

// ConnError reports a socket-level failure talking to a NIS endpoint.
type ConnError struct {
	Op   string // "dial", "write" or "read"
	Addr string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// DecodeError reports a status line that does not have the "KEY : value"
// shape. A response containing one cannot be trusted for any field.
type DecodeError struct {
	Line int
	Text string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed status line %d: %q has no separator", e.Line, e.Text)
}
