// Package apcupsd talks to the apcupsd Network Information Server (NIS) and
// decodes its status responses.
package apcupsd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// DefaultTimeout bounds one complete status roundtrip.
const DefaultTimeout = 30 * time.Second

const readChunk = 1024

var (
	// statusRequest is the length-prefixed "status" command.
	statusRequest = []byte("\x00\x06status")

	// sentinel terminates every NIS status response.
	sentinel = []byte("  \n\x00\x00")
)

// Fetcher abstracts the NIS roundtrip so tests can inject a fake.
type Fetcher interface {
	Fetch(ctx context.Context, addr string) ([]byte, error)
}

// Client fetches raw status responses. It holds no connection state: every
// Fetch dials, sends one request, reads until the sentinel and closes.
type Client struct {
	Timeout time.Duration
}

// NewClient returns a Client using timeout, or DefaultTimeout if timeout is
// not positive.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Timeout: timeout}
}

// Fetch requests the status of the NIS at addr ("host:port") and returns the
// raw response including the trailing sentinel.
//
// The whole exchange shares one deadline: Timeout from now, or the context
// deadline if that is earlier. Running out of time yields an error matching
// ErrTimeout; other socket failures yield a *ConnError. A response is only
// returned once the sentinel has been seen.
func (c *Client) Fetch(ctx context.Context, addr string) ([]byte, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connError("dial", addr, err)
	}
	defer conn.Close() //nolint:errcheck

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, connError("dial", addr, err)
	}
	if _, err := conn.Write(statusRequest); err != nil {
		return nil, connError("write", addr, err)
	}

	var buf bytes.Buffer
	chunk := make([]byte, readChunk)
	for !bytes.HasSuffix(buf.Bytes(), sentinel) {
		n, err := conn.Read(chunk)
		buf.Write(chunk[:n])
		if err == nil {
			continue
		}
		if bytes.HasSuffix(buf.Bytes(), sentinel) {
			break
		}
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, connError("read", addr, err)
	}
	return buf.Bytes(), nil
}

// connError classifies err, folding deadline expiry into ErrTimeout.
func connError(op, addr string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		err = ErrTimeout
	}
	return &ConnError{Op: op, Addr: addr, Err: err}
}
