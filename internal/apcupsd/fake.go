package apcupsd

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
)

// FakeFetcher is a test double for Fetcher.
//
// Responses maps an address to the raw bytes returned for it; Errors maps an
// address to a failure. An address found in neither returns a ConnError as
// if the connection were refused. FakeFetcher is safe for concurrent use.
type FakeFetcher struct {
	Responses map[string][]byte
	Errors    map[string]error

	mu        sync.Mutex
	callCount int
	calls     []string
}

// Fetch returns the canned response or error for addr.
func (f *FakeFetcher) Fetch(_ context.Context, addr string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++
	f.calls = append(f.calls, addr)

	if err, ok := f.Errors[addr]; ok {
		return nil, err
	}
	raw, ok := f.Responses[addr]
	if !ok {
		return nil, &ConnError{Op: "dial", Addr: addr, Err: fmt.Errorf("connection refused")}
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Reset clears all state so the fake can be reused between sub-tests.
func (f *FakeFetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Responses = nil
	f.Errors = nil
	f.callCount = 0
	f.calls = nil
}

// CallCount returns how many times Fetch has been called.
func (f *FakeFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// Calls returns the addresses passed to Fetch, in call order.
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// EncodeStatus renders fields the way a NIS sends them: every line is
// prefixed with its two-byte length and ends in a newline, and the stream
// is closed by the sentinel.
func EncodeStatus(fields ...Field) []byte {
	var out []byte
	for i, f := range fields {
		line := fmt.Sprintf("%-9s: %s", f.Key, f.Value)
		if i == len(fields)-1 {
			// apcupsd pads the final line, which produces the sentinel.
			line += "  "
		}
		line += "\n"
		out = binary.BigEndian.AppendUint16(out, uint16(len(line)))
		out = append(out, line...)
	}
	return append(out, 0, 0)
}
