package apcupsd

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Result is the outcome of polling one target.
type Result struct {
	Target Target
	Record *Record
	Err    error
}

// Poller fetches and decodes status from NIS targets.
type Poller struct {
	Fetcher    Fetcher
	StripUnits bool

	// Concurrency caps how many targets are polled at once. Zero or less
	// polls every target in parallel; 1 polls them one after another.
	Concurrency int
}

// Poll fetches and decodes the status of a single target.
func (p *Poller) Poll(ctx context.Context, t Target) (*Record, error) {
	raw, err := p.Fetcher.Fetch(ctx, t.String())
	if err != nil {
		return nil, fmt.Errorf("fetching status from %s: %w", t, err)
	}
	rec, err := Decode(raw, p.StripUnits)
	if err != nil {
		return nil, fmt.Errorf("decoding status from %s: %w", t, err)
	}
	return rec, nil
}

// PollAll polls every target independently and returns one Result per
// target, in the order given. A failing target never affects the others.
func (p *Poller) PollAll(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	if len(targets) == 0 {
		return results
	}

	n := p.Concurrency
	if n <= 0 || n > len(targets) {
		n = len(targets)
	}

	wp := pool.New().WithMaxGoroutines(n)
	for i, t := range targets {
		i, t := i, t
		wp.Go(func() {
			rec, err := p.Poll(ctx, t)
			results[i] = Result{Target: t, Record: rec, Err: err}
		})
	}
	wp.Wait()
	return results
}
