package operation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/browser"
)

// Pool holds N long-lived browser workers (spec.md §5: "N independent
// workers run in parallel ... each worker owns one browser process bound
// to 9222 + worker_id"). The HTTP server checks a worker out for the
// duration of one scan and returns it when the scan ends; Acquire blocks
// if every worker is busy.
type Pool struct {
	slots   chan *browser.Worker
	workers []*browser.Worker
}

// NewPool launches n browser workers with sequential worker IDs starting
// at 0 and returns a Pool ready to hand them out. On any failure the
// workers already launched are released before returning the error.
func NewPool(ctx context.Context, n int, opts browser.Options, log zerolog.Logger) (*Pool, error) {
	p := &Pool{slots: make(chan *browser.Worker, n)}

	for i := 0; i < n; i++ {
		workerOpts := opts
		workerOpts.WorkerID = i
		w, err := browser.Acquire(ctx, workerOpts, log)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("operation: launch worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
		p.slots <- w
	}

	return p, nil
}

// Acquire blocks until a worker is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*browser.Worker, error) {
	select {
	case w := <-p.slots:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns w to the pool for reuse by the next scan.
func (p *Pool) Release(w *browser.Worker) {
	p.slots <- w
}

// Close releases every browser process the pool launched.
func (p *Pool) Close() {
	for _, w := range p.workers {
		w.Release()
	}
	p.workers = nil
}
