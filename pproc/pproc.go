// Package pproc runs a function over a slice with a bounded number of
// goroutines, keeping results in input order.
package pproc

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Option allows configuration of the Processor
type Option func(*Processor)

// WithWorkers sets the number of worker goroutines
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.numWorkers = n
		}
	}
}

// Processor holds the settings for parallel processing.
type Processor struct {
	numWorkers int
}

// NewProcessor creates a new Processor, using all CPUs by default.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{numWorkers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers returns the number of worker goroutines.
func (p *Processor) Workers() int { return p.numWorkers }

// Map applies fn to every item in parallel. The i-th result belongs to the
// i-th item, regardless of completion order. Only context cancellation stops
// the processing early; fn reports failures through its result.
func Map[T, R any](ctx context.Context, p *Processor, items []T, fn func(T) R) ([]R, error) {
	results := make([]R, len(items))
	workChan := make(chan int, p.numWorkers*2)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(workChan)
		for i := range items {
			select {
			case workChan <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < p.numWorkers; i++ {
		g.Go(func() error {
			for j := range workChan {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				results[j] = fn(items[j])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
