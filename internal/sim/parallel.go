package sim

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/mecsim/internal/telemetry"
)

// Batch replays many samples concurrently through one Simulator.
type Batch struct {
	base    *Simulator
	workers int
}

// NewBatch limits concurrency to workers; zero or less means one goroutine
// per sample.
func NewBatch(s *Simulator, workers int) *Batch {
	return &Batch{base: s, workers: workers}
}

// Run returns results in sample order. The first failure cancels the rest.
func (b *Batch) Run(ctx context.Context, samples []*telemetry.Sample) ([]*Result, error) {
	results := make([]*Result, len(samples))

	g, ctx := errgroup.WithContext(ctx)
	if b.workers > 0 {
		g.SetLimit(b.workers)
	}
	for i, sample := range samples {
		g.Go(func() error {
			res, err := b.base.Run(ctx, sample)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
