package ident

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// DefaultStep is the central-difference perturbation.
const DefaultStep = 1e-4

// GradientEstimator averages central-difference derivatives of an objective
// over many samples. Every (parameter, sample) pair is an independent job on
// a bounded worker pool.
type GradientEstimator struct {
	Objective Objective
	Step      float64
	Workers   int

	logger *zap.SugaredLogger
}

// NewGradientEstimator uses SafeCost, DefaultStep and one worker per CPU.
func NewGradientEstimator(logger *zap.SugaredLogger) *GradientEstimator {
	return &GradientEstimator{
		Objective: SafeCost,
		Step:      DefaultStep,
		Workers:   runtime.NumCPU(),
		logger:    logger,
	}
}

// Gradient returns d(cost)/d(name) for each name, averaged over samples.
// Grouped friction names shift every member of the group together.
func (g *GradientEstimator) Gradient(ctx context.Context, samples []*telemetry.Sample, p drive.Parameters, names []string) (map[string]float64, error) {
	if len(samples) == 0 {
		return nil, errors.New("ident: no samples")
	}
	if g.Step <= 0 {
		return nil, errors.Errorf("ident: step must be positive, got %g", g.Step)
	}

	type pair struct{ minus, plus drive.Parameters }
	perturbed := make([]pair, len(names))
	for j, name := range names {
		minus, err := p.Perturb(name, -g.Step)
		if err != nil {
			return nil, err
		}
		plus, err := p.Perturb(name, g.Step)
		if err != nil {
			return nil, err
		}
		perturbed[j] = pair{minus, plus}
	}

	partials := make([][]float64, len(names))
	for j := range partials {
		partials[j] = make([]float64, len(samples))
	}

	eg, ctx := errgroup.WithContext(ctx)
	if g.Workers > 0 {
		eg.SetLimit(g.Workers)
	}
	for j := range names {
		for k, sample := range samples {
			eg.Go(func() error {
				lo, err := g.Objective(ctx, sample, perturbed[j].minus)
				if err != nil {
					return err
				}
				hi, err := g.Objective(ctx, sample, perturbed[j].plus)
				if err != nil {
					return err
				}
				partials[j][k] = (hi - lo) / (2 * g.Step)
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	grad := make(map[string]float64, len(names))
	for j, name := range names {
		grad[name] = stat.Mean(partials[j], nil)
		g.logger.Debugw("partial derivative", "param", name, "value", grad[name], "samples", len(samples))
	}
	return grad, nil
}

// TotalCost sums obj over samples using up to workers goroutines.
func TotalCost(ctx context.Context, obj Objective, samples []*telemetry.Sample, p drive.Parameters, workers int) (float64, error) {
	costs := make([]float64, len(samples))
	eg, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		eg.SetLimit(workers)
	}
	for k, sample := range samples {
		eg.Go(func() error {
			c, err := obj(ctx, sample, p)
			costs[k] = c
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}
	return floats.Sum(costs), nil
}
