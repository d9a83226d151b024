package optim

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mecsim/internal/drive"
)

var ErrNonFiniteGradient = errors.New("optim: gradient is not finite")

// GradientFunc returns the partial derivative of the cost for each name.
type GradientFunc func(ctx context.Context, p drive.Parameters, names []string) (map[string]float64, error)

// Progress is reported after every accepted or final iteration.
type Progress struct {
	Iteration int
	Cost      float64
	StepSize  float64
	Params    drive.Parameters
	Gradient  map[string]float64
	Done      bool
}

// FitResult is the outcome of Fitter.Fit.
type FitResult struct {
	Params     drive.Parameters
	Cost       float64
	Iterations int
	Converged  bool
}

// Fitter runs projected gradient descent with a backtracking step over the
// named parameters, keeping every parameter non-negative.
type Fitter struct {
	Names        []string
	LearningRate float64
	Iterations   int
	Tolerance    float64
	// MaxHalvings bounds the backtracking line search per iteration.
	MaxHalvings int

	Cost     CostFunc
	Gradient GradientFunc
	Observer func(Progress)

	logger *zap.SugaredLogger
}

func NewFitter(names []string, cost CostFunc, grad GradientFunc, logger *zap.SugaredLogger) *Fitter {
	return &Fitter{
		Names:        names,
		LearningRate: 1e-3,
		Iterations:   100,
		Tolerance:    1e-6,
		MaxHalvings:  12,
		Cost:         cost,
		Gradient:     grad,
		logger:       logger,
	}
}

func (f *Fitter) report(p Progress) {
	if f.Observer != nil {
		f.Observer(p)
	}
}

func (f *Fitter) Fit(ctx context.Context, start drive.Parameters) (FitResult, error) {
	if len(f.Names) == 0 {
		return FitResult{}, errors.New("optim: no parameters to fit")
	}
	for _, name := range f.Names {
		if !drive.IsParameter(name) {
			return FitResult{}, errors.Wrapf(drive.ErrUnknownParameter, "%q", name)
		}
	}

	p := clampNonNegative(start)
	cost, err := f.Cost(ctx, p)
	if err != nil {
		return FitResult{}, err
	}
	f.logger.Infow("fit start", "cost", cost, "params", f.Names)

	step := f.LearningRate
	res := FitResult{Params: p, Cost: cost}
	for it := 1; it <= f.Iterations; it++ {
		grad, err := f.Gradient(ctx, p, f.Names)
		if err != nil {
			return res, err
		}
		g := make([]float64, len(f.Names))
		for j, name := range f.Names {
			g[j] = grad[name]
		}
		norm := floats.Norm(g, 2)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return res, errors.Wrapf(ErrNonFiniteGradient, "iteration %d", it)
		}
		if norm < f.Tolerance {
			res.Converged = true
			break
		}

		accepted := false
		for h := 0; h <= f.MaxHalvings; h++ {
			candidate, err := descend(p, f.Names, g, step)
			if err != nil {
				return res, err
			}
			c, err := f.Cost(ctx, candidate)
			if err != nil {
				return res, err
			}
			if c < cost {
				p, cost, accepted = candidate, c, true
				break
			}
			step /= 2
		}
		res.Iterations = it
		if !accepted {
			res.Converged = true
			break
		}

		res.Params, res.Cost = p, cost
		f.logger.Debugw("fit iteration", "iteration", it, "cost", cost, "step", step)
		f.report(Progress{Iteration: it, Cost: cost, StepSize: step, Params: p, Gradient: grad})
		// let the step recover after a successful move
		step *= 1.5
	}

	res.Params, res.Cost = p, cost
	f.logger.Infow("fit done", "cost", cost, "iterations", res.Iterations, "converged", res.Converged)
	f.report(Progress{Iteration: res.Iterations, Cost: cost, StepSize: step, Params: p, Done: true})
	return res, nil
}

func descend(p drive.Parameters, names []string, g []float64, step float64) (drive.Parameters, error) {
	var err error
	for j, name := range names {
		if p, err = p.Perturb(name, -step*g[j]); err != nil {
			return p, err
		}
	}
	return clampNonNegative(p), nil
}

func clampNonNegative(p drive.Parameters) drive.Parameters {
	a := p.ToArray()
	for i := range a {
		a[i] = math.Max(0, a[i])
	}
	return drive.ParametersFromArray(a)
}
