// Package ident scores drive parameters against recorded trajectories and
// estimates the sensitivity of that score to each parameter.
package ident

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/dynamo"
	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// Sentinel is the cost reported for parameter sets the model cannot
// simulate. It is finite so optimizers can still compare against it.
const Sentinel = 1e10

// Objective scores one sample under one parameter set. Implementations must
// be safe for concurrent use.
type Objective func(ctx context.Context, sample *telemetry.Sample, p drive.Parameters) (float64, error)

// Cost simulates sample under p and returns the sum of squared velocity
// errors over the x, y and angular channels.
func Cost(ctx context.Context, sample *telemetry.Sample, p drive.Parameters) (float64, error) {
	res, err := sim.New(drive.NewModel(p)).Run(ctx, sample)
	if err != nil {
		return 0, err
	}
	return SquaredError(sample, res), nil
}

// SquaredError compares a simulation with the sample it replayed.
func SquaredError(sample *telemetry.Sample, res *sim.Result) float64 {
	n := res.Len()
	simulated, diff := make([]float64, n), make([]float64, n)
	total := 0.0
	for _, ch := range []struct {
		measured []float64
		pick     func(drive.Planar) float64
	}{
		{sample.XVelocity, func(v drive.Planar) float64 { return v.X }},
		{sample.YVelocity, func(v drive.Planar) float64 { return v.Y }},
		{sample.AngularVelocity, func(v drive.Planar) float64 { return v.Angle }},
	} {
		for i, v := range res.Velocity {
			simulated[i] = ch.pick(v)
		}
		floats.SubTo(diff, simulated, ch.measured[:n])
		total += floats.Dot(diff, diff)
	}
	return total
}

// IsNumericFault reports whether err came from the model becoming
// ill-posed rather than from bad input or cancellation.
func IsNumericFault(err error) bool {
	var simErr *dynamo.SimulationError
	return errors.As(err, &simErr) ||
		errors.Is(err, dynamo.ErrSingularMatrix) ||
		errors.Is(err, dynamo.ErrInvalidState)
}

// Safe wraps an objective so numeric faults, panics and non-finite scores
// become Sentinel. Cancellation and data errors are still returned.
func Safe(obj Objective) Objective {
	return func(ctx context.Context, sample *telemetry.Sample, p drive.Parameters) (cost float64, err error) {
		defer func() {
			if r := recover(); r != nil {
				cost, err = Sentinel, nil
			}
		}()
		cost, err = obj(ctx, sample, p)
		switch {
		case err == nil && (math.IsNaN(cost) || math.IsInf(cost, 0)):
			return Sentinel, nil
		case err != nil && IsNumericFault(err):
			return Sentinel, nil
		}
		return cost, err
	}
}

// SafeCost is Cost behind Safe.
var SafeCost = Safe(Cost)
