// Package mpc holds the parameter vectors handed to the predictive
// controller and the tracking objective it minimises.
package mpc

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/sim"
)

// Vector lengths at the solver boundary.
const (
	NumWeights    = 7
	NumTargets    = 6
	NumObjective  = drive.NumParameters + NumWeights + NumTargets
	stateCommands = drive.NumCommand
)

var ErrVectorLength = errors.New("mpc: wrong vector length")

// Weights scale the tracking error of each state component. Motor applies
// uniformly to the four powers.
type Weights struct {
	Position drive.Planar `yaml:"position"`
	Velocity drive.Planar `yaml:"velocity"`
	Motor    float64      `yaml:"motor"`
}

func (w Weights) ToArray() [NumWeights]float64 {
	p, v := w.Position.ToArray(), w.Velocity.ToArray()
	return [NumWeights]float64{p[0], p[1], p[2], v[0], v[1], v[2], w.Motor}
}

func WeightsFromArray(a [NumWeights]float64) Weights {
	return Weights{
		Position: drive.PlanarFromArray([3]float64(a[:3])),
		Velocity: drive.PlanarFromArray([3]float64(a[3:6])),
		Motor:    a[6],
	}
}

// ToStateArray aligns the weights with drive.RobotState.ToArray.
func (w Weights) ToStateArray() [drive.NumState]float64 {
	var out [drive.NumState]float64
	for i := 0; i < stateCommands; i++ {
		out[i] = w.Motor
	}
	p, v := w.Position.ToArray(), w.Velocity.ToArray()
	copy(out[4:7], p[:])
	copy(out[7:], v[:])
	return out
}

// Targets is the desired position and velocity. Powers are driven towards
// zero.
type Targets struct {
	Position drive.Planar `yaml:"position"`
	Velocity drive.Planar `yaml:"velocity"`
}

func (t Targets) ToArray() [NumTargets]float64 {
	p, v := t.Position.ToArray(), t.Velocity.ToArray()
	return [NumTargets]float64{p[0], p[1], p[2], v[0], v[1], v[2]}
}

func TargetsFromArray(a [NumTargets]float64) Targets {
	return Targets{
		Position: drive.PlanarFromArray([3]float64(a[:3])),
		Velocity: drive.PlanarFromArray([3]float64(a[3:])),
	}
}

func (t Targets) ToStateArray() [drive.NumState]float64 {
	return drive.RobotState{Position: t.Position, Velocity: t.Velocity}.ToArray()
}

// OptimisationParameters is everything the solver needs per stage.
type OptimisationParameters struct {
	Parameters drive.Parameters
	Weights    Weights
	Targets    Targets
}

func (o OptimisationParameters) ToArray() [NumObjective]float64 {
	var out [NumObjective]float64
	p, w, t := o.Parameters.ToArray(), o.Weights.ToArray(), o.Targets.ToArray()
	n := copy(out[:], p[:])
	n += copy(out[n:], w[:])
	copy(out[n:], t[:])
	return out
}

func OptimisationParametersFromArray(a [NumObjective]float64) OptimisationParameters {
	const w0, t0 = drive.NumParameters, drive.NumParameters + NumWeights
	return OptimisationParameters{
		Parameters: drive.ParametersFromArray([drive.NumParameters]float64(a[:w0])),
		Weights:    WeightsFromArray([NumWeights]float64(a[w0:t0])),
		Targets:    TargetsFromArray([NumTargets]float64(a[t0:])),
	}
}

// OptimisationParametersFromSlice checks the length before converting.
func OptimisationParametersFromSlice(s []float64) (OptimisationParameters, error) {
	if len(s) != NumObjective {
		return OptimisationParameters{}, errors.Wrapf(ErrVectorLength, "got %d, want %d", len(s), NumObjective)
	}
	return OptimisationParametersFromArray([NumObjective]float64(s)), nil
}

// LeastSquaresObjective is the weighted deviation of state from the target,
// one entry per state component.
func (o OptimisationParameters) LeastSquaresObjective(state drive.RobotState) [drive.NumState]float64 {
	s, t, w := state.ToArray(), o.Targets.ToStateArray(), o.Weights.ToStateArray()
	var out [drive.NumState]float64
	for i := range out {
		out[i] = (s[i] - t[i]) * w[i]
	}
	return out
}

// Objective is the sum of squares of LeastSquaresObjective.
func (o OptimisationParameters) Objective(state drive.RobotState) float64 {
	e := o.LeastSquaresObjective(state)
	return floats.Dot(e[:], e[:])
}

// Predict rolls commands forward from start with the model built from
// o.Parameters and sums the stage objective over the predicted states,
// start excluded. Velocities are scored in the world frame. Commands take
// effect one step late, as in recorded data.
func (o OptimisationParameters) Predict(ctx context.Context, start drive.RobotState, commands []drive.RobotCommand) (float64, error) {
	inputs := make([]sim.Input, len(commands)+1)
	for i, c := range commands {
		inputs[i] = sim.Input{Command: c, Voltage: o.Parameters.BatteryVoltage}
	}
	inputs[len(commands)].Voltage = o.Parameters.BatteryVoltage

	res, err := sim.New(drive.NewModel(o.Parameters)).Rollout(ctx, start, inputs)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for i := 1; i < res.Len(); i++ {
		state := drive.RobotState{
			Command:  commands[i-1],
			Position: res.Position[i],
			Velocity: res.Velocity[i].Rotate(res.Position[i].Angle),
		}
		total += o.Objective(state)
	}
	return total, nil
}
