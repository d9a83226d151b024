package mpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mecsim/internal/drive"
)

func example() OptimisationParameters {
	return OptimisationParameters{
		Parameters: drive.Default(),
		Weights: Weights{
			Position: drive.Planar{X: 1, Y: 2, Angle: 3},
			Velocity: drive.Planar{X: 4, Y: 5, Angle: 6},
			Motor:    0.5,
		},
		Targets: Targets{
			Position: drive.Planar{X: 1, Y: -1, Angle: 0.5},
			Velocity: drive.Planar{X: 0.2},
		},
	}
}

func TestVectorLayout(t *testing.T) {
	o := example()

	assert.Equal(t, [NumWeights]float64{1, 2, 3, 4, 5, 6, 0.5}, o.Weights.ToArray())
	assert.Equal(t, [drive.NumState]float64{0.5, 0.5, 0.5, 0.5, 1, 2, 3, 4, 5, 6}, o.Weights.ToStateArray())
	assert.Equal(t, [drive.NumState]float64{0, 0, 0, 0, 1, -1, 0.5, 0.2, 0, 0}, o.Targets.ToStateArray())

	a := o.ToArray()
	assert.Equal(t, 32, len(a))
	assert.Equal(t, drive.Default().MotorConstantE, a[0])
	assert.Equal(t, 12.0, a[18])
	assert.Equal(t, 1.0, a[19])
	assert.Equal(t, 0.5, a[25])
	assert.Equal(t, 1.0, a[26])
	assert.Equal(t, 0.2, a[29])

	assert.Equal(t, o, OptimisationParametersFromArray(a))
	assert.Equal(t, o.Weights, WeightsFromArray(o.Weights.ToArray()))
	assert.Equal(t, o.Targets, TargetsFromArray(o.Targets.ToArray()))

	back, err := OptimisationParametersFromSlice(a[:])
	require.NoError(t, err)
	assert.Equal(t, o, back)

	_, err = OptimisationParametersFromSlice(a[:31])
	assert.ErrorIs(t, err, ErrVectorLength)
}

func TestObjective(t *testing.T) {
	o := example()
	state := drive.RobotState{
		Command:  drive.RobotCommand{FL: 1, FR: -1},
		Position: drive.Planar{X: 2, Y: -1, Angle: 0.5},
		Velocity: drive.Planar{X: 0.2, Y: 1},
	}

	e := o.LeastSquaresObjective(state)
	assert.Equal(t, [drive.NumState]float64{0.5, -0.5, 0, 0, 1, 0, 0, 0, 5, 0}, e)
	assert.Equal(t, 0.25+0.25+1+25, o.Objective(state))

	onTarget := drive.RobotState{Position: o.Targets.Position, Velocity: o.Targets.Velocity}
	assert.Zero(t, o.Objective(onTarget))
}

func TestPredict(t *testing.T) {
	o := example()
	o.Targets = Targets{Velocity: drive.Planar{X: 0.5}}
	o.Weights = Weights{Velocity: drive.Planar{X: 1, Y: 1, Angle: 1}}
	ctx := context.Background()

	idle := make([]drive.RobotCommand, 50)
	forward := make([]drive.RobotCommand, 50)
	for i := range forward {
		forward[i] = drive.RobotCommand{FL: 0.4, FR: 0.4, BL: 0.4, BR: 0.4}
	}

	idleCost, err := o.Predict(ctx, drive.RobotState{}, idle)
	require.NoError(t, err)
	assert.InDelta(t, 50*0.25, idleCost, 1e-12)

	forwardCost, err := o.Predict(ctx, drive.RobotState{}, forward)
	require.NoError(t, err)
	assert.Less(t, forwardCost, idleCost)

	none, err := o.Predict(ctx, drive.RobotState{}, nil)
	require.NoError(t, err)
	assert.Zero(t, none)
}
