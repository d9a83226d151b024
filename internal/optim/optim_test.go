package optim

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/san-kum/mecsim/internal/drive"
)

func quadratic(ctx context.Context, p drive.Parameters) (float64, error) {
	dm, dk := p.RobotMass-10, p.MotorConstantT-0.3
	return dm*dm + 4*dk*dk, nil
}

func quadraticGradient(ctx context.Context, p drive.Parameters, names []string) (map[string]float64, error) {
	all := map[string]float64{
		"robot_mass":       2 * (p.RobotMass - 10),
		"motor_constant_t": 8 * (p.MotorConstantT - 0.3),
	}
	out := make(map[string]float64, len(names))
	for _, n := range names {
		out[n] = all[n]
	}
	return out, nil
}

func TestFitterConverges(t *testing.T) {
	f := NewFitter([]string{"robot_mass", "motor_constant_t"}, quadratic, quadraticGradient, zaptest.NewLogger(t).Sugar())
	f.LearningRate = 0.1
	f.Iterations = 300

	var progress []Progress
	f.Observer = func(p Progress) { progress = append(progress, p) }

	res, err := f.Fit(context.Background(), drive.Default())
	require.NoError(t, err)

	assert.InDelta(t, 10, res.Params.RobotMass, 1e-3)
	assert.InDelta(t, 0.3, res.Params.MotorConstantT, 1e-3)
	assert.Less(t, res.Cost, 1e-6)
	// untouched parameters keep their starting values
	assert.Equal(t, drive.Default().WheelMoment, res.Params.WheelMoment)

	require.NotEmpty(t, progress)
	assert.True(t, progress[len(progress)-1].Done)
	for i := 1; i < len(progress)-1; i++ {
		assert.LessOrEqual(t, progress[i].Cost, progress[i-1].Cost)
	}
}

func TestFitterKeepsParametersNonNegative(t *testing.T) {
	cost := func(_ context.Context, p drive.Parameters) (float64, error) {
		d := p.RobotMass + 5
		return d * d, nil
	}
	grad := func(_ context.Context, p drive.Parameters, _ []string) (map[string]float64, error) {
		return map[string]float64{"robot_mass": 2 * (p.RobotMass + 5)}, nil
	}
	f := NewFitter([]string{"robot_mass"}, cost, grad, zaptest.NewLogger(t).Sugar())
	f.LearningRate = 0.5

	res, err := f.Fit(context.Background(), drive.Default())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Params.RobotMass)
	assert.True(t, res.Converged)
}

func TestFitterErrors(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	_, err := NewFitter(nil, quadratic, quadraticGradient, logger).Fit(context.Background(), drive.Default())
	assert.Error(t, err)

	_, err = NewFitter([]string{"mass"}, quadratic, quadraticGradient, logger).Fit(context.Background(), drive.Default())
	assert.ErrorIs(t, err, drive.ErrUnknownParameter)

	boom := errors.New("boom")
	failing := func(context.Context, drive.Parameters, []string) (map[string]float64, error) { return nil, boom }
	_, err = NewFitter([]string{"robot_mass"}, quadratic, failing, logger).Fit(context.Background(), drive.Default())
	assert.ErrorIs(t, err, boom)
}

func TestFitterRejectsNonFiniteGradient(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"nan", math.NaN()},
		{"inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grad := func(context.Context, drive.Parameters, []string) (map[string]float64, error) {
				return map[string]float64{"robot_mass": tt.value}, nil
			}
			res, err := NewFitter([]string{"robot_mass"}, quadratic, grad, zaptest.NewLogger(t).Sugar()).
				Fit(context.Background(), drive.Default())
			assert.ErrorIs(t, err, ErrNonFiniteGradient)
			assert.False(t, res.Converged)
			assert.Equal(t, drive.Default(), res.Params)
		})
	}
}

func TestGridSearch(t *testing.T) {
	calls := 0
	cost := func(_ context.Context, p drive.Parameters) (float64, error) {
		calls++
		dm, df := p.RobotMass-12, p.BRWheelFriction-0.1
		return dm*dm + df*df, nil
	}
	g := NewGridSearch([]Axis{
		{Name: "robot_mass", Values: []float64{10, 12, 14}},
		{Name: drive.WheelFriction, Values: []float64{0, 0.1}},
	}, zaptest.NewLogger(t).Sugar())
	require.Equal(t, 6, g.Size())

	best, c, err := g.Search(context.Background(), drive.Default(), cost)
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
	assert.Zero(t, c)
	assert.Equal(t, 12.0, best.RobotMass)
	friction, err := best.Get(drive.WheelFriction)
	require.NoError(t, err)
	assert.Equal(t, 0.1, friction)
}

func TestGridSearchRejects(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	_, _, err := NewGridSearch([]Axis{{Name: "colour", Values: []float64{1}}}, logger).
		Search(context.Background(), drive.Default(), quadratic)
	assert.ErrorIs(t, err, drive.ErrUnknownParameter)

	_, _, err = NewGridSearch([]Axis{{Name: "robot_mass"}}, logger).
		Search(context.Background(), drive.Default(), quadratic)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := func(ctx context.Context, _ drive.Parameters) (float64, error) { return 0, ctx.Err() }
	_, _, err = NewGridSearch([]Axis{{Name: "robot_mass", Values: []float64{1, 2}}}, logger).
		Search(ctx, drive.Default(), cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
