package telemetry

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/interp"
)

var (
	powerColumns      = []string{"fl", "fr", "bl", "br"}
	continuousColumns = []string{
		"battery_voltage",
		"x_position", "y_position", "angle",
		"x_velocity", "y_velocity", "angular_velocity",
	}
)

// Resample maps a raw, irregularly timed recording onto t = 0, T, 2T, ...
// strictly below the last recorded time. Powers are held from the most
// recent record (zero before the first one) and clamped to [-1, 1]; the
// other channels are interpolated with a natural cubic spline. Accelerations
// are recomputed from the resampled velocities.
func Resample(raw *Sample) (*Sample, error) {
	if raw.Len() < 2 {
		return nil, errors.Wrapf(ErrTooShort, "sample %q", raw.Name)
	}
	for i := 1; i < raw.Len(); i++ {
		if raw.Time[i] <= raw.Time[i-1] {
			return nil, errors.Wrapf(ErrNonMonotonicTime, "sample %q at row %d", raw.Name, i)
		}
	}

	tmax := raw.Time[raw.Len()-1]
	var grid []float64
	for i := 0; float64(i)*T < tmax; i++ {
		grid = append(grid, float64(i)*T)
	}
	if len(grid) < 2 {
		return nil, errors.Wrapf(ErrTooShort, "sample %q spans %gs", raw.Name, tmax)
	}

	out := &Sample{Name: raw.Name, Time: grid}
	cols := out.columns()
	for _, name := range powerColumns {
		*cols[columnIndex(name)] = holdPrevious(raw.Time, raw.Column(name), grid)
	}
	for _, name := range continuousColumns {
		ys, err := spline(raw.Time, raw.Column(name), grid)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %q column %s", raw.Name, name)
		}
		*cols[columnIndex(name)] = ys
	}

	out.XAcceleration = Gradient(out.XVelocity, T)
	out.YAcceleration = Gradient(out.YVelocity, T)
	out.AngularAcceleration = Gradient(out.AngularVelocity, T)
	return out, nil
}

func columnIndex(name string) int {
	for i, n := range ColumnNames {
		if n == name {
			return i
		}
	}
	panic("telemetry: unknown column " + name)
}

func holdPrevious(xs, ys, grid []float64) []float64 {
	out := make([]float64, len(grid))
	for i, t := range grid {
		k := sort.Search(len(xs), func(k int) bool { return xs[k] > t }) - 1
		if k < 0 {
			continue
		}
		out[i] = math.Max(-1, math.Min(1, ys[k]))
	}
	return out
}

// spline evaluates a natural cubic spline through (xs, ys) on grid, falling
// back to linear interpolation when the spline system cannot be solved.
// Points outside the data hold the nearest end value.
func spline(xs, ys, grid []float64) ([]float64, error) {
	var p interp.FittablePredictor = &interp.NaturalCubic{}
	if err := p.Fit(xs, ys); err != nil {
		p = &interp.PiecewiseLinear{}
		if err := p.Fit(xs, ys); err != nil {
			return nil, err
		}
	}
	out := make([]float64, len(grid))
	for i, t := range grid {
		out[i] = p.Predict(t)
	}
	return out, nil
}

// Gradient is the second-order central difference of f with spacing h,
// one-sided at the ends. f needs at least two entries.
func Gradient(f []float64, h float64) []float64 {
	n := len(f)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = (f[1] - f[0]) / h
	out[n-1] = (f[n-1] - f[n-2]) / h
	for i := 1; i < n-1; i++ {
		out[i] = (f[i+1] - f[i-1]) / (2 * h)
	}
	return out
}
