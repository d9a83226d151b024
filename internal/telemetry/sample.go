// Package telemetry holds recorded drive trajectories on a fixed time base.
package telemetry

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/san-kum/mecsim/internal/drive"
)

// T is the sample period every trajectory is resampled to.
const T = 0.01

// stepTolerance bounds how far a time step may drift from T.
const stepTolerance = 1e-6

var (
	ErrLengthMismatch   = errors.New("telemetry: columns have different lengths")
	ErrNonMonotonicTime = errors.New("telemetry: time is not strictly increasing")
	ErrNonUniformStep   = errors.New("telemetry: time step differs from T")
	ErrTooShort         = errors.New("telemetry: sample needs at least two rows")
	ErrNonFinite        = errors.New("telemetry: non-finite value")
	ErrMissingColumn    = errors.New("telemetry: missing column")
)

// NumColumns is the width of a Row.
const NumColumns = 15

// ColumnNames is the Row layout, which is also the CSV header order.
var ColumnNames = [NumColumns]string{
	"time",
	"battery_voltage",
	"x_position",
	"y_position",
	"angle",
	"x_velocity",
	"y_velocity",
	"angular_velocity",
	"x_acceleration",
	"y_acceleration",
	"angular_acceleration",
	"fl",
	"fr",
	"bl",
	"br",
}

// Row is one time step of a Sample, laid out as ColumnNames.
type Row [NumColumns]float64

// Sample is a recorded trajectory. All columns share one length.
type Sample struct {
	Name string

	Time           []float64
	BatteryVoltage []float64

	XPosition []float64
	YPosition []float64
	Angle     []float64

	XVelocity       []float64
	YVelocity       []float64
	AngularVelocity []float64

	XAcceleration       []float64
	YAcceleration       []float64
	AngularAcceleration []float64

	FL, FR, BL, BR []float64
}

func (s *Sample) columns() [NumColumns]*[]float64 {
	return [NumColumns]*[]float64{
		&s.Time, &s.BatteryVoltage,
		&s.XPosition, &s.YPosition, &s.Angle,
		&s.XVelocity, &s.YVelocity, &s.AngularVelocity,
		&s.XAcceleration, &s.YAcceleration, &s.AngularAcceleration,
		&s.FL, &s.FR, &s.BL, &s.BR,
	}
}

// Column returns the named column, or nil if the name is unknown.
func (s *Sample) Column(name string) []float64 {
	cols := s.columns()
	for i, n := range ColumnNames {
		if n == name {
			return *cols[i]
		}
	}
	return nil
}

func (s *Sample) Len() int {
	return len(s.Time)
}

func (s *Sample) Row(i int) Row {
	var r Row
	for j, c := range s.columns() {
		r[j] = (*c)[i]
	}
	return r
}

func (s *Sample) Append(r Row) {
	for j, c := range s.columns() {
		*c = append(*c, r[j])
	}
}

// Slice returns rows [i, j) as a new Sample sharing backing arrays with s.
func (s *Sample) Slice(i, j int) *Sample {
	out := &Sample{Name: s.Name}
	src := s.columns()
	for k, c := range out.columns() {
		*c = (*src[k])[i:j]
	}
	return out
}

func (s *Sample) Command(i int) drive.RobotCommand {
	return drive.RobotCommand{FL: s.FL[i], FR: s.FR[i], BL: s.BL[i], BR: s.BR[i]}
}

func (s *Sample) Position(i int) drive.Planar {
	return drive.Planar{X: s.XPosition[i], Y: s.YPosition[i], Angle: s.Angle[i]}
}

func (s *Sample) Velocity(i int) drive.Planar {
	return drive.Planar{X: s.XVelocity[i], Y: s.YVelocity[i], Angle: s.AngularVelocity[i]}
}

// Validate checks the invariants the simulator relies on: equal column
// lengths, at least two rows, finite values and a uniform step of T.
func (s *Sample) Validate() error {
	n := s.Len()
	var err error
	for k, c := range s.columns() {
		if len(*c) != n {
			err = multierr.Append(err, errors.Wrapf(ErrLengthMismatch, "%s has %d rows, time has %d", ColumnNames[k], len(*c), n))
			continue
		}
		for i, v := range *c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				err = multierr.Append(err, errors.Wrapf(ErrNonFinite, "%s[%d]", ColumnNames[k], i))
				break
			}
		}
	}
	if n < 2 {
		err = multierr.Append(err, ErrTooShort)
	}
	for i := 1; i < n; i++ {
		dt := s.Time[i] - s.Time[i-1]
		if dt <= 0 {
			err = multierr.Append(err, errors.Wrapf(ErrNonMonotonicTime, "at row %d", i))
			break
		}
		if math.Abs(dt-T) > stepTolerance {
			err = multierr.Append(err, errors.Wrapf(ErrNonUniformStep, "row %d: step %g", i, dt))
			break
		}
	}
	if err != nil {
		return errors.Wrapf(err, "sample %q", s.Name)
	}
	return nil
}
