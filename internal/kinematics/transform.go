// Package kinematics builds the constant transform between chassis velocity
// and the spin rates of the four mecanum wheels and their contact rollers.
package kinematics

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Robot geometry in metres.
const (
	ForwardsAxis = 0.214 / 2 // half wheelbase
	SidewaysAxis = 0.289 / 2 // half track
	WheelRadius  = 0.048
	RollerRadius = 0.0097
)

const (
	NumWheels = 4
	// NumJoints counts the wheel rows followed by the roller rows of R.
	NumJoints = 2 * NumWheels
)

// Geometry describes a mecanum chassis. Wheels are ordered fl, fr, bl, br.
type Geometry struct {
	ForwardsAxis float64
	SidewaysAxis float64
	WheelRadius  float64
	RollerRadius float64
}

func DefaultGeometry() Geometry {
	return Geometry{
		ForwardsAxis: ForwardsAxis,
		SidewaysAxis: SidewaysAxis,
		WheelRadius:  WheelRadius,
		RollerRadius: RollerRadius,
	}
}

// RollerAngles are the fixed roller angles of fl, fr, bl, br.
var RollerAngles = [NumWheels]float64{math.Pi / 4, -math.Pi / 4, -math.Pi / 4, math.Pi / 4}

// Offsets returns the signed per-wheel half-axis offsets: s along the
// forwards axis and d along the sideways axis.
func (g Geometry) Offsets() (s, d [NumWheels]float64) {
	s = [NumWheels]float64{g.ForwardsAxis, g.ForwardsAxis, -g.ForwardsAxis, -g.ForwardsAxis}
	d = [NumWheels]float64{g.SidewaysAxis, -g.SidewaysAxis, g.SidewaysAxis, -g.SidewaysAxis}
	return s, d
}

// Transform builds the 8x3 matrix R with wheel_roller_velocity = R * chassis_velocity.
// Rows 0-3 are wheel spin rates, rows 4-7 roller spin rates.
func (g Geometry) Transform() *mat.Dense {
	s, d := g.Offsets()
	r := mat.NewDense(NumJoints, 3, nil)
	for i, theta := range RollerAngles {
		sin, cos := math.Sincos(theta)

		// wheels carry all of the forwards motion
		b := -cos / sin
		r.SetRow(i, []float64{
			1 / g.WheelRadius,
			b / g.WheelRadius,
			(-d[i] + s[i]*b) / g.WheelRadius,
		})

		// rollers carry none of it
		r.SetRow(NumWheels+i, []float64{
			0,
			1 / sin / g.RollerRadius,
			s[i] / sin / g.RollerRadius,
		})
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultR    *mat.Dense
)

// R returns the process-wide transform for the default geometry. It is built
// on first use and must not be modified.
func R() mat.Matrix {
	defaultOnce.Do(func() {
		defaultR = DefaultGeometry().Transform()
	})
	return defaultR
}

// JointVelocity maps a chassis-frame velocity onto wheel and roller spin rates.
func JointVelocity(vx, vy, omega float64) [NumJoints]float64 {
	var out [NumJoints]float64
	r := R()
	for i := 0; i < NumJoints; i++ {
		out[i] = r.At(i, 0)*vx + r.At(i, 1)*vy + r.At(i, 2)*omega
	}
	return out
}
