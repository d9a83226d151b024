package sim

import (
	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/kinematics"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// Input is what drives one step: the commanded powers and the battery
// voltage measured alongside them.
type Input struct {
	Command drive.RobotCommand
	Voltage float64
}

// InputsOf extracts the recorded inputs of a sample, clamping powers.
func InputsOf(s *telemetry.Sample) []Input {
	in := make([]Input, s.Len())
	for i := range in {
		in[i] = Input{Command: s.Command(i).Clamp(), Voltage: s.BatteryVoltage[i]}
	}
	return in
}

// Result is a simulated trajectory. Position is in the world frame; Velocity
// has been rotated by the negative simulated heading so it is directly
// comparable with recorded telemetry.
type Result struct {
	Time     []float64
	Inputs   []Input
	Position []drive.Planar
	Velocity []drive.Planar

	// WheelVelocity is R applied to Velocity at each step.
	WheelVelocity [][kinematics.NumJoints]float64
	// Torque is the net torque of the four driven wheels at each step.
	Torque [][kinematics.NumWheels]float64
}

func (r *Result) Len() int {
	return len(r.Time)
}

// ToSample lays the simulated trajectory out as telemetry, with
// accelerations from finite differences of the simulated velocity.
func (r *Result) ToSample(name string) *telemetry.Sample {
	s := &telemetry.Sample{Name: name}
	for i := 0; i < r.Len(); i++ {
		in, p, v := r.Inputs[i], r.Position[i], r.Velocity[i]
		s.Append(telemetry.Row{
			r.Time[i], in.Voltage,
			p.X, p.Y, p.Angle,
			v.X, v.Y, v.Angle,
			0, 0, 0,
			in.Command.FL, in.Command.FR, in.Command.BL, in.Command.BR,
		})
	}
	if s.Len() > 1 {
		dt := s.Time[1] - s.Time[0]
		s.XAcceleration = telemetry.Gradient(s.XVelocity, dt)
		s.YAcceleration = telemetry.Gradient(s.YVelocity, dt)
		s.AngularAcceleration = telemetry.Gradient(s.AngularVelocity, dt)
	}
	return s
}
