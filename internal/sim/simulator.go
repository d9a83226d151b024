// Package sim replays recorded commands through the drive model.
package sim

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/dynamo"
	"github.com/san-kum/mecsim/internal/integrators"
	"github.com/san-kum/mecsim/internal/kinematics"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// Simulator integrates a drive model with fixed-step RK4. It holds no
// per-run state and may be shared between goroutines.
type Simulator struct {
	model *drive.Model
	dt    float64
}

func New(model *drive.Model) *Simulator {
	return &Simulator{model: model, dt: telemetry.T}
}

func (s *Simulator) Model() *drive.Model { return s.model }

// Rollout simulates len(inputs) steps from start. The transition into step i
// uses inputs[i-1], so the command recorded at a step only takes effect on
// the following one. start.Command is ignored.
func (s *Simulator) Rollout(ctx context.Context, start drive.RobotState, inputs []Input) (*Result, error) {
	n := len(inputs)
	if n == 0 {
		return nil, errors.New("sim: no inputs")
	}

	res := &Result{
		Time:          make([]float64, n),
		Inputs:        inputs,
		Position:      make([]drive.Planar, n),
		Velocity:      make([]drive.Planar, n),
		WheelVelocity: make([][kinematics.NumJoints]float64, n),
		Torque:        make([][kinematics.NumWheels]float64, n),
	}

	integ := integrators.NewRK4()
	x := dynamo.State{
		start.Position.X, start.Position.Y, start.Position.Angle,
		start.Velocity.X, start.Velocity.Y, start.Velocity.Angle,
	}
	u := make(dynamo.Control, drive.NumCommand+1)
	world := make([]drive.Planar, n)
	res.Position[0] = start.Position
	world[0] = start.Velocity

	for i := 1; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		prev := inputs[i-1]
		powers := prev.Command.ToArray()
		copy(u, powers[:])
		u[drive.NumCommand] = prev.Voltage

		t := float64(i-1) * s.dt
		next, err := integ.Step(s.model, x, u, t, s.dt)
		if err != nil {
			return nil, &dynamo.SimulationError{Step: i, Time: t + s.dt, State: x.Clone(), Wrapped: err}
		}
		x = next
		res.Position[i] = drive.Planar{X: x[0], Y: x[1], Angle: x[2]}
		world[i] = drive.Planar{X: x[3], Y: x[4], Angle: x[5]}
	}

	for i := 0; i < n; i++ {
		res.Time[i] = float64(i) * s.dt
		chassis := world[i].Rotate(-res.Position[i].Angle)
		res.Velocity[i] = chassis
		res.WheelVelocity[i] = kinematics.JointVelocity(chassis.X, chassis.Y, chassis.Angle)
		torque := s.model.JointTorque(chassis, inputs[i].Command, inputs[i].Voltage)
		copy(res.Torque[i][:], torque[:kinematics.NumWheels])
	}
	return res, nil
}

// Run replays a recorded sample, starting from its first position and
// velocity. Result times are the sample's.
func (s *Simulator) Run(ctx context.Context, sample *telemetry.Sample) (*Result, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	start := drive.RobotState{Position: sample.Position(0), Velocity: sample.Velocity(0)}
	res, err := s.Rollout(ctx, start, InputsOf(sample))
	if err != nil {
		return nil, errors.Wrapf(err, "sample %q", sample.Name)
	}
	copy(res.Time, sample.Time)
	return res, nil
}
