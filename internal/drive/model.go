package drive

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/mecsim/internal/dynamo"
	"github.com/san-kum/mecsim/internal/kinematics"
)

// Model evaluates the drive equations of motion for one parameter set. The
// derived matrices are computed once in NewModel; a Model is safe for
// concurrent use.
type Model struct {
	params Parameters

	chassisMass *mat.DiagDense // M_r, 3x3
	jointMass   *mat.DiagDense // M_w, 8x8
	// reflected is Rᵀ M_w R, the joint inertia seen from the chassis frame.
	reflected *mat.Dense

	dynamicFriction     [kinematics.NumJoints]float64
	directionalFriction [3]float64
}

func NewModel(p Parameters) *Model {
	m := &Model{
		params: p,
		chassisMass: mat.NewDiagDense(3, []float64{
			p.RobotMass, p.RobotMass, p.RobotMoment,
		}),
		jointMass: mat.NewDiagDense(kinematics.NumJoints, []float64{
			p.WheelMoment, p.WheelMoment, p.WheelMoment, p.WheelMoment,
			p.RollerMoment, p.RollerMoment, p.RollerMoment, p.RollerMoment,
		}),
		dynamicFriction: [kinematics.NumJoints]float64{
			p.FLWheelFriction, p.FRWheelFriction, p.BLWheelFriction, p.BRWheelFriction,
			p.FLRollerFriction, p.FRRollerFriction, p.BLRollerFriction, p.BRRollerFriction,
		},
		directionalFriction: [3]float64{
			p.DirectionalFrictionX, p.DirectionalFrictionY, p.DirectionalFrictionAngle,
		},
	}

	r := kinematics.R()
	var tmp mat.Dense
	tmp.Mul(r.T(), m.jointMass)
	m.reflected = new(mat.Dense)
	m.reflected.Mul(&tmp, r)
	return m
}

func (m *Model) Parameters() Parameters { return m.params }

// ChassisMass is the diagonal mass/inertia matrix of the chassis.
func (m *Model) ChassisMass() mat.Matrix { return m.chassisMass }

// JointMass is the diagonal inertia matrix of the wheels and rollers.
func (m *Model) JointMass() mat.Matrix { return m.jointMass }

func rotation(psi float64) *mat.Dense {
	sin, cos := math.Sincos(psi)
	return mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})
}

// rotationDerivative is d/dt rotation(psi) given psi' = psidot.
func rotationDerivative(psi, psidot float64) *mat.Dense {
	sin, cos := math.Sincos(psi)
	return mat.NewDense(3, 3, []float64{
		-sin * psidot, -cos * psidot, 0,
		cos * psidot, -sin * psidot, 0,
		0, 0, 0,
	})
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// jointTorque combines the motor model with Coulomb friction. Rollers are
// passive and only see friction.
func (m *Model) jointTorque(joint [kinematics.NumJoints]float64, cmd RobotCommand, voltage float64) [kinematics.NumJoints]float64 {
	p := &m.params
	powers := cmd.ToArray()

	var torque [kinematics.NumJoints]float64
	for i := 0; i < kinematics.NumWheels; i++ {
		// applied voltage is assumed proportional to power; no gearing
		applied := voltage * powers[i]
		backEMF := joint[i] * p.MotorConstantE
		current := (applied - backEMF) / p.ArmatureResistance
		torque[i] = current * p.MotorConstantT
	}
	for i := range torque {
		torque[i] -= sign(joint[i]) * m.dynamicFriction[i]
	}
	return torque
}

// JointTorque is the net torque at each wheel and roller for a chassis-frame
// velocity.
func (m *Model) JointTorque(chassis Planar, cmd RobotCommand, voltage float64) [kinematics.NumJoints]float64 {
	return m.jointTorque(kinematics.JointVelocity(chassis.X, chassis.Y, chassis.Angle), cmd, voltage)
}

// NetTorque is the net torque at each wheel and roller in state s, using the
// configured battery voltage.
func (m *Model) NetTorque(s RobotState) [kinematics.NumJoints]float64 {
	return m.JointTorque(s.Velocity.Rotate(-s.Position.Angle), s.Command, m.params.BatteryVoltage)
}

// Acceleration returns the chassis acceleration in state s at the configured
// battery voltage.
func (m *Model) Acceleration(s RobotState) (Planar, error) {
	return m.AccelerationAt(s, m.params.BatteryVoltage)
}

// AccelerationAt solves H a = F - K v for the acceleration a, with
//
//	H = M_r + Rot Rᵀ M_w R Rotᵀ
//	K = Rot Rᵀ M_w R Rot'ᵀ
//	F = Rot (Rᵀ τ - sign(Rotᵀ v) f_dir)
func (m *Model) AccelerationAt(s RobotState, voltage float64) (Planar, error) {
	rot := rotation(s.Position.Angle)
	rotDot := rotationDerivative(s.Position.Angle, s.Velocity.Angle)
	v := mat.NewVecDense(3, []float64{s.Velocity.X, s.Velocity.Y, s.Velocity.Angle})

	var chassis mat.VecDense
	chassis.MulVec(rot.T(), v)

	var joint mat.VecDense
	joint.MulVec(kinematics.R(), &chassis)
	torque := m.jointTorque([kinematics.NumJoints]float64(joint.RawVector().Data), s.Command, voltage)

	var generalized mat.VecDense
	generalized.MulVec(kinematics.R().T(), mat.NewVecDense(kinematics.NumJoints, torque[:]))
	for i := 0; i < 3; i++ {
		drag := sign(chassis.AtVec(i)) * m.directionalFriction[i]
		generalized.SetVec(i, generalized.AtVec(i)-drag)
	}
	var force mat.VecDense
	force.MulVec(rot, &generalized)

	var rotJ, h, k mat.Dense
	rotJ.Mul(rot, m.reflected)
	h.Mul(&rotJ, rot.T())
	h.Add(&h, m.chassisMass)
	k.Mul(&rotJ, rotDot.T())

	var rhs mat.VecDense
	rhs.MulVec(&k, v)
	rhs.SubVec(&force, &rhs)

	var hInv mat.Dense
	if err := hInv.Inverse(&h); err != nil {
		return Planar{}, errors.Wrap(dynamo.ErrSingularMatrix, err.Error())
	}
	var acc mat.VecDense
	acc.MulVec(&hInv, &rhs)

	return Planar{X: acc.AtVec(0), Y: acc.AtVec(1), Angle: acc.AtVec(2)}, nil
}

// ContinuousDynamics is the ODE right-hand side [velocity, acceleration].
func (m *Model) ContinuousDynamics(s RobotState) ([6]float64, error) {
	acc, err := m.Acceleration(s)
	if err != nil {
		return [6]float64{}, err
	}
	return [6]float64{
		s.Velocity.X, s.Velocity.Y, s.Velocity.Angle,
		acc.X, acc.Y, acc.Angle,
	}, nil
}

func (m *Model) StateDim() int { return 6 }

// ControlDim is four powers followed by the battery voltage.
func (m *Model) ControlDim() int { return NumCommand + 1 }

// Derive implements dynamo.System over x = [position, velocity] and
// u = [fl, fr, bl, br, voltage]. The voltage may be omitted, in which case
// the configured battery voltage applies.
func (m *Model) Derive(x dynamo.State, u dynamo.Control, t float64) (dynamo.State, error) {
	if len(x) != m.StateDim() || len(u) < NumCommand {
		return nil, dynamo.ErrDimensionMismatch
	}
	voltage := m.params.BatteryVoltage
	if len(u) > NumCommand {
		voltage = u[NumCommand]
	}
	s := RobotState{
		Command:  CommandFromArray([NumCommand]float64(u[:NumCommand])),
		Position: Planar{X: x[0], Y: x[1], Angle: x[2]},
		Velocity: Planar{X: x[3], Y: x[4], Angle: x[5]},
	}
	acc, err := m.AccelerationAt(s, voltage)
	if err != nil {
		return nil, err
	}
	return dynamo.State{x[3], x[4], x[5], acc.X, acc.Y, acc.Angle}, nil
}
