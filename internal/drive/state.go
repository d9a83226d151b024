package drive

import "math"

// Vector sizes at the solver boundary.
const (
	NumCommand = 4
	NumState   = NumCommand + 6
)

// RobotCommand holds the motor duty cycles, nominally in [-1, 1].
type RobotCommand struct {
	FL, FR, BL, BR float64
}

func (c RobotCommand) ToArray() [NumCommand]float64 {
	return [NumCommand]float64{c.FL, c.FR, c.BL, c.BR}
}

func CommandFromArray(a [NumCommand]float64) RobotCommand {
	return RobotCommand{FL: a[0], FR: a[1], BL: a[2], BR: a[3]}
}

// Clamp limits every power to [-1, 1].
func (c RobotCommand) Clamp() RobotCommand {
	return RobotCommand{
		FL: clamp(c.FL),
		FR: clamp(c.FR),
		BL: clamp(c.BL),
		BR: clamp(c.BR),
	}
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// Planar is a quantity along x, y and heading.
type Planar struct {
	X, Y, Angle float64
}

func (p Planar) ToArray() [3]float64 {
	return [3]float64{p.X, p.Y, p.Angle}
}

func PlanarFromArray(a [3]float64) Planar {
	return Planar{X: a[0], Y: a[1], Angle: a[2]}
}

// Rotate turns the linear part of p by angle, leaving the heading component.
func (p Planar) Rotate(angle float64) Planar {
	sin, cos := math.Sincos(angle)
	return Planar{
		X:     cos*p.X - sin*p.Y,
		Y:     sin*p.X + cos*p.Y,
		Angle: p.Angle,
	}
}

// RobotState is a command applied at a position and velocity.
type RobotState struct {
	Command  RobotCommand
	Position Planar
	Velocity Planar
}

// ToArray lays the state out as powers, position, velocity.
func (s RobotState) ToArray() [NumState]float64 {
	var out [NumState]float64
	c, p, v := s.Command.ToArray(), s.Position.ToArray(), s.Velocity.ToArray()
	copy(out[:4], c[:])
	copy(out[4:7], p[:])
	copy(out[7:], v[:])
	return out
}

func StateFromArray(a [NumState]float64) RobotState {
	return RobotState{
		Command:  CommandFromArray([NumCommand]float64(a[:4])),
		Position: PlanarFromArray([3]float64(a[4:7])),
		Velocity: PlanarFromArray([3]float64(a[7:])),
	}
}
