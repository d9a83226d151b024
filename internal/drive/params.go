package drive

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// NumParameters is the length of the parameter interchange vector.
const NumParameters = 19

var (
	ErrUnknownParameter   = errors.New("drive: unknown parameter")
	ErrNonUniformFriction = errors.New("drive: friction is not uniform across wheels and axes")
	ErrNegativeParameter  = errors.New("drive: parameter must not be negative")
	ErrArrayLength        = errors.New("drive: wrong parameter vector length")
)

// Parameters are the physical constants of the drive. Field order matches the
// interchange vector consumed by the external solver generator.
type Parameters struct {
	MotorConstantE     float64 `yaml:"motor_constant_e" json:"motor_constant_e"`
	MotorConstantT     float64 `yaml:"motor_constant_t" json:"motor_constant_t"`
	ArmatureResistance float64 `yaml:"armature_resistance" json:"armature_resistance"`

	RobotMass    float64 `yaml:"robot_mass" json:"robot_mass"`
	RobotMoment  float64 `yaml:"robot_moment" json:"robot_moment"`
	WheelMoment  float64 `yaml:"wheel_moment" json:"wheel_moment"`
	RollerMoment float64 `yaml:"roller_moment" json:"roller_moment"`

	FLWheelFriction float64 `yaml:"fl_wheel_friction" json:"fl_wheel_friction"`
	FRWheelFriction float64 `yaml:"fr_wheel_friction" json:"fr_wheel_friction"`
	BLWheelFriction float64 `yaml:"bl_wheel_friction" json:"bl_wheel_friction"`
	BRWheelFriction float64 `yaml:"br_wheel_friction" json:"br_wheel_friction"`

	FLRollerFriction float64 `yaml:"fl_roller_friction" json:"fl_roller_friction"`
	FRRollerFriction float64 `yaml:"fr_roller_friction" json:"fr_roller_friction"`
	BLRollerFriction float64 `yaml:"bl_roller_friction" json:"bl_roller_friction"`
	BRRollerFriction float64 `yaml:"br_roller_friction" json:"br_roller_friction"`

	DirectionalFrictionX     float64 `yaml:"directional_friction_x" json:"directional_friction_x"`
	DirectionalFrictionY     float64 `yaml:"directional_friction_y" json:"directional_friction_y"`
	DirectionalFrictionAngle float64 `yaml:"directional_friction_angle" json:"directional_friction_angle"`

	BatteryVoltage float64 `yaml:"battery_voltage" json:"battery_voltage"`
}

// Default returns the parameters fitted against the reference drive samples.
func Default() Parameters {
	return Parameters{
		MotorConstantE:     0.33570545232395443,
		MotorConstantT:     0.19340444224622078,
		ArmatureResistance: 0.9,

		RobotMass:    12.33323012127017,
		RobotMoment:  0.1315328580572256,
		WheelMoment:  0.00668203785816994,
		RollerMoment: 0.00010370537790609307,

		DirectionalFrictionX:     3.3296478994755456,
		DirectionalFrictionY:     24.9603707710718,
		DirectionalFrictionAngle: 3.183599056707547,

		BatteryVoltage: 12,
	}
}

// ParameterNames lists the interchange vector entries in order.
var ParameterNames = [NumParameters]string{
	"motor_constant_e",
	"motor_constant_t",
	"armature_resistance",
	"robot_mass",
	"robot_moment",
	"wheel_moment",
	"roller_moment",
	"fl_wheel_friction",
	"fr_wheel_friction",
	"bl_wheel_friction",
	"br_wheel_friction",
	"fl_roller_friction",
	"fr_roller_friction",
	"bl_roller_friction",
	"br_roller_friction",
	"directional_friction_x",
	"directional_friction_y",
	"directional_friction_angle",
	"battery_voltage",
}

// Grouped names address several entries at once when friction is uniform.
const (
	WheelFriction       = "wheel_friction"
	RollerFriction      = "roller_friction"
	DirectionalFriction = "directional_friction"
)

var parameterIndex = func() map[string][]int {
	idx := make(map[string][]int, NumParameters+3)
	for i, name := range ParameterNames {
		idx[name] = []int{i}
	}
	idx[WheelFriction] = []int{7, 8, 9, 10}
	idx[RollerFriction] = []int{11, 12, 13, 14}
	idx[DirectionalFriction] = []int{15, 16, 17}
	return idx
}()

func indices(name string) ([]int, error) {
	idx, ok := parameterIndex[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownParameter, "%q", name)
	}
	return idx, nil
}

// IsParameter reports whether name is an individual or grouped parameter name.
func IsParameter(name string) bool {
	_, ok := parameterIndex[name]
	return ok
}

func (p Parameters) ToArray() [NumParameters]float64 {
	return [NumParameters]float64{
		p.MotorConstantE,
		p.MotorConstantT,
		p.ArmatureResistance,
		p.RobotMass,
		p.RobotMoment,
		p.WheelMoment,
		p.RollerMoment,
		p.FLWheelFriction,
		p.FRWheelFriction,
		p.BLWheelFriction,
		p.BRWheelFriction,
		p.FLRollerFriction,
		p.FRRollerFriction,
		p.BLRollerFriction,
		p.BRRollerFriction,
		p.DirectionalFrictionX,
		p.DirectionalFrictionY,
		p.DirectionalFrictionAngle,
		p.BatteryVoltage,
	}
}

func ParametersFromArray(a [NumParameters]float64) Parameters {
	return Parameters{
		MotorConstantE:           a[0],
		MotorConstantT:           a[1],
		ArmatureResistance:       a[2],
		RobotMass:                a[3],
		RobotMoment:              a[4],
		WheelMoment:              a[5],
		RollerMoment:             a[6],
		FLWheelFriction:          a[7],
		FRWheelFriction:          a[8],
		BLWheelFriction:          a[9],
		BRWheelFriction:          a[10],
		FLRollerFriction:         a[11],
		FRRollerFriction:         a[12],
		BLRollerFriction:         a[13],
		BRRollerFriction:         a[14],
		DirectionalFrictionX:     a[15],
		DirectionalFrictionY:     a[16],
		DirectionalFrictionAngle: a[17],
		BatteryVoltage:           a[18],
	}
}

// ParametersFromSlice is ParametersFromArray for vectors of unchecked length.
func ParametersFromSlice(s []float64) (Parameters, error) {
	if len(s) != NumParameters {
		return Parameters{}, errors.Wrapf(ErrArrayLength, "got %d, want %d", len(s), NumParameters)
	}
	return ParametersFromArray([NumParameters]float64(s)), nil
}

// Get returns the named value. A grouped name is only readable when all of
// its members agree.
func (p Parameters) Get(name string) (float64, error) {
	idx, err := indices(name)
	if err != nil {
		return 0, err
	}
	a := p.ToArray()
	v := a[idx[0]]
	for _, i := range idx[1:] {
		if a[i] != v {
			return 0, errors.Wrapf(ErrNonUniformFriction, "%q", name)
		}
	}
	return v, nil
}

// With returns a copy with the named value (or every member of a group) set.
func (p Parameters) With(name string, value float64) (Parameters, error) {
	idx, err := indices(name)
	if err != nil {
		return p, err
	}
	a := p.ToArray()
	for _, i := range idx {
		a[i] = value
	}
	return ParametersFromArray(a), nil
}

// Perturb returns a copy with delta added to the named value (or to every
// member of a group).
func (p Parameters) Perturb(name string, delta float64) (Parameters, error) {
	idx, err := indices(name)
	if err != nil {
		return p, err
	}
	a := p.ToArray()
	for _, i := range idx {
		a[i] += delta
	}
	return ParametersFromArray(a), nil
}

// OfUniformFriction starts from Default and applies values, which may use
// the grouped friction names.
func OfUniformFriction(values map[string]float64) (Parameters, error) {
	p := Default()
	var err error
	// individual names first so a group value always wins
	for _, grouped := range []bool{false, true} {
		for name, v := range values {
			if isGroup := len(parameterIndex[name]) > 1; isGroup != grouped {
				continue
			}
			if p, err = p.With(name, v); err != nil {
				return Parameters{}, err
			}
		}
	}
	return p, nil
}

// IsUniformFriction reports whether wheel, roller and directional friction
// each share a single value.
func (p Parameters) IsUniformFriction() bool {
	for _, group := range []string{WheelFriction, RollerFriction, DirectionalFriction} {
		if _, err := p.Get(group); err != nil {
			return false
		}
	}
	return true
}

// ToMap returns every parameter except the battery voltage.
func (p Parameters) ToMap() map[string]float64 {
	a := p.ToArray()
	out := make(map[string]float64, NumParameters-1)
	for i, name := range ParameterNames[:NumParameters-1] {
		out[name] = a[i]
	}
	return out
}

// ToUniformFrictionMap is ToMap with the friction groups collapsed into one
// entry each.
func (p Parameters) ToUniformFrictionMap() (map[string]float64, error) {
	if !p.IsUniformFriction() {
		return nil, ErrNonUniformFriction
	}
	out := p.ToMap()
	for _, group := range []string{WheelFriction, RollerFriction, DirectionalFriction} {
		idx := parameterIndex[group]
		out[group] = out[ParameterNames[idx[0]]]
		for _, i := range idx {
			delete(out, ParameterNames[i])
		}
	}
	return out, nil
}

// Validate checks that no physical constant is negative and the armature
// resistance is usable as a divisor.
func (p Parameters) Validate() error {
	var err error
	a := p.ToArray()
	for i, v := range a {
		if v < 0 {
			err = multierr.Append(err, errors.Wrapf(ErrNegativeParameter, "%s=%g", ParameterNames[i], v))
		}
	}
	if p.ArmatureResistance == 0 {
		err = multierr.Append(err, errors.New("drive: armature_resistance must be positive"))
	}
	return err
}

func (p Parameters) String() string {
	a := p.ToArray()
	s := "Parameters(\n"
	for i, name := range ParameterNames {
		s += fmt.Sprintf("\t%s=%v,\n", name, a[i])
	}
	return s + ")"
}
