package config

import (
	"sort"

	"github.com/san-kum/mecsim/internal/drive"
)

// Presets are named parameter sets usable in place of the drive section.
var Presets = map[string]drive.Parameters{
	"fitted": drive.Default(),
	// starting point of the first black-box search
	"initial_guess": {
		MotorConstantE:           0.38869198809920497,
		MotorConstantT:           0.17413942258926335,
		ArmatureResistance:       0.9,
		RobotMass:                12.999999983125175,
		RobotMoment:              0.01897086956915779,
		WheelMoment:              0.006733058747799317,
		RollerMoment:             0.00010000000017017123,
		DirectionalFrictionX:     10.73229685481671,
		DirectionalFrictionY:     36.707741175403896,
		DirectionalFrictionAngle: 7.347775273225521,
		BatteryVoltage:           12,
	},
}

func GetPreset(name string) (drive.Parameters, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
