package metrics

import (
	"math"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/sim"
)

// PeakSpeed is the largest linear chassis speed reached.
type PeakSpeed struct {
	peak float64
}

func NewPeakSpeed() *PeakSpeed { return &PeakSpeed{} }

func (p *PeakSpeed) Name() string { return "peak_speed" }

func (p *PeakSpeed) Observe(r *sim.Result, i int) {
	v := r.Velocity[i]
	p.peak = math.Max(p.peak, math.Hypot(v.X, v.Y))
}

func (p *PeakSpeed) Value() float64 { return p.peak }
func (p *PeakSpeed) Reset()         { p.peak = 0 }

// KineticEnergy is the mean chassis kinetic energy, wheels and rollers
// excluded.
type KineticEnergy struct {
	mass, moment float64
	total        float64
	samples      int
}

func NewKineticEnergy(p drive.Parameters) *KineticEnergy {
	return &KineticEnergy{mass: p.RobotMass, moment: p.RobotMoment}
}

func (k *KineticEnergy) Name() string { return "kinetic_energy" }

func (k *KineticEnergy) Observe(r *sim.Result, i int) {
	v := r.Velocity[i]
	k.total += 0.5*k.mass*(v.X*v.X+v.Y*v.Y) + 0.5*k.moment*v.Angle*v.Angle
	k.samples++
}

func (k *KineticEnergy) Value() float64 {
	if k.samples == 0 {
		return 0
	}
	return k.total / float64(k.samples)
}

func (k *KineticEnergy) Reset() {
	k.total = 0
	k.samples = 0
}
