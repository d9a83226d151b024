// Package metrics summarises simulated runs.
package metrics

import (
	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// Metric accumulates one figure over the steps of a run.
type Metric interface {
	Name() string
	Observe(r *sim.Result, i int)
	Value() float64
	Reset()
}

// Evaluate resets each metric, feeds it every step of r and collects the
// values by name.
func Evaluate(r *sim.Result, ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for i := 0; i < r.Len(); i++ {
			m.Observe(r, i)
		}
		out[m.Name()] = m.Value()
	}
	return out
}

// Standard is the metric set stored with every run. sample may be nil when
// there is no recording to compare against.
func Standard(p drive.Parameters, sample *telemetry.Sample) []Metric {
	ms := []Metric{
		NewControlEffort(),
		NewPeakSpeed(),
		NewKineticEnergy(p),
		NewStability(kinematicsLimit),
	}
	if sample != nil {
		ms = append(ms,
			NewVelocityError(sample, ChannelX),
			NewVelocityError(sample, ChannelY),
			NewVelocityError(sample, ChannelAngle),
		)
	}
	return ms
}
