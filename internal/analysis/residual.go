package analysis

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// Channels are the velocity columns compared against a simulation.
var Channels = []string{"x_velocity", "y_velocity", "angular_velocity"}

// Residuals returns measured minus simulated velocity per channel. The
// simulated velocity is already in the measurement frame.
func Residuals(sample *telemetry.Sample, res *sim.Result) (map[string][]float64, error) {
	n := sample.Len()
	if res.Len() != n {
		return nil, errors.Wrapf(telemetry.ErrLengthMismatch, "sample has %d steps, result %d", n, res.Len())
	}
	simulated := make([][]float64, len(Channels))
	for c := range simulated {
		simulated[c] = make([]float64, n)
	}
	for i, v := range res.Velocity {
		simulated[0][i] = v.X
		simulated[1][i] = v.Y
		simulated[2][i] = v.Angle
	}

	out := make(map[string][]float64, len(Channels))
	for c, name := range Channels {
		out[name] = floats.SubTo(make([]float64, n), sample.Column(name), simulated[c])
	}
	return out, nil
}
