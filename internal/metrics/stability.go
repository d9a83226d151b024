package metrics

import (
	"math"

	"github.com/san-kum/mecsim/internal/sim"
)

// kinematicsLimit is a wheel spin rate, in rad/s, no real run should reach.
const kinematicsLimit = 200

// Stability is the fraction of steps where every wheel and roller spins
// below threshold and nothing has gone non-finite.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(r *sim.Result, i int) {
	s.samples++
	for _, val := range r.WheelVelocity[i] {
		if math.IsNaN(val) || math.Abs(val) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
