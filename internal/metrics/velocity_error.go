package metrics

import (
	"math"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/telemetry"
)

// Channel selects one velocity component.
type Channel int

const (
	ChannelX Channel = iota
	ChannelY
	ChannelAngle
)

func (c Channel) String() string {
	switch c {
	case ChannelX:
		return "x"
	case ChannelY:
		return "y"
	case ChannelAngle:
		return "angular"
	}
	return "unknown"
}

func (c Channel) pick(v drive.Planar) float64 {
	switch c {
	case ChannelX:
		return v.X
	case ChannelY:
		return v.Y
	}
	return v.Angle
}

// VelocityError is the root-mean-square difference between simulated and
// recorded velocity on one channel.
type VelocityError struct {
	sample  *telemetry.Sample
	channel Channel
	sumSq   float64
	samples int
}

func NewVelocityError(sample *telemetry.Sample, channel Channel) *VelocityError {
	return &VelocityError{sample: sample, channel: channel}
}

func (e *VelocityError) Name() string {
	return e.channel.String() + "_velocity_rmse"
}

func (e *VelocityError) Observe(r *sim.Result, i int) {
	if i >= e.sample.Len() {
		return
	}
	d := e.channel.pick(r.Velocity[i]) - e.channel.pick(e.sample.Velocity(i))
	e.sumSq += d * d
	e.samples++
}

func (e *VelocityError) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return math.Sqrt(e.sumSq / float64(e.samples))
}

func (e *VelocityError) Reset() {
	e.sumSq = 0
	e.samples = 0
}
