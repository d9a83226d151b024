package ident_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/ident"
	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/telemetry"
)

func dragFree() drive.Parameters {
	p := drive.Default()
	p.DirectionalFrictionX, p.DirectionalFrictionY, p.DirectionalFrictionAngle = 0, 0, 0
	return p
}

// recorded produces samples by simulating p, so p scores zero against them.
func recorded(p drive.Parameters) []*telemetry.Sample {
	s := sim.New(drive.NewModel(p))
	commands := []drive.RobotCommand{
		{FL: 0.6, FR: 0.6, BL: 0.6, BR: 0.6},
		{FL: -0.4, FR: 0.4, BL: 0.4, BR: -0.4},
		{FL: -0.3, FR: 0.5, BL: -0.3, BR: 0.5},
	}
	var out []*telemetry.Sample
	for _, cmd := range commands {
		in := make([]sim.Input, 80)
		for i := range in {
			in[i] = sim.Input{Command: cmd, Voltage: 12}
		}
		res, err := s.Rollout(context.Background(), drive.RobotState{}, in)
		Expect(err).NotTo(HaveOccurred())
		out = append(out, res.ToSample("recorded"))
	}
	return out
}

var _ = Describe("Cost", func() {
	var (
		ctx     context.Context
		samples []*telemetry.Sample
	)

	BeforeEach(func() {
		ctx = context.Background()
		samples = recorded(drive.Default())
	})

	It("is zero for the parameters that produced the data", func() {
		for _, s := range samples {
			c, err := ident.Cost(ctx, s, drive.Default())
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNumerically("~", 0, 1e-20))
		}
	})

	It("grows when the parameters are wrong", func() {
		p := drive.Default()
		p.RobotMass *= 2
		c, err := ident.Cost(ctx, samples[0], p)
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(BeNumerically(">", 1e-4))
	})

	It("adds up over samples", func() {
		p := drive.Default()
		p.MotorConstantT *= 0.8

		want := 0.0
		for _, s := range samples {
			c, err := ident.Cost(ctx, s, p)
			Expect(err).NotTo(HaveOccurred())
			want += c
		}
		total, err := ident.TotalCost(ctx, ident.Cost, samples, p, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(BeNumerically("~", want, 1e-12))
	})

	Context("behind Safe", func() {
		It("turns a singular model into the sentinel", func() {
			p := drive.Default()
			p.RobotMass, p.RobotMoment, p.WheelMoment, p.RollerMoment = 0, 0, 0, 0

			_, err := ident.Cost(ctx, samples[0], p)
			Expect(err).To(HaveOccurred())
			Expect(ident.IsNumericFault(err)).To(BeTrue())

			c, err := ident.SafeCost(ctx, samples[0], p)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(ident.Sentinel))
		})

		It("recovers panics and non-finite scores", func() {
			panicky := ident.Safe(func(context.Context, *telemetry.Sample, drive.Parameters) (float64, error) {
				panic("boom")
			})
			c, err := panicky(ctx, samples[0], drive.Default())
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(ident.Sentinel))

			nan := ident.Safe(func(context.Context, *telemetry.Sample, drive.Parameters) (float64, error) {
				return math.NaN(), nil
			})
			c, err = nan(ctx, samples[0], drive.Default())
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(Equal(ident.Sentinel))
		})

		It("still reports cancellation and bad data", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := ident.SafeCost(cancelled, samples[0], drive.Default())
			Expect(err).To(MatchError(context.Canceled))

			_, err = ident.SafeCost(ctx, &telemetry.Sample{Name: "empty"}, drive.Default())
			Expect(err).To(MatchError(telemetry.ErrTooShort))
		})
	})
})

var _ = Describe("GradientEstimator", func() {
	var (
		ctx       context.Context
		estimator *ident.GradientEstimator
		samples   []*telemetry.Sample
	)

	BeforeEach(func() {
		ctx = context.Background()
		estimator = ident.NewGradientEstimator(zap.NewNop().Sugar())
		samples = recorded(dragFree())
	})

	It("matches the analytic gradient of a quadratic objective", func() {
		// each sample pulls robot_mass towards a different target
		targets := map[*telemetry.Sample]float64{samples[0]: 10, samples[1]: 11, samples[2]: 12}
		estimator.Objective = func(_ context.Context, s *telemetry.Sample, p drive.Parameters) (float64, error) {
			d := p.RobotMass - targets[s]
			return d*d + 3*p.WheelMoment, nil
		}

		p := drive.Default()
		p.RobotMass = 12
		grad, err := estimator.Gradient(ctx, samples, p, []string{"robot_mass", "wheel_moment", "roller_moment"})
		Expect(err).NotTo(HaveOccurred())

		// mean of 2(12-10), 2(12-11), 2(12-12)
		Expect(grad["robot_mass"]).To(BeNumerically("~", 2, 1e-6))
		Expect(grad["wheel_moment"]).To(BeNumerically("~", 3, 1e-6))
		Expect(grad["roller_moment"]).To(BeNumerically("~", 0, 1e-12))
	})

	It("shifts a whole friction group at once", func() {
		estimator.Objective = func(_ context.Context, _ *telemetry.Sample, p drive.Parameters) (float64, error) {
			return p.FLWheelFriction + p.FRWheelFriction + p.BLWheelFriction + p.BRWheelFriction, nil
		}
		grad, err := estimator.Gradient(ctx, samples, drive.Default(), []string{drive.WheelFriction})
		Expect(err).NotTo(HaveOccurred())
		Expect(grad[drive.WheelFriction]).To(BeNumerically("~", 4, 1e-6))
	})

	It("agrees with a finer stencil on the real cost", func() {
		p := dragFree()
		p.RobotMass += 1.5
		p.MotorConstantE *= 1.1

		grad, err := estimator.Gradient(ctx, samples, p, []string{"robot_mass", "motor_constant_e"})
		Expect(err).NotTo(HaveOccurred())

		for _, name := range []string{"robot_mass", "motor_constant_e"} {
			const h = 1e-3
			at := func(delta float64) float64 {
				q, err := p.Perturb(name, delta)
				Expect(err).NotTo(HaveOccurred())
				total, err := ident.TotalCost(ctx, ident.Cost, samples, q, 0)
				Expect(err).NotTo(HaveOccurred())
				return total / float64(len(samples))
			}
			want := (-at(2*h) + 8*at(h) - 8*at(-h) + at(-2*h)) / (12 * h)
			Expect(want).NotTo(BeZero())
			Expect(grad[name]).To(BeNumerically("~", want, 1e-3*math.Abs(want)), name)
		}
	})

	It("does not depend on the number of workers", func() {
		p := dragFree()
		p.MotorConstantT *= 0.9
		names := []string{"motor_constant_t", "robot_moment"}

		estimator.Workers = 1
		serial, err := estimator.Gradient(ctx, samples, p, names)
		Expect(err).NotTo(HaveOccurred())

		estimator.Workers = 8
		parallel, err := estimator.Gradient(ctx, samples, p, names)
		Expect(err).NotTo(HaveOccurred())
		Expect(parallel).To(Equal(serial))
	})

	It("rejects unknown parameter names before doing any work", func() {
		calls := 0
		estimator.Objective = func(context.Context, *telemetry.Sample, drive.Parameters) (float64, error) {
			calls++
			return 0, nil
		}
		_, err := estimator.Gradient(ctx, samples, drive.Default(), []string{"robot_mass", "wheel_colour"})
		Expect(err).To(MatchError(drive.ErrUnknownParameter))
		Expect(calls).To(BeZero())
	})

	It("needs samples and a positive step", func() {
		_, err := estimator.Gradient(ctx, nil, drive.Default(), []string{"robot_mass"})
		Expect(err).To(HaveOccurred())

		estimator.Step = 0
		_, err = estimator.Gradient(ctx, samples, drive.Default(), []string{"robot_mass"})
		Expect(err).To(HaveOccurred())
	})
})
