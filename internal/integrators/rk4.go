package integrators

import (
	"github.com/pkg/errors"

	"github.com/san-kum/mecsim/internal/dynamo"
)

// RK4 is the classical fourth-order Runge-Kutta scheme. It keeps scratch
// buffers between steps, so one RK4 must not be shared across goroutines.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) derive(dyn dynamo.System, dst, x dynamo.State, u dynamo.Control, t float64) error {
	dx, err := dyn.Derive(x, u, t)
	if err != nil {
		return err
	}
	if len(dx) != len(dst) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "derivative has %d entries, state has %d", len(dx), len(dst))
	}
	copy(dst, dx)
	return nil
}

// Step advances x by dt holding u constant. The returned state is freshly
// allocated; x is not modified.
func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (dynamo.State, error) {
	n := len(x)
	r.ensureScratch(n)

	if err := r.derive(dyn, r.k1, x, u, t); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	if err := r.derive(dyn, r.k2, r.scratch, u, t+dt*0.5); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	if err := r.derive(dyn, r.k3, r.scratch, u, t+dt*0.5); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	if err := r.derive(dyn, r.k4, r.scratch, u, t+dt); err != nil {
		return nil, err
	}

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	if !result.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	return result, nil
}
