// Package dynamo provides the shared primitives for integrating the drive
// equations of motion.
//
// The package defines the small vocabulary every simulation layer speaks:
//
//   - [State]: vector representing system state
//   - [Control]: vector of inputs held constant over one step
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//
// # Example
//
//	model := drive.NewModel(drive.Default())
//	integ := integrators.NewRK4()
//	next, err := integ.Step(model, x, u, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT thread-safe. Systems built
// from immutable parameters may be shared between goroutines.
package dynamo
