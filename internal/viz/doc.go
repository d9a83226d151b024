// Package viz renders identification runs in the terminal.
//
//   - [FitModel]: Bubble Tea view of a running gradient-descent fit
//   - [VelocityPlot]: measured against simulated velocity, one chart per channel
//   - [Canvas]: Braille canvas used by [PathPlot] for the planar path
//
// # Key Bindings
//
//	q, ctrl+c - stop watching (the fit itself is cancelled by the caller)
package viz
