// Package analysis characterises how a simulated trajectory departs from a
// recorded one.
//
//   - [Residuals]: per-channel measured minus simulated velocity
//   - [PowerSpectrum]: one-sided power spectrum of a uniformly sampled signal
//   - [DominantFrequency]: strongest non-DC component
//
// A residual whose spectrum peaks near the command switching rate usually
// points at unmodelled actuator lag rather than at friction.
package analysis
