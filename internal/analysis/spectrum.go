package analysis

import (
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

var ErrTooFewPoints = errors.New("analysis: need at least two points")

// PowerSpectrum returns |X_k|²/n for k = 0..n/2 of the mean-removed signal.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centred := make([]float64, n)
	for i, v := range data {
		centred[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centred)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		a := cmplx.Abs(c)
		ps[i] = a * a / float64(n)
	}
	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-DC bin
// of a signal sampled every dt seconds, and its power.
func DominantFrequency(data []float64, dt float64) (float64, float64, error) {
	if len(data) < 2 {
		return 0, 0, ErrTooFewPoints
	}
	ps := PowerSpectrum(data)
	best := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[best] {
			best = k
		}
	}
	fft := fourier.NewFFT(len(data))
	return fft.Freq(best) / dt, ps[best], nil
}
