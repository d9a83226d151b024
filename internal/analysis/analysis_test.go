package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/telemetry"
)

func TestPowerSpectrumDropsMean(t *testing.T) {
	data := []float64{3, 3, 3, 3, 3, 3, 3, 3}
	ps := PowerSpectrum(data)
	require.Len(t, ps, 5)
	for k, p := range ps {
		assert.InDelta(t, 0, p, 1e-20, "bin %d", k)
	}
	assert.Nil(t, PowerSpectrum(nil))
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		name string
		n    int
		freq float64
	}{
		{"5Hz", 200, 5},
		{"12Hz odd length", 301, 12.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]float64, tt.n)
			for i := range data {
				data[i] = 1 + math.Sin(2*math.Pi*tt.freq*float64(i)*telemetry.T)
			}
			f, p, err := DominantFrequency(data, telemetry.T)
			require.NoError(t, err)
			assert.InDelta(t, tt.freq, f, 1/(float64(tt.n)*telemetry.T))
			assert.Greater(t, p, 0.0)
		})
	}

	_, _, err := DominantFrequency([]float64{1}, telemetry.T)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestResidualsOfOwnSimulationAreZero(t *testing.T) {
	s := &telemetry.Sample{Name: "drive"}
	for i := 0; i < 40; i++ {
		s.Append(telemetry.Row{float64(i) * telemetry.T, 12, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0.6, 0.6, 0.6, 0.6})
	}
	simulator := sim.New(drive.NewModel(drive.Default()))
	res, err := simulator.Run(context.Background(), s)
	require.NoError(t, err)

	replay := res.ToSample("replay")
	again, err := simulator.Run(context.Background(), replay)
	require.NoError(t, err)

	r, err := Residuals(replay, again)
	require.NoError(t, err)
	for _, name := range Channels {
		require.Len(t, r[name], 40)
		for i, v := range r[name] {
			assert.Equal(t, 0.0, v, "%s[%d]", name, i)
		}
	}

	_, err = Residuals(replay.Slice(0, 10), again)
	assert.ErrorIs(t, err, telemetry.ErrLengthMismatch)
}
