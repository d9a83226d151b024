package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawCSV = `angle,time,x_position,y_position,x_velocity,y_velocity,angular_velocity,battery_voltage,fl,fr,bl,br,note
0.2,0.02,1,2,0.5,0,0,12.1,0.3,0.3,0.3,0.3,b
0.1,0.00,0,0,0,0,0,12.2,0,0,0,0,a
0.3,0.02,9,9,9,9,9,9,9,9,9,9,dup
0.4,0.05,2,3,0.6,0,0,12.0,0.4,0.4,0.4,0.4,c
`

func TestReadCSV(t *testing.T) {
	s, err := ReadCSV(strings.NewReader(rawCSV), "log")
	require.NoError(t, err)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{0, 0.02, 0.05}, s.Time)
	assert.Equal(t, []float64{0.1, 0.2, 0.4}, s.Angle)
	assert.Equal(t, []float64{12.2, 12.1, 12.0}, s.BatteryVoltage)
	assert.Equal(t, []float64{0, 0.3, 0.4}, s.BR)
	assert.Equal(t, "log", s.Name)
}

func TestReadCSVMissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("time,x_position\n0,0\n"), "bad")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = ReadCSV(strings.NewReader(strings.Replace(rawCSV, "0.4,0.05", "0.4,oops", 1)), "bad")
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	s := uniformSample(20)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s))
	assert.True(t, strings.HasPrefix(buf.String(), "time,battery_voltage,x_position"))

	back, err := ReadCSV(&buf, "again")
	require.NoError(t, err)
	require.Equal(t, s.Len(), back.Len())
	assert.Equal(t, s.Time, back.Time)
	assert.Equal(t, s.XPosition, back.XPosition)
	assert.Equal(t, s.FL, back.FL)
	assert.Equal(t, s.XAcceleration, back.XAcceleration)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv"} {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, uniformSample(30)))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
	}

	samples, err := LoadAll(filepath.Join(dir, "*.csv"))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, filepath.Join(dir, "a.csv"), samples[0].Name)
	for _, s := range samples {
		require.NoError(t, s.Validate())
		// the last recorded time is excluded from the grid
		assert.Equal(t, 29, s.Len())
	}

	_, err = LoadAll(filepath.Join(dir, "*.json"))
	assert.Error(t, err)
}
