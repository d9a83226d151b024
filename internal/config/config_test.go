package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/mecsim/internal/drive"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("expected data dir %s, got %s", DefaultDataDir, cfg.DataDir)
	}
	if cfg.Fit.Step != 1e-4 {
		t.Errorf("expected step 1e-4, got %g", cfg.Fit.Step)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	p, ok := GetPreset("initial_guess")
	if !ok {
		t.Fatal("expected preset")
	}
	if p.RobotMoment != 0.01897086956915779 {
		t.Errorf("unexpected robot moment %g", p.RobotMoment)
	}
	if !p.IsUniformFriction() {
		t.Error("initial guess should have uniform friction")
	}

	fitted, _ := GetPreset("fitted")
	assert.Equal(t, drive.Default(), fitted)
}

func TestGetPreset_NotFound(t *testing.T) {
	if _, ok := GetPreset("nonexistent"); ok {
		t.Error("expected no preset")
	}
}

func TestListPresets(t *testing.T) {
	assert.Equal(t, []string{"fitted", "initial_guess"}, ListPresets())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mecsim.yaml")
	cfg := DefaultConfig()
	cfg.Samples = []string{"drive_samples/*.csv"}
	cfg.Drive.RobotMass = 11.5
	cfg.Fit.Params = []string{drive.DirectionalFriction}

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "robot_mass: 11.5")
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fit:\n  iterations: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Fit.Iterations)
	assert.Equal(t, DefaultLearningRate, cfg.Fit.LearningRate)
	assert.Equal(t, drive.Default(), cfg.Drive)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("fit: [\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Drive.RobotMass = -1
	cfg.Fit.Params = append(cfg.Fit.Params, "colour")
	cfg.Fit.Step = 0
	cfg.Search.Grid = append(cfg.Search.Grid, SearchAxis{Name: "robot_moment", Min: 2, Max: 1, Steps: 3})

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, drive.ErrNegativeParameter)
	assert.ErrorIs(t, err, drive.ErrUnknownParameter)
	assert.Contains(t, err.Error(), "fit.step")
	assert.Contains(t, err.Error(), "robot_moment")
}

func TestSearchAxes(t *testing.T) {
	s := SearchConfig{Grid: []SearchAxis{
		{Name: "robot_mass", Min: 10, Max: 12, Steps: 3},
		{Name: "wheel_friction", Values: []float64{0, 0.5}},
		{Name: "robot_moment", Min: 0.1, Steps: 1},
	}}
	axes := s.Axes()
	require.Len(t, axes, 3)
	assert.Equal(t, []float64{10, 11, 12}, axes[0].Values)
	assert.Equal(t, []float64{0, 0.5}, axes[1].Values)
	assert.Equal(t, []float64{0.1}, axes[2].Values)
}
