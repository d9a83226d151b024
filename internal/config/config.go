package config

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/ident"
	"github.com/san-kum/mecsim/internal/optim"
)

const (
	DefaultDataDir      = "runs"
	DefaultLearningRate = 1e-3
	DefaultIterations   = 50
	DefaultTolerance    = 1e-6
)

type Config struct {
	DataDir string           `yaml:"data_dir"`
	Samples []string         `yaml:"samples"`
	Drive   drive.Parameters `yaml:"drive"`
	Fit     FitConfig        `yaml:"fit"`
	Search  SearchConfig     `yaml:"search"`
}

type FitConfig struct {
	Params       []string `yaml:"params"`
	Step         float64  `yaml:"step"`
	LearningRate float64  `yaml:"learning_rate"`
	Iterations   int      `yaml:"iterations"`
	Workers      int      `yaml:"workers"`
	Tolerance    float64  `yaml:"tolerance"`
}

type SearchConfig struct {
	Grid []SearchAxis `yaml:"grid"`
}

// SearchAxis lists explicit values, or Steps evenly spaced values from Min
// to Max inclusive.
type SearchAxis struct {
	Name   string    `yaml:"name"`
	Values []float64 `yaml:"values,omitempty"`
	Min    float64   `yaml:"min,omitempty"`
	Max    float64   `yaml:"max,omitempty"`
	Steps  int       `yaml:"steps,omitempty"`
}

func (a SearchAxis) Axis() optim.Axis {
	if len(a.Values) > 0 {
		return optim.Axis{Name: a.Name, Values: a.Values}
	}
	if a.Steps == 1 {
		return optim.Axis{Name: a.Name, Values: []float64{a.Min}}
	}
	return optim.Axis{Name: a.Name, Values: floats.Span(make([]float64, a.Steps), a.Min, a.Max)}
}

// Axes converts the configured grid for optim.GridSearch.
func (s SearchConfig) Axes() []optim.Axis {
	axes := make([]optim.Axis, len(s.Grid))
	for i, a := range s.Grid {
		axes[i] = a.Axis()
	}
	return axes
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Drive:   drive.Default(),
		Fit: FitConfig{
			Params: []string{
				"motor_constant_e",
				"motor_constant_t",
				"robot_mass",
				"robot_moment",
				"wheel_moment",
				"roller_moment",
				"directional_friction_x",
				"directional_friction_y",
				"directional_friction_angle",
			},
			Step:         ident.DefaultStep,
			LearningRate: DefaultLearningRate,
			Iterations:   DefaultIterations,
			Workers:      runtime.NumCPU(),
			Tolerance:    DefaultTolerance,
		},
		Search: SearchConfig{
			Grid: []SearchAxis{
				{Name: "motor_constant_e", Min: 0.2, Max: 0.4, Steps: 5},
				{Name: "robot_mass", Min: 11, Max: 13, Steps: 5},
			},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	err := c.Drive.Validate()
	for _, name := range c.Fit.Params {
		if !drive.IsParameter(name) {
			err = multierr.Append(err, errors.Wrapf(drive.ErrUnknownParameter, "fit.params: %q", name))
		}
	}
	if c.Fit.Step <= 0 {
		err = multierr.Append(err, errors.Errorf("fit.step must be positive, got %g", c.Fit.Step))
	}
	if c.Fit.LearningRate <= 0 {
		err = multierr.Append(err, errors.Errorf("fit.learning_rate must be positive, got %g", c.Fit.LearningRate))
	}
	if c.Fit.Iterations < 0 {
		err = multierr.Append(err, errors.Errorf("fit.iterations must not be negative, got %d", c.Fit.Iterations))
	}
	if c.Fit.Workers < 0 {
		err = multierr.Append(err, errors.Errorf("fit.workers must not be negative, got %d", c.Fit.Workers))
	}
	for _, a := range c.Search.Grid {
		if !drive.IsParameter(a.Name) {
			err = multierr.Append(err, errors.Wrapf(drive.ErrUnknownParameter, "search.grid: %q", a.Name))
		}
		if len(a.Values) == 0 && (a.Steps < 1 || a.Max < a.Min) {
			err = multierr.Append(err, errors.Errorf("search.grid %q: need values or min <= max with steps >= 1", a.Name))
		}
	}
	return err
}
