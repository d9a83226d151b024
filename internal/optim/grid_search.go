package optim

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/mecsim/internal/drive"
)

// CostFunc scores a full parameter set, typically the total cost over every
// loaded sample.
type CostFunc func(ctx context.Context, p drive.Parameters) (float64, error)

// Axis is one searched parameter and the values it takes.
type Axis struct {
	Name   string    `yaml:"name"`
	Values []float64 `yaml:"values"`
}

// GridSearch evaluates every combination of axis values on top of a base
// parameter set.
type GridSearch struct {
	axes   []Axis
	logger *zap.SugaredLogger
}

func NewGridSearch(axes []Axis, logger *zap.SugaredLogger) *GridSearch {
	return &GridSearch{axes: axes, logger: logger}
}

// Size is the number of combinations Search will evaluate.
func (g *GridSearch) Size() int {
	n := 1
	for _, a := range g.axes {
		n *= len(a.Values)
	}
	return n
}

func (g *GridSearch) Search(ctx context.Context, base drive.Parameters, cost CostFunc) (drive.Parameters, float64, error) {
	for _, a := range g.axes {
		if !drive.IsParameter(a.Name) {
			return base, 0, errors.Wrapf(drive.ErrUnknownParameter, "%q", a.Name)
		}
		if len(a.Values) == 0 {
			return base, 0, errors.Errorf("optim: axis %q has no values", a.Name)
		}
	}

	best := math.Inf(1)
	bestParams := base
	if err := g.searchRecursive(ctx, 0, base, cost, &best, &bestParams); err != nil {
		return base, 0, err
	}
	g.logger.Infow("grid search done", "evaluated", g.Size(), "best", best)
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current drive.Parameters,
	cost CostFunc,
	best *float64,
	bestParams *drive.Parameters,
) error {
	if depth == len(g.axes) {
		val, err := cost(ctx, current)
		if err != nil {
			return err
		}
		g.logger.Debugw("grid point", "cost", val)
		if val < *best {
			*best = val
			*bestParams = current
		}
		return nil
	}

	axis := g.axes[depth]
	for _, val := range axis.Values {
		next, err := current.With(axis.Name, val)
		if err != nil {
			return err
		}
		if err := g.searchRecursive(ctx, depth+1, next, cost, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
