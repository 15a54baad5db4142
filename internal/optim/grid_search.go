// Package optim searches configuration parameters for the lowest score of
// an objective.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var ErrNoCandidate = errors.New("optim: no parameter combination could be evaluated")

// Objective scores one parameter combination; lower is better.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	failures   int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Failures is the number of combinations the last search had to skip.
func (g *GridSearch) Failures() int { return g.failures }

// Search evaluates every combination in the grid. Combinations whose
// objective fails are skipped.
func (g *GridSearch) Search(ctx context.Context, obj Objective) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("optim: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	g.failures = 0
	best := math.Inf(1)
	var bestParams map[string]float64

	if err := g.searchRecursive(ctx, 0, make(map[string]float64), obj, &best, &bestParams); err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, ErrNoCandidate
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	obj Objective,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		val, err := obj(ctx, current)
		if err != nil || math.IsNaN(val) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.failures++
			return nil
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, obj, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
