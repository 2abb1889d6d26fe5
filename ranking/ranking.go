// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package ranking orders candidate restaurants by their distance to the
// delivery address.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/starburger/foodcart/distance"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the distance evaluations running at once.
const DefaultConcurrency = 8

// DistanceEvaluator computes the distance between two addresses.
type DistanceEvaluator interface {
	DistanceBetween(ctx context.Context, a, b string) (distance.Result, error)
}

// Candidate is a restaurant to be ranked.
type Candidate struct {
	RestaurantID int64
	Address      string
}

// RankedRestaurant is a candidate with its distance to the order.
type RankedRestaurant struct {
	RestaurantID int64           `json:"restaurant_id"`
	Distance     distance.Result `json:"distance_km"`
}

// Failure records why a restaurant ended up with an unknown distance.
type Failure struct {
	RestaurantID int64
	Err          error
}

func (f Failure) Error() string {
	return fmt.Sprintf("restaurant %d: %v", f.RestaurantID, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Ranking is the outcome of ranking candidates. Restaurants is always
// complete; Failures lists the candidates whose distance is unknown because
// of an error rather than a missing address.
type Ranking struct {
	Restaurants []RankedRestaurant
	Failures    []Failure
}

// Err joins every failure, nil when there is none.
func (r *Ranking) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}

	return errors.Join(errs...)
}

// Engine ranks restaurants evaluating distances concurrently.
type Engine struct {
	eval           DistanceEvaluator
	maxConcurrency int
}

// NewEngine creates an engine. A non positive maxConcurrency selects
// DefaultConcurrency.
func NewEngine(eval DistanceEvaluator, maxConcurrency int) *Engine {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}

	return &Engine{eval: eval, maxConcurrency: maxConcurrency}
}

// Rank sorts candidates by ascending distance to orderAddress. Candidates with
// unknown distance go last, in their input order. A failing distance only
// affects its own candidate; Rank itself fails only when ctx is done.
func (e *Engine) Rank(ctx context.Context, orderAddress string, candidates []Candidate) (*Ranking, error) {
	ranked := make([]RankedRestaurant, len(candidates))
	failures := make([]error, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)

	for i, candidate := range candidates {
		ranked[i].RestaurantID = candidate.RestaurantID

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			d, err := e.eval.DistanceBetween(gctx, candidate.Address, orderAddress)
			if err != nil {
				failures[i] = err
				d = distance.Unknown()
			}

			ranked[i].Distance = d

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Ranking{}

	for i, err := range failures {
		if err != nil {
			result.Failures = append(result.Failures, Failure{RestaurantID: candidates[i].RestaurantID, Err: err})
		}
	}

	slices.SortStableFunc(ranked, compare)
	result.Restaurants = ranked

	return result, nil
}

// compare puts known distances first, ascending, and keeps unknowns equal so
// a stable sort preserves their order.
func compare(a, b RankedRestaurant) int {
	switch {
	case a.Distance.Known && b.Distance.Known:
		return cmp.Compare(a.Distance.Km, b.Distance.Km)
	case a.Distance.Known:
		return -1
	case b.Distance.Known:
		return 1
	default:
		return 0
	}
}
