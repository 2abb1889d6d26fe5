// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package distance computes travel distances between postal addresses,
// geocoding each address at most once per cache lifetime.
package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"github.com/starburger/foodcart/geocoding"
	"github.com/starburger/foodcart/spatial"
	"golang.org/x/sync/singleflight"
)

// Result is a distance in kilometers, or Unknown when one of the addresses
// could not be located.
type Result struct {
	Km    float64
	Known bool
}

// Kilometers returns a known distance.
func Kilometers(km float64) Result {
	return Result{Km: km, Known: true}
}

// Unknown returns the distance of an address that could not be located.
func Unknown() Result {
	return Result{}
}

func (r Result) String() string {
	if !r.Known {
		return "unknown"
	}

	return strconv.FormatFloat(r.Km, 'f', 2, 64) + " km"
}

// MarshalJSON renders known distances as a number rounded to meters and
// unknown ones as null.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Known {
		return []byte("null"), nil
	}

	return json.Marshal(math.Round(r.Km*1000) / 1000)
}

// Metrics counts cache and provider activity.
type Metrics struct {
	CacheHits      atomic.Int64
	CacheMisses    atomic.Int64
	ProviderCalls  atomic.Int64
	ProviderErrors atomic.Int64
}

func (m *Metrics) String() string {
	return fmt.Sprintf("cache hits=%d misses=%d provider calls=%d errors=%d",
		m.CacheHits.Load(), m.CacheMisses.Load(), m.ProviderCalls.Load(), m.ProviderErrors.Load())
}

// Evaluator resolves addresses through a cache in front of a geocoding
// provider.
type Evaluator struct {
	cache    geocoding.Cache
	resolver geocoding.Resolver
	group    singleflight.Group
	Metrics  Metrics
}

// NewEvaluator creates an evaluator.
func NewEvaluator(cache geocoding.Cache, resolver geocoding.Resolver) *Evaluator {
	return &Evaluator{cache: cache, resolver: resolver}
}

// DistanceBetween returns the great circle distance between two addresses.
// When any of them has no known location the result is Unknown. Provider
// failures are returned as errors and nothing is cached for them.
func (e *Evaluator) DistanceBetween(ctx context.Context, a, b string) (Result, error) {
	from, err := e.Locate(ctx, a)
	if err != nil {
		return Unknown(), err
	}

	to, err := e.Locate(ctx, b)
	if err != nil {
		return Unknown(), err
	}

	if from == nil || to == nil {
		return Unknown(), nil
	}

	return Kilometers(from.DistanceKm(*to)), nil
}

// Locate returns the coordinate of address, nil when the provider does not
// know it. Empty addresses are never sent to the provider.
func (e *Evaluator) Locate(ctx context.Context, address string) (*spatial.Coordinate, error) {
	normalized := geocoding.NormalizeAddress(address)
	if normalized.IsEmpty() {
		return nil, nil
	}

	entry, err := e.cache.Lookup(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("reading geocode cache: %w", err)
	}

	if entry != nil {
		e.Metrics.CacheHits.Add(1)

		return entry.Coordinate, nil
	}

	e.Metrics.CacheMisses.Add(1)

	// The flight is shared by every caller waiting on the address, so it must
	// not die with the first caller. The resolver's client timeout bounds it.
	flight := e.group.DoChan(normalized.String(), func() (any, error) {
		return e.resolveAndStore(context.WithoutCancel(ctx), normalized)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*spatial.Coordinate), nil
	}
}

func (e *Evaluator) resolveAndStore(ctx context.Context, address geocoding.Address) (*spatial.Coordinate, error) {
	// A concurrent flight may have finished between our lookup and now.
	entry, err := e.cache.Lookup(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("reading geocode cache: %w", err)
	}

	if entry != nil {
		return entry.Coordinate, nil
	}

	e.Metrics.ProviderCalls.Add(1)

	coord, err := e.resolver.Resolve(ctx, address)
	if err != nil {
		e.Metrics.ProviderErrors.Add(1)

		return nil, fmt.Errorf("geocoding %q: %w", address, err)
	}

	if coord != nil {
		if err := coord.Validate(); err != nil {
			e.Metrics.ProviderErrors.Add(1)

			return nil, fmt.Errorf("geocoding %q: %w", address, &geocoding.ProviderError{
				Kind:    geocoding.ErrorKindInvalidCoordinate,
				Message: "provider returned an unusable coordinate",
				Err:     err,
			})
		}
	}

	if err := e.cache.Store(ctx, address, coord); err != nil {
		return nil, fmt.Errorf("writing geocode cache: %w", err)
	}

	return coord, nil
}
