// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package distance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/starburger/foodcart/geocoding"
	"github.com/starburger/foodcart/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver answers from a fixed table and counts calls per address.
type fakeResolver struct {
	mu     sync.Mutex
	known  map[geocoding.Address]spatial.Coordinate
	failed map[geocoding.Address]error
	calls  map[geocoding.Address]int
	total  atomic.Int64
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		known:  map[geocoding.Address]spatial.Coordinate{},
		failed: map[geocoding.Address]error{},
		calls:  map[geocoding.Address]int{},
	}
}

func (f *fakeResolver) Resolve(_ context.Context, address geocoding.Address) (*spatial.Coordinate, error) {
	f.total.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[address]++

	if err, ok := f.failed[address]; ok {
		return nil, err
	}

	if c, ok := f.known[address]; ok {
		return &c, nil
	}

	return nil, nil
}

func (f *fakeResolver) callsFor(address geocoding.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[address]
}

func setupEvaluator(t *testing.T) (*Evaluator, *fakeResolver, *geocoding.DuckDBCache) {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := geocoding.NewDuckDBCache(db)
	require.NoError(t, cache.CreateSchema(context.Background()))

	resolver := newFakeResolver()
	resolver.known["moscow"] = spatial.FromFloat(37.6173, 55.7558)
	resolver.known["red square"] = spatial.FromFloat(37.6208, 55.7539)
	resolver.known["bolshoi theatre"] = spatial.FromFloat(37.6186, 55.7601)

	return NewEvaluator(cache, resolver), resolver, cache
}

func TestDistanceBetween(t *testing.T) {
	eval, _, _ := setupEvaluator(t)

	d, err := eval.DistanceBetween(context.Background(), "Red Square", "Bolshoi Theatre")
	require.NoError(t, err)
	assert.True(t, d.Known)
	assert.InDelta(t, 0.70, d.Km, 0.05)

	same, err := eval.DistanceBetween(context.Background(), "red square", "  RED SQUARE ")
	require.NoError(t, err)
	assert.True(t, same.Known)
	assert.InDelta(t, 0, same.Km, 1e-9)
}

func TestCacheHitAvoidsProvider(t *testing.T) {
	ctx := context.Background()
	eval, resolver, _ := setupEvaluator(t)

	for range 5 {
		_, err := eval.DistanceBetween(ctx, "Moscow", "Red Square")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, resolver.callsFor("moscow"))
	assert.Equal(t, 1, resolver.callsFor("red square"))
	assert.Equal(t, int64(2), eval.Metrics.ProviderCalls.Load())
	assert.Equal(t, int64(8), eval.Metrics.CacheHits.Load())
}

func TestNotFoundIsCached(t *testing.T) {
	ctx := context.Background()
	eval, resolver, cache := setupEvaluator(t)

	for range 3 {
		d, err := eval.DistanceBetween(ctx, "Moscow", "Atlantis")
		require.NoError(t, err)
		assert.Equal(t, Unknown(), d)
	}

	assert.Equal(t, 1, resolver.callsFor("atlantis"))

	entry, err := cache.Lookup(ctx, "atlantis")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Valid)
}

func TestProviderErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	eval, resolver, cache := setupEvaluator(t)

	resolver.failed["moscow"] = &geocoding.ProviderError{Kind: geocoding.ErrorKindRateLimit, Message: "slow down"}

	for range 2 {
		d, err := eval.DistanceBetween(ctx, "Moscow", "Red Square")
		assert.Equal(t, Unknown(), d)
		assert.True(t, geocoding.IsProviderError(err))
		assert.True(t, geocoding.IsRateLimitError(err))
	}

	assert.Equal(t, 2, resolver.callsFor("moscow"))

	entry, err := cache.Lookup(ctx, "moscow")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// once the provider recovers the address resolves normally
	delete(resolver.failed, "moscow")

	d, err := eval.DistanceBetween(ctx, "Moscow", "Red Square")
	require.NoError(t, err)
	assert.True(t, d.Known)
}

func TestInvalidCoordinateIsProviderError(t *testing.T) {
	ctx := context.Background()
	eval, resolver, cache := setupEvaluator(t)

	resolver.known["mars"] = spatial.FromFloat(250, 10)

	_, err := eval.Locate(ctx, "Mars")
	assert.True(t, geocoding.IsProviderError(err))
	assert.True(t, errors.Is(err, geocoding.ErrInvalidCoordinate))

	entry, err := cache.Lookup(ctx, "mars")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestEmptyAddressIsUnknown(t *testing.T) {
	eval, resolver, _ := setupEvaluator(t)

	d, err := eval.DistanceBetween(context.Background(), "   ", "Moscow")
	require.NoError(t, err)
	assert.Equal(t, Unknown(), d)
	assert.Zero(t, resolver.callsFor(""))
}

func TestConcurrentLocate(t *testing.T) {
	ctx := context.Background()
	eval, resolver, _ := setupEvaluator(t)

	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			coord, err := eval.Locate(ctx, "Moscow")
			assert.NoError(t, err)
			assert.NotNil(t, coord)
		}()
	}

	wg.Wait()

	// within a process concurrent misses share one flight
	assert.Equal(t, 1, resolver.callsFor("moscow"))
}

// blockingResolver holds every request until release is closed or the
// request context is done.
type blockingResolver struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	calls   atomic.Int64
}

func (b *blockingResolver) Resolve(ctx context.Context, _ geocoding.Address) (*spatial.Coordinate, error) {
	b.calls.Add(1)
	b.once.Do(func() { close(b.started) })

	select {
	case <-b.release:
		c := spatial.FromFloat(37.6136, 55.7570)

		return &c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCanceledCallerDoesNotFailOthers(t *testing.T) {
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := geocoding.NewDuckDBCache(db)
	require.NoError(t, cache.CreateSchema(context.Background()))

	resolver := &blockingResolver{started: make(chan struct{}), release: make(chan struct{})}
	eval := NewEvaluator(cache, resolver)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)

	go func() {
		_, err := eval.Locate(ctxA, "Tverskaya 1")
		errA <- err
	}()

	select {
	case <-resolver.started:
	case <-time.After(5 * time.Second):
		t.Fatal("resolver was never called")
	}

	type outcome struct {
		coord *spatial.Coordinate
		err   error
	}

	resB := make(chan outcome, 1)

	go func() {
		coord, err := eval.Locate(context.Background(), "tverskaya  1")
		resB <- outcome{coord, err}
	}()

	// let the second caller join the flight
	time.Sleep(50 * time.Millisecond)
	cancelA()

	select {
	case err := <-errA:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(resolver.release)

	select {
	case got := <-resB:
		require.NoError(t, got.err)
		require.NotNil(t, got.coord)
		assert.True(t, got.coord.Equal(spatial.FromFloat(37.6136, 55.7570)))
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}

	assert.Equal(t, int64(1), resolver.calls.Load())
	assert.Zero(t, eval.Metrics.ProviderErrors.Load())

	entry, err := cache.Lookup(context.Background(), "tverskaya 1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Valid)
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A Result `json:"a"`
		B Result `json:"b"`
	}{A: Kilometers(1.23456), B: Unknown()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1.235, "b": null}`, string(data))

	assert.Equal(t, "1.23 km", Kilometers(1.23456).String())
	assert.Equal(t, "unknown", Unknown().String())
}
