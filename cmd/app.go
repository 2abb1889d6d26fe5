// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/starburger/foodcart/dispatch"
	"github.com/starburger/foodcart/distance"
	"github.com/starburger/foodcart/foodcart"
	"github.com/starburger/foodcart/geocoding"
	"github.com/starburger/foodcart/ranking"
)

// app wires the storage, the geocode cache and the evaluator for a command.
type app struct {
	db         *sql.DB
	repo       foodcart.Repository
	cache      geocoding.PersistentCache
	closeCache func()
	evaluator  *distance.Evaluator
	dispatcher *dispatch.Dispatcher
}

func dbFile() string {
	return filepath.Join(rootOptions.DbPath, "foodcart.duckdb")
}

func openApp(ctx context.Context) (*app, error) {
	if err := os.MkdirAll(rootOptions.DbPath, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", dbFile())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{db: db, repo: foodcart.NewRepository(db), closeCache: func() {}}

	if err := a.repo.CreateSchema(ctx); err != nil {
		a.Close()

		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := a.openCache(ctx); err != nil {
		a.Close()

		return nil, err
	}

	resolver, err := newResolver(ctx)
	if err != nil {
		a.Close()

		return nil, err
	}

	a.evaluator = distance.NewEvaluator(a.cache, resolver)

	maxProcs := rootOptions.MaxProcs
	if maxProcs <= 0 {
		maxProcs = ranking.DefaultConcurrency
	}

	a.dispatcher = dispatch.New(a.repo, ranking.NewEngine(a.evaluator, maxProcs))

	return a, nil
}

func (a *app) openCache(ctx context.Context) error {
	switch rootOptions.CacheBackend {
	case cacheBackendPostgres:
		if rootOptions.PostgresURL == "" {
			return errors.New("the postgres cache needs --postgres-url or $FOODCART_POSTGRES_URL")
		}

		pg, err := geocoding.NewPostgresCache(ctx, rootOptions.PostgresURL)
		if err != nil {
			return err
		}

		a.cache = pg
		a.closeCache = pg.Close
	default:
		a.cache = geocoding.NewDuckDBCache(a.db)
	}

	if err := a.cache.CreateSchema(ctx); err != nil {
		return fmt.Errorf("creating geocode cache: %w", err)
	}

	return nil
}

func (a *app) Close() {
	a.closeCache()

	if err := a.db.Close(); err != nil {
		log.Printf("closing database: %v", err)
	}
}

func (a *app) logMetrics() {
	if a.evaluator != nil {
		log.Printf("geocoding metrics - %s", &a.evaluator.Metrics)
	}
}

func newResolver(ctx context.Context) (geocoding.Resolver, error) {
	apiKey := rootOptions.APIKey

	if apiKey == "" && rootOptions.Geocoder == geocoding.ProviderGoogle {
		log.Println("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

		key, err := geocoding.APIKeyFromADC(ctx, rootOptions.GCPProject, geocoding.DefaultKeyDisplayName)
		if err != nil {
			log.Printf("Failed to retrieve API key via ADC: %v", err)
		} else {
			apiKey = key
		}
	}

	if apiKey == "" {
		log.Printf("no API key for the %s geocoder, uncached addresses will fail to resolve", rootOptions.Geocoder)
	}

	return geocoding.NewResolver(&geocoding.Options{
		Provider:            rootOptions.Geocoder,
		APIKey:              apiKey,
		BaseURL:             rootOptions.GeocoderURL,
		Timeout:             rootOptions.GeocoderTimeout,
		UserAgent:           fmt.Sprintf("foodcart/%s (+https://github.com/starburger/foodcart)", Version),
		EnableHTTPTrace:     rootOptions.EnableHTTPTrace,
		EnableHTTPBodyTrace: rootOptions.EnableHTTPBodyTrace,
	})
}
