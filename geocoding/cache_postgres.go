// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/starburger/foodcart/spatial"
)

// PostgresCache stores geocoding outcomes in a PostgreSQL table so that
// several service instances share a single cache.
type PostgresCache struct {
	pool *pgxpool.Pool
}

// NewPostgresCache connects to databaseURL and verifies the connection.
func NewPostgresCache(ctx context.Context, databaseURL string) (*PostgresCache, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresCache{pool: pool}, nil
}

// Close releases the pool.
func (c *PostgresCache) Close() {
	c.pool.Close()
}

func (c *PostgresCache) CreateSchema(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lng NUMERIC(17,14),
			lat NUMERIC(16,14),
			valid BOOLEAN NOT NULL,
			h3_cell BIGINT,
			last_update TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)

	return err
}

const postgresSelectEntry = `
	SELECT address, lng::text, lat::text, valid, COALESCE(h3_cell, 0), last_update
	FROM geocode_cache
`

func (c *PostgresCache) Lookup(ctx context.Context, address Address) (*Entry, error) {
	row := c.pool.QueryRow(ctx, postgresSelectEntry+" WHERE address = $1", address.String())

	entry, err := scanPostgresEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", address, err)
	}

	return entry, nil
}

func (c *PostgresCache) Store(ctx context.Context, address Address, coord *spatial.Coordinate) error {
	entry, err := newEntry(address, coord)
	if err != nil {
		return err
	}

	var lng, lat *string
	var cell *int64

	if entry.Valid {
		lngStr := entry.Coordinate.Lng.StringFixed(spatial.Precision)
		latStr := entry.Coordinate.Lat.StringFixed(spatial.Precision)
		h3Cell := int64(entry.H3Cell)
		lng, lat, cell = &lngStr, &latStr, &h3Cell
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address, lng, lat, valid, h3_cell, last_update)
		VALUES ($1, CAST($2::text AS NUMERIC(17,14)), CAST($3::text AS NUMERIC(16,14)), $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			lng = EXCLUDED.lng,
			lat = EXCLUDED.lat,
			valid = EXCLUDED.valid,
			h3_cell = EXCLUDED.h3_cell,
			last_update = EXCLUDED.last_update
	`, address.String(), lng, lat, entry.Valid, cell, entry.LastUpdate)
	if err != nil {
		return fmt.Errorf("storing %q: %w", address, err)
	}

	return nil
}

func (c *PostgresCache) Count(ctx context.Context) (int, error) {
	var count int

	err := c.pool.QueryRow(ctx, "SELECT COUNT(*) FROM geocode_cache").Scan(&count)

	return count, err
}

func (c *PostgresCache) All(ctx context.Context) ([]*Entry, error) {
	rows, err := c.pool.Query(ctx, postgresSelectEntry+" ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry

	for rows.Next() {
		entry, err := scanPostgresEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func scanPostgresEntry(row pgx.Row) (*Entry, error) {
	var (
		entry    Entry
		address  string
		lng, lat *string
		cell     int64
	)

	if err := row.Scan(&address, &lng, &lat, &entry.Valid, &cell, &entry.LastUpdate); err != nil {
		return nil, err
	}

	entry.Address = Address(address)
	entry.H3Cell = uint64(cell)

	if entry.Valid {
		if lng == nil || lat == nil {
			return nil, fmt.Errorf("entry %q: valid entry without coordinate", address)
		}

		coord, err := parseCoordinate(*lng, *lat)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", address, err)
		}

		entry.Coordinate = coord
	}

	return &entry, nil
}
