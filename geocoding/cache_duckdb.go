// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/starburger/foodcart/spatial"
)

// DuckDBCache stores geocoding outcomes in the embedded DuckDB database.
type DuckDBCache struct {
	db *sql.DB
}

// NewDuckDBCache creates a cache on top of an open DuckDB handle.
func NewDuckDBCache(db *sql.DB) *DuckDBCache {
	return &DuckDBCache{db: db}
}

func (c *DuckDBCache) CreateSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS geocode_cache (
			address VARCHAR PRIMARY KEY,
			lng DECIMAL(17,14),
			lat DECIMAL(16,14),
			valid BOOLEAN NOT NULL,
			h3_cell UBIGINT,
			last_update TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)

	return err
}

const duckdbSelectEntry = `
	SELECT address, CAST(lng AS VARCHAR), CAST(lat AS VARCHAR), valid, COALESCE(h3_cell, 0), last_update
	FROM geocode_cache
`

func (c *DuckDBCache) Lookup(ctx context.Context, address Address) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, duckdbSelectEntry+" WHERE address = ?", address.String())

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", address, err)
	}

	return entry, nil
}

func (c *DuckDBCache) Store(ctx context.Context, address Address, coord *spatial.Coordinate) error {
	entry, err := newEntry(address, coord)
	if err != nil {
		return err
	}

	var lng, lat sql.NullString
	var cell any

	if entry.Valid {
		lng = sql.NullString{String: entry.Coordinate.Lng.StringFixed(spatial.Precision), Valid: true}
		lat = sql.NullString{String: entry.Coordinate.Lat.StringFixed(spatial.Precision), Valid: true}
		cell = int64(entry.H3Cell)
	}

	const maxAttempts = 3

	for attempt := 1; ; attempt++ {
		_, err = c.db.ExecContext(ctx, `
			INSERT INTO geocode_cache (address, lng, lat, valid, h3_cell, last_update)
			VALUES (?, CAST(? AS DECIMAL(17,14)), CAST(? AS DECIMAL(16,14)), ?, ?, ?)
			ON CONFLICT (address) DO UPDATE SET
				lng = excluded.lng,
				lat = excluded.lat,
				valid = excluded.valid,
				h3_cell = excluded.h3_cell,
				last_update = excluded.last_update
		`, address.String(), lng, lat, entry.Valid, cell, entry.LastUpdate)
		if err == nil {
			return nil
		}

		if !isWriteConflict(err) || attempt == maxAttempts {
			return fmt.Errorf("storing %q: %w", address, err)
		}

		// Another writer raced us on the same address. If its row is
		// visible the outcome is already recorded.
		existing, lookupErr := c.Lookup(ctx, address)
		if lookupErr == nil && existing != nil {
			log.Printf("geocode cache: concurrent write for %q resolved by the other writer", address)

			return nil
		}
	}
}

func (c *DuckDBCache) Count(ctx context.Context) (int, error) {
	var count int

	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM geocode_cache").Scan(&count)

	return count, err
}

func (c *DuckDBCache) All(ctx context.Context) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx, duckdbSelectEntry+" ORDER BY address")
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry    Entry
		address  string
		lng, lat sql.NullString
	)

	if err := row.Scan(&address, &lng, &lat, &entry.Valid, &entry.H3Cell, &entry.LastUpdate); err != nil {
		return nil, err
	}

	entry.Address = Address(address)

	if entry.Valid {
		if !lng.Valid || !lat.Valid {
			return nil, fmt.Errorf("entry %q: valid entry without coordinate", address)
		}

		coord, err := parseCoordinate(lng.String, lat.String)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", address, err)
		}

		entry.Coordinate = coord
	}

	return &entry, nil
}

func parseCoordinate(lng, lat string) (*spatial.Coordinate, error) {
	dLng, err := decimal.NewFromString(lng)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude: %w", err)
	}

	dLat, err := decimal.NewFromString(lat)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude: %w", err)
	}

	c := spatial.NewCoordinate(dLng, dLat)

	return &c, nil
}

func isWriteConflict(err error) bool {
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "conflict") ||
		strings.Contains(errStr, "duplicate key")
}
