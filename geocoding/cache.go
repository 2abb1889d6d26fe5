// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"fmt"
	"time"

	"github.com/starburger/foodcart/spatial"
)

// Entry is the outcome of geocoding one address. Valid entries carry a
// coordinate, invalid ones record that the provider had no match.
type Entry struct {
	Address    Address             `json:"address"`
	Coordinate *spatial.Coordinate `json:"coordinate,omitempty"`
	Valid      bool                `json:"valid"`
	H3Cell     uint64              `json:"h3_cell,omitempty"`
	LastUpdate time.Time           `json:"last_update"`
}

// Cache is the persistent memory of geocoding outcomes.
type Cache interface {
	// Lookup returns the entry for address, or nil when there is none. It
	// never reaches the provider.
	Lookup(ctx context.Context, address Address) (*Entry, error)

	// Store upserts the outcome for address. A nil coordinate records a
	// NotFound. Storing the same outcome twice leaves a single entry.
	Store(ctx context.Context, address Address, coord *spatial.Coordinate) error
}

// PersistentCache is a Cache backed by a database table.
type PersistentCache interface {
	Cache

	// CreateSchema creates the geocode_cache table
	CreateSchema(ctx context.Context) error

	// Count returns the number of entries
	Count(ctx context.Context) (int, error)

	// All returns every entry sorted by address
	All(ctx context.Context) ([]*Entry, error)
}

func newEntry(address Address, coord *spatial.Coordinate) (*Entry, error) {
	entry := &Entry{
		Address:    address,
		LastUpdate: time.Now().UTC(),
	}

	if coord == nil {
		return entry, nil
	}

	if err := coord.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to cache %q: %w", address, err)
	}

	cell, err := coord.Cell(spatial.CellResolution)
	if err != nil {
		return nil, err
	}

	c := spatial.NewCoordinate(coord.Lng, coord.Lat)
	entry.Coordinate = &c
	entry.Valid = true
	entry.H3Cell = uint64(cell)

	return entry, nil
}
