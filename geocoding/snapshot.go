// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CacheDump is the JSON file format used to move cache contents around.
type CacheDump struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
	Entries     []*Entry  `json:"entries"`
}

// ExportToJSON writes every cache entry to filepath.
func ExportToJSON(ctx context.Context, cache PersistentCache, filepath string) (int, error) {
	entries, err := cache.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing entries: %w", err)
	}

	dump := &CacheDump{
		Version:     "1.0",
		LastUpdated: time.Now().UTC(),
		Entries:     entries,
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshaling JSON: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0o600); err != nil {
		return 0, fmt.Errorf("writing file: %w", err)
	}

	return len(entries), nil
}

// ImportFromJSON stores every entry found in filepath. Addresses are
// normalized again so dumps written by hand land on the right key.
func ImportFromJSON(ctx context.Context, cache Cache, filepath string) (int, error) {
	data, err := os.ReadFile(filepath) // #nosec G304 - filepath is provided by admin
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	var dump CacheDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	imported := 0

	for _, entry := range dump.Entries {
		address := NormalizeAddress(entry.Address.String())
		if address.IsEmpty() {
			continue
		}

		coord := entry.Coordinate
		if !entry.Valid {
			coord = nil
		}

		if err := cache.Store(ctx, address, coord); err != nil {
			return imported, fmt.Errorf("storing %s: %w", address, err)
		}

		imported++
	}

	return imported, nil
}
