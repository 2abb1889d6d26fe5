// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package foodcart

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/starburger/foodcart/eligibility"
)

// SeedData represents the JSON seed file format.
type SeedData struct {
	Version     string                 `json:"version"`
	LastUpdated time.Time              `json:"last_updated"`
	Restaurants []*Restaurant          `json:"restaurants"`
	Categories  []*ProductCategory     `json:"categories"`
	Products    []*Product             `json:"products"`
	MenuItems   []eligibility.MenuItem `json:"menu_items"`
	Orders      []*Order               `json:"orders"`
}

// SeedCounts reports how many records of each kind were imported.
type SeedCounts struct {
	Restaurants int
	Categories  int
	Products    int
	MenuItems   int
	Orders      int
}

func (c SeedCounts) String() string {
	return fmt.Sprintf("%d restaurants, %d categories, %d products, %d menu items, %d orders",
		c.Restaurants, c.Categories, c.Products, c.MenuItems, c.Orders)
}

// ExportToJSON exports the whole catalogue and every order to a JSON file.
func ExportToJSON(ctx context.Context, repo Repository, filepath string) error {
	var (
		seed = &SeedData{Version: "1.0", LastUpdated: time.Now().UTC()}
		err  error
	)

	if seed.Restaurants, err = repo.ListRestaurants(ctx); err != nil {
		return fmt.Errorf("listing restaurants: %w", err)
	}

	if seed.Categories, err = repo.ListCategories(ctx); err != nil {
		return fmt.Errorf("listing categories: %w", err)
	}

	if seed.Products, err = repo.ListProducts(ctx); err != nil {
		return fmt.Errorf("listing products: %w", err)
	}

	if seed.MenuItems, err = repo.ListMenuItems(ctx, false); err != nil {
		return fmt.Errorf("listing menu items: %w", err)
	}

	if seed.Orders, err = repo.ListOrders(ctx); err != nil {
		return fmt.Errorf("listing orders: %w", err)
	}

	data, err := json.MarshalIndent(seed, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// ImportFromJSON loads a seed file. Records with an id are upserted, orders
// with an id already present are skipped.
func ImportFromJSON(ctx context.Context, repo Repository, filepath string) (SeedCounts, error) {
	var counts SeedCounts

	data, err := os.ReadFile(filepath) // #nosec G304 - filepath is provided by admin
	if err != nil {
		return counts, fmt.Errorf("reading file: %w", err)
	}

	var seed SeedData
	if err := json.Unmarshal(data, &seed); err != nil {
		return counts, fmt.Errorf("parsing JSON: %w", err)
	}

	for _, restaurant := range seed.Restaurants {
		if err := repo.SaveRestaurant(ctx, restaurant); err != nil {
			return counts, fmt.Errorf("saving restaurant %s: %w", restaurant.Name, err)
		}

		counts.Restaurants++
	}

	for _, category := range seed.Categories {
		if err := repo.SaveCategory(ctx, category); err != nil {
			return counts, fmt.Errorf("saving category %s: %w", category.Name, err)
		}

		counts.Categories++
	}

	for _, product := range seed.Products {
		if err := repo.SaveProduct(ctx, product); err != nil {
			return counts, fmt.Errorf("saving product %s: %w", product.Name, err)
		}

		counts.Products++
	}

	for _, item := range seed.MenuItems {
		if err := repo.SaveMenuItem(ctx, item); err != nil {
			return counts, fmt.Errorf("saving menu item %d/%d: %w", item.RestaurantID, item.ProductID, err)
		}

		counts.MenuItems++
	}

	for _, order := range seed.Orders {
		if order.ID != 0 {
			if _, err := repo.GetOrder(ctx, order.ID); err == nil {
				continue
			}
		}

		if err := repo.CreateOrder(ctx, order); err != nil {
			return counts, fmt.Errorf("saving order %d: %w", order.ID, err)
		}

		counts.Orders++
	}

	return counts, nil
}

// SeedIfEmpty seeds the database from a JSON file if no restaurant exists.
func SeedIfEmpty(ctx context.Context, repo Repository, filepath string) (bool, SeedCounts, error) {
	restaurants, err := repo.ListRestaurants(ctx)
	if err != nil {
		return false, SeedCounts{}, fmt.Errorf("counting restaurants: %w", err)
	}

	if len(restaurants) > 0 {
		return false, SeedCounts{}, nil
	}

	counts, err := ImportFromJSON(ctx, repo, filepath)
	if err != nil {
		return false, counts, err
	}

	return true, counts, nil
}
