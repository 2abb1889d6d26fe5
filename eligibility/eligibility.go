// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package eligibility decides which restaurants can prepare every product of
// an order.
package eligibility

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidOrder is matched by every error caused by malformed order lines.
var ErrInvalidOrder = errors.New("invalid order")

// MenuItem states whether a restaurant currently offers a product.
type MenuItem struct {
	RestaurantID int64 `json:"restaurant_id"`
	ProductID    int64 `json:"product_id"`
	Available    bool  `json:"availability"`
}

// OrderLine is a product and the quantity requested. Quantity plays no role
// in eligibility.
type OrderLine struct {
	ProductID int64 `json:"product"`
	Quantity  int   `json:"quantity"`
}

// ValidateLines rejects empty orders, non positive quantities and repeated
// products.
func ValidateLines(lines []OrderLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no products", ErrInvalidOrder)
	}

	seen := make(map[int64]struct{}, len(lines))

	for _, line := range lines {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: product %d has quantity %d", ErrInvalidOrder, line.ProductID, line.Quantity)
		}

		if _, dup := seen[line.ProductID]; dup {
			return fmt.Errorf("%w: product %d listed twice", ErrInvalidOrder, line.ProductID)
		}

		seen[line.ProductID] = struct{}{}
	}

	return nil
}

// Snapshot is an immutable index of available menu items. Building one costs
// a single pass over the menu; it can then answer any number of orders.
type Snapshot struct {
	// product -> restaurants offering it
	offers map[int64]map[int64]struct{}
}

// NewSnapshot indexes the available items. Unavailable items are ignored.
func NewSnapshot(items []MenuItem) *Snapshot {
	offers := make(map[int64]map[int64]struct{})

	for _, item := range items {
		if !item.Available {
			continue
		}

		restaurants, ok := offers[item.ProductID]
		if !ok {
			restaurants = make(map[int64]struct{})
			offers[item.ProductID] = restaurants
		}

		restaurants[item.RestaurantID] = struct{}{}
	}

	return &Snapshot{offers: offers}
}

// Offers reports whether restaurantID has productID available.
func (s *Snapshot) Offers(restaurantID, productID int64) bool {
	_, ok := s.offers[productID][restaurantID]

	return ok
}

// Eligible returns, sorted by id, the restaurants offering every product of
// the order. An empty result is not an error.
func (s *Snapshot) Eligible(lines []OrderLine) ([]int64, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	return s.eligible(lines), nil
}

func (s *Snapshot) eligible(lines []OrderLine) []int64 {
	// Start from the product with the fewest offers and probe the rest.
	var rarest map[int64]struct{}

	for _, line := range lines {
		restaurants := s.offers[line.ProductID]
		if len(restaurants) == 0 {
			return []int64{}
		}

		if rarest == nil || len(restaurants) < len(rarest) {
			rarest = restaurants
		}
	}

	result := make([]int64, 0, len(rarest))

	for restaurantID := range rarest {
		if s.offersAll(restaurantID, lines) {
			result = append(result, restaurantID)
		}
	}

	slices.Sort(result)

	return result
}

func (s *Snapshot) offersAll(restaurantID int64, lines []OrderLine) bool {
	for _, line := range lines {
		if !s.Offers(restaurantID, line.ProductID) {
			return false
		}
	}

	return true
}

// IsEligible reports whether restaurantID can prepare the whole order.
func (s *Snapshot) IsEligible(lines []OrderLine, restaurantID int64) (bool, error) {
	if err := ValidateLines(lines); err != nil {
		return false, err
	}

	return s.offersAll(restaurantID, lines), nil
}

// EligibleBatch resolves many orders against the same snapshot. The result
// holds every valid order; the error, if any, joins the failures of the
// invalid ones.
func (s *Snapshot) EligibleBatch(orders map[int64][]OrderLine) (map[int64][]int64, error) {
	ids := make([]int64, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	result := make(map[int64][]int64, len(orders))

	var errs []error

	for _, id := range ids {
		lines := orders[id]
		if err := ValidateLines(lines); err != nil {
			errs = append(errs, fmt.Errorf("order %d: %w", id, err))

			continue
		}

		result[id] = s.eligible(lines)
	}

	return result, errors.Join(errs...)
}
