// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch answers which restaurants can take an order and how far
// each of them is from the customer.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/starburger/foodcart/distance"
	"github.com/starburger/foodcart/eligibility"
	"github.com/starburger/foodcart/foodcart"
	"github.com/starburger/foodcart/ranking"
)

// Store is the subset of the repository the dispatcher reads.
type Store interface {
	GetOrder(ctx context.Context, id int64) (*foodcart.Order, error)
	ListOrders(ctx context.Context, statuses ...foodcart.OrderStatus) ([]*foodcart.Order, error)
	ListRestaurants(ctx context.Context) ([]*foodcart.Restaurant, error)
	MenuSnapshot(ctx context.Context) (*eligibility.Snapshot, error)
}

// Candidate is an eligible restaurant and its distance to the order.
type Candidate struct {
	Restaurant *foodcart.Restaurant `json:"restaurant"`
	Distance   distance.Result      `json:"distance_km"`
}

// GeocodingFailure explains an unknown distance caused by a provider error.
type GeocodingFailure struct {
	RestaurantID int64  `json:"restaurant_id"`
	Error        string `json:"error"`
}

// Assignment is the ranked list of restaurants able to prepare an order.
// An empty Restaurants slice means no restaurant can prepare it.
type Assignment struct {
	OrderID     int64              `json:"order_id"`
	Restaurants []Candidate        `json:"restaurants"`
	Failures    []GeocodingFailure `json:"geocoding_errors,omitempty"`
}

// Dispatcher combines eligibility and ranking.
type Dispatcher struct {
	store  Store
	engine *ranking.Engine
}

// New creates a dispatcher.
func New(store Store, engine *ranking.Engine) *Dispatcher {
	return &Dispatcher{store: store, engine: engine}
}

// ResolveAndRank returns the restaurants that can prepare the whole order,
// nearest first.
func (d *Dispatcher) ResolveAndRank(ctx context.Context, orderID int64) (*Assignment, error) {
	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	snapshot, err := d.store.MenuSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading menu: %w", err)
	}

	eligible, err := snapshot.Eligible(order.Lines())
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}

	restaurants, err := d.restaurantsByID(ctx)
	if err != nil {
		return nil, err
	}

	return d.rank(ctx, order, eligible, restaurants)
}

// IsEligible reports whether restaurantID can prepare the whole order.
func (d *Dispatcher) IsEligible(ctx context.Context, orderID, restaurantID int64) (bool, error) {
	order, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}

	snapshot, err := d.store.MenuSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("reading menu: %w", err)
	}

	ok, err := snapshot.IsEligible(order.Lines(), restaurantID)
	if err != nil {
		return false, fmt.Errorf("order %d: %w", orderID, err)
	}

	return ok, nil
}

// ResolveAndRankAll does ResolveAndRank for every order with one of the
// given statuses, reading the menu once. Orders that cannot be resolved are
// logged and left out.
func (d *Dispatcher) ResolveAndRankAll(ctx context.Context, statuses ...foodcart.OrderStatus) ([]*Assignment, error) {
	orders, err := d.store.ListOrders(ctx, statuses...)
	if err != nil {
		return nil, err
	}

	snapshot, err := d.store.MenuSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading menu: %w", err)
	}

	restaurants, err := d.restaurantsByID(ctx)
	if err != nil {
		return nil, err
	}

	lines := make(map[int64][]eligibility.OrderLine, len(orders))
	for _, order := range orders {
		lines[order.ID] = order.Lines()
	}

	eligible, err := snapshot.EligibleBatch(lines)
	if err != nil {
		log.Printf("skipping invalid orders: %v", err)
	}

	assignments := make([]*Assignment, 0, len(orders))

	for _, order := range orders {
		ids, ok := eligible[order.ID]
		if !ok {
			continue
		}

		assignment, err := d.rank(ctx, order, ids, restaurants)
		if err != nil {
			return nil, err
		}

		assignments = append(assignments, assignment)
	}

	return assignments, nil
}

func (d *Dispatcher) restaurantsByID(ctx context.Context) (map[int64]*foodcart.Restaurant, error) {
	restaurants, err := d.store.ListRestaurants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}

	byID := make(map[int64]*foodcart.Restaurant, len(restaurants))
	for _, r := range restaurants {
		byID[r.ID] = r
	}

	return byID, nil
}

func (d *Dispatcher) rank(
	ctx context.Context,
	order *foodcart.Order,
	eligible []int64,
	restaurants map[int64]*foodcart.Restaurant,
) (*Assignment, error) {
	candidates := make([]ranking.Candidate, 0, len(eligible))

	for _, id := range eligible {
		r, ok := restaurants[id]
		if !ok {
			// menu items pointing at a deleted restaurant
			continue
		}

		candidates = append(candidates, ranking.Candidate{RestaurantID: id, Address: r.Address})
	}

	ranked, err := d.engine.Rank(ctx, order.Address, candidates)
	if err != nil {
		return nil, fmt.Errorf("ranking order %d: %w", order.ID, err)
	}

	assignment := &Assignment{
		OrderID:     order.ID,
		Restaurants: make([]Candidate, len(ranked.Restaurants)),
	}

	for i, r := range ranked.Restaurants {
		assignment.Restaurants[i] = Candidate{Restaurant: restaurants[r.RestaurantID], Distance: r.Distance}
	}

	for _, f := range ranked.Failures {
		log.Printf("order %d: distance to restaurant %d unknown: %v", order.ID, f.RestaurantID, f.Err)
		assignment.Failures = append(assignment.Failures, GeocodingFailure{
			RestaurantID: f.RestaurantID,
			Error:        f.Err.Error(),
		})
	}

	return assignment, nil
}
