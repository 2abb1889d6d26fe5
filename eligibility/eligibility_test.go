// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package eligibility

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	restaurantA = 1
	restaurantB = 2
	productP1   = 10
	productP2   = 20
)

func TestEligibleScenario(t *testing.T) {
	snapshot := NewSnapshot([]MenuItem{
		{RestaurantID: restaurantA, ProductID: productP1, Available: true},
		{RestaurantID: restaurantA, ProductID: productP2, Available: true},
		{RestaurantID: restaurantB, ProductID: productP1, Available: true},
		{RestaurantID: restaurantB, ProductID: productP2, Available: false},
	})

	got, err := snapshot.Eligible([]OrderLine{
		{ProductID: productP1, Quantity: 2},
		{ProductID: productP2, Quantity: 1},
	})
	require.NoError(t, err)

	if diff := cmp.Diff([]int64{restaurantA}, got); diff != "" {
		t.Errorf("Eligible() mismatch (-want +got):\n%s", diff)
	}

	ok, err := snapshot.IsEligible([]OrderLine{{ProductID: productP1, Quantity: 1}, {ProductID: productP2, Quantity: 1}}, restaurantB)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = snapshot.Eligible([]OrderLine{{ProductID: productP1, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, []int64{restaurantA, restaurantB}, got)
}

func TestEligibleEmpty(t *testing.T) {
	got, err := NewSnapshot(nil).Eligible([]OrderLine{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	assert.Empty(t, got)

	snapshot := NewSnapshot([]MenuItem{{RestaurantID: 1, ProductID: 1, Available: true}})

	got, err = snapshot.Eligible([]OrderLine{{ProductID: 1, Quantity: 1}, {ProductID: 99, Quantity: 3}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvalidOrder(t *testing.T) {
	snapshot := NewSnapshot([]MenuItem{{RestaurantID: 1, ProductID: 1, Available: true}})

	tests := []struct {
		name  string
		lines []OrderLine
	}{
		{name: "no lines", lines: nil},
		{name: "empty lines", lines: []OrderLine{}},
		{name: "zero quantity", lines: []OrderLine{{ProductID: 1, Quantity: 0}}},
		{name: "duplicate product", lines: []OrderLine{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := snapshot.Eligible(tt.lines)
			assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)

			_, err = snapshot.IsEligible(tt.lines, 1)
			assert.True(t, errors.Is(err, ErrInvalidOrder), "got %v", err)
		})
	}
}

func TestEligibleBatch(t *testing.T) {
	snapshot := NewSnapshot([]MenuItem{
		{RestaurantID: restaurantA, ProductID: productP1, Available: true},
		{RestaurantID: restaurantA, ProductID: productP2, Available: true},
		{RestaurantID: restaurantB, ProductID: productP1, Available: true},
	})

	got, err := snapshot.EligibleBatch(map[int64][]OrderLine{
		100: {{ProductID: productP1, Quantity: 1}},
		101: {{ProductID: productP1, Quantity: 1}, {ProductID: productP2, Quantity: 1}},
		102: {{ProductID: 999, Quantity: 1}},
		103: {},
	})

	assert.True(t, errors.Is(err, ErrInvalidOrder))
	assert.ErrorContains(t, err, "order 103")

	want := map[int64][]int64{
		100: {restaurantA, restaurantB},
		101: {restaurantA},
		102: {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EligibleBatch() mismatch (-want +got):\n%s", diff)
	}
}

// bruteForce checks every restaurant against every line, the way the menu
// would be read by hand.
func bruteForce(items []MenuItem, restaurants []int64, lines []OrderLine) []int64 {
	result := []int64{}

	for _, r := range restaurants {
		ok := true

		for _, line := range lines {
			found := false

			for _, item := range items {
				if item.RestaurantID == r && item.ProductID == line.ProductID && item.Available {
					found = true

					break
				}
			}

			if !found {
				ok = false

				break
			}
		}

		if ok {
			result = append(result, r)
		}
	}

	return result
}

func TestEligibleMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := range 200 {
		numRestaurants := 1 + rng.Intn(8)
		numProducts := 1 + rng.Intn(10)

		restaurants := make([]int64, numRestaurants)
		for i := range restaurants {
			restaurants[i] = int64(i + 1)
		}

		var items []MenuItem

		for _, r := range restaurants {
			for p := 1; p <= numProducts; p++ {
				if rng.Intn(3) == 0 {
					continue
				}

				items = append(items, MenuItem{RestaurantID: r, ProductID: int64(p), Available: rng.Intn(4) != 0})
			}
		}

		products := rng.Perm(numProducts + 2)[:1+rng.Intn(numProducts)]
		lines := make([]OrderLine, len(products))

		for i, p := range products {
			lines[i] = OrderLine{ProductID: int64(p + 1), Quantity: 1 + rng.Intn(5)}
		}

		snapshot := NewSnapshot(items)

		got, err := snapshot.Eligible(lines)
		require.NoError(t, err)

		want := bruteForce(items, restaurants, lines)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round %d: Eligible() mismatch (-want +got):\n%s", round, diff)
		}

		for _, r := range restaurants {
			ok, err := snapshot.IsEligible(lines, r)
			require.NoError(t, err)
			assert.Equal(t, slices.Contains(want, r), ok)
		}
	}
}
