// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Address
	}{
		{name: "trim", raw: "  Moscow \n", want: "moscow"},
		{name: "collapse whitespace", raw: "Red   Square,\t1", want: "red square, 1"},
		{name: "cyrillic", raw: "МОСКВА, Тверская УЛ., 7", want: "москва, тверская ул., 7"},
		{name: "composition", raw: "Cafe\u0301", want: "caf\u00e9"},
		{name: "empty", raw: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAddress(tt.raw))
		})
	}
}

func TestNormalizeAddressIdentity(t *testing.T) {
	a := NormalizeAddress("Москва, Красная площадь, 1")
	b := NormalizeAddress("  москва,  КРАСНАЯ площадь, 1")

	assert.Equal(t, a, b)
	assert.Equal(t, a, NormalizeAddress(a.String()))
	assert.True(t, NormalizeAddress("").IsEmpty())
}
