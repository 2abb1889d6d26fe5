// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Address is a normalized postal address. It is both the cache key and the
// query sent to the geocoding provider.
type Address string

// NormalizeAddress composes the string into NFC, trims it, collapses internal
// whitespace runs into a single space and applies Unicode case folding.
func NormalizeAddress(raw string) Address {
	s := norm.NFC.String(raw)
	s = strings.Join(strings.Fields(s), " ")

	// Casers keep state, so a fresh one is built on each call.
	return Address(cases.Fold().String(s))
}

// IsEmpty reports whether there is nothing to geocode.
func (a Address) IsEmpty() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}
