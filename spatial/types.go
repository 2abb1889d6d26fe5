// Copyright 2025 The StarBurger Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/uber/h3-go/v4"
)

// Precision is the number of fractional digits kept for each axis.
const Precision = 14

// CellResolution is the H3 resolution used to bucket cached coordinates
// (~0.7 km² hexagons, roughly a city block group).
const CellResolution = 8

// ErrInvalidCoordinate is returned when a longitude or latitude is outside of
// its valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

var (
	maxLng = decimal.NewFromInt(180)
	minLng = decimal.NewFromInt(-180)
	maxLat = decimal.NewFromInt(90)
	minLat = decimal.NewFromInt(-90)
)

// Coordinate represents a geographical position as fixed point decimals.
type Coordinate struct {
	Lng decimal.Decimal `json:"lng"`
	Lat decimal.Decimal `json:"lat"`
}

// NewCoordinate builds a coordinate rounded to Precision digits.
func NewCoordinate(lng, lat decimal.Decimal) Coordinate {
	return Coordinate{
		Lng: lng.Round(Precision),
		Lat: lat.Round(Precision),
	}
}

// FromFloat builds a coordinate from float degrees.
func FromFloat(lng, lat float64) Coordinate {
	return NewCoordinate(decimal.NewFromFloat(lng), decimal.NewFromFloat(lat))
}

// ParsePosition parses a "lon lat" pair separated by whitespace, the format
// used by the Yandex geocoder.
func ParsePosition(pos string) (Coordinate, error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("malformed position %q: expected \"lon lat\"", pos)
	}

	lng, err := decimal.NewFromString(parts[0])
	if err != nil {
		return Coordinate{}, fmt.Errorf("malformed longitude %q: %w", parts[0], err)
	}

	lat, err := decimal.NewFromString(parts[1])
	if err != nil {
		return Coordinate{}, fmt.Errorf("malformed latitude %q: %w", parts[1], err)
	}

	return NewCoordinate(lng, lat), nil
}

// Validate checks that lng is in [-180, 180] and lat in [-90, 90].
func (c Coordinate) Validate() error {
	if c.Lng.LessThan(minLng) || c.Lng.GreaterThan(maxLng) {
		return fmt.Errorf("%w: longitude %s out of range", ErrInvalidCoordinate, c.Lng)
	}

	if c.Lat.LessThan(minLat) || c.Lat.GreaterThan(maxLat) {
		return fmt.Errorf("%w: latitude %s out of range", ErrInvalidCoordinate, c.Lat)
	}

	return nil
}

// Equal reports whether both axes are numerically equal.
func (c Coordinate) Equal(other Coordinate) bool {
	return c.Lng.Equal(other.Lng) && c.Lat.Equal(other.Lat)
}

// String returns the "lon lat" representation at full precision.
func (c Coordinate) String() string {
	return c.Lng.StringFixed(Precision) + " " + c.Lat.StringFixed(Precision)
}

// LatLng converts the coordinate into an H3 position.
func (c Coordinate) LatLng() h3.LatLng {
	return h3.NewLatLng(c.Lat.InexactFloat64(), c.Lng.InexactFloat64())
}

// Cell returns the H3 cell containing the coordinate at the given resolution.
func (c Coordinate) Cell(resolution int) (h3.Cell, error) {
	cell, err := h3.LatLngToCell(c.LatLng(), resolution)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", resolution, err)
	}

	return cell, nil
}

// DistanceKm returns the great circle distance to other, in kilometers.
func (c Coordinate) DistanceKm(other Coordinate) float64 {
	return h3.GreatCircleDistanceKm(c.LatLng(), other.LatLng())
}
