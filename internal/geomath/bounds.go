// Package geomath holds the stateless geometry helpers shared by the layer
// registry, the CRS resolver and the measurement manager: bounding boxes,
// point distances, ring area and perimeter, and unit conversion tables.
//
// Coordinates are orb.Point values in x/y order, which for geographic data
// means longitude first. The wire form of a bounding box follows the map
// client convention of [[minLat, minLng], [maxLat, maxLng]] and is handled
// by LatLngBounds.
package geomath

import (
	"math"

	"github.com/paulmach/orb"
)

// LatLngBounds is a bounding box as two [lat, lng] corners, south-west then
// north-east. For projected data the same slots hold [northing, easting].
type LatLngBounds [2][2]float64

// FromBound converts an orb.Bound (x = lng, y = lat) to corner form.
func FromBound(b orb.Bound) LatLngBounds {
	return LatLngBounds{
		{b.Min[1], b.Min[0]},
		{b.Max[1], b.Max[0]},
	}
}

// Bound converts the corners to an orb.Bound, ordering min and max so that
// corners given in either order produce the same box.
func (l LatLngBounds) Bound() orb.Bound {
	a := orb.Point{l[0][1], l[0][0]}
	b := orb.Point{l[1][1], l[1][0]}
	return Normalize(orb.Bound{Min: a, Max: b})
}

// Normalize swaps coordinates where min exceeds max.
func Normalize(b orb.Bound) orb.Bound {
	if b.Min[0] > b.Max[0] {
		b.Min[0], b.Max[0] = b.Max[0], b.Min[0]
	}
	if b.Min[1] > b.Max[1] {
		b.Min[1], b.Max[1] = b.Max[1], b.Min[1]
	}
	return b
}

// Finite reports whether every coordinate of the box is a real number.
func Finite(b orb.Bound) bool {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidBounds reports whether b is finite and ordered (min <= max on both
// axes). A zero-extent box around a single point is valid.
func ValidBounds(b orb.Bound) bool {
	return Finite(b) && b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1]
}

// Degenerate reports whether b cannot be shown as an extent: invalid, or
// collapsed to a single point.
func Degenerate(b orb.Bound) bool {
	if !ValidBounds(b) {
		return true
	}
	return b.Min[0] == b.Max[0] && b.Min[1] == b.Max[1]
}

// IsGeographic reports whether every corner of b lies inside the
// longitude/latitude ranges [-180, 180] x [-90, 90].
func IsGeographic(b orb.Bound) bool {
	if !Finite(b) {
		return false
	}
	for _, p := range []orb.Point{b.Min, b.Max} {
		if p[0] < -180 || p[0] > 180 || p[1] < -90 || p[1] > 90 {
			return false
		}
	}
	return true
}

// Union extends a by b. The boolean reports whether a held a box before the
// call; callers accumulating over a list seed with ok=false.
func Union(a orb.Bound, ok bool, b orb.Bound) orb.Bound {
	if !ok {
		return b
	}
	return a.Union(b)
}
