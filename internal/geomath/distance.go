package geomath

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/floats"
)

// Mode selects how distances and areas are computed.
type Mode string

const (
	// Geodesic treats points as lon/lat degrees on a sphere of
	// orb.EarthRadius and returns meters.
	Geodesic Mode = "geodesic"
	// Planar treats points as x/y coordinates in meters on a flat plane.
	Planar Mode = "planar"
)

// ParseMode accepts "geodesic" or "planar"; the empty string is Geodesic.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Geodesic:
		return Geodesic, nil
	case Planar:
		return Planar, nil
	}
	return "", fmt.Errorf("unknown distance mode %q", s)
}

// Distance returns the distance between a and b in meters.
func (m Mode) Distance(a, b orb.Point) float64 {
	if m == Planar {
		return planar.Distance(a, b)
	}
	return geo.DistanceHaversine(a, b)
}

// PathLength sums the consecutive segment lengths of an open path.
func (m Mode) PathLength(points []orb.Point) float64 {
	if len(points) < 2 {
		return 0
	}
	segments := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		segments = append(segments, m.Distance(points[i-1], points[i]))
	}
	return floats.Sum(segments)
}

// Perimeter returns the length of the ring formed by points, including the
// implicit closing segment from the last point back to the first. The first
// point does not need to be repeated.
func (m Mode) Perimeter(points []orb.Point) float64 {
	if len(points) < 3 {
		return 0
	}
	return m.PathLength(closeRing(points))
}

// Area returns the unsigned area enclosed by points in square meters,
// closing the ring implicitly.
func (m Mode) Area(points []orb.Point) float64 {
	if len(points) < 3 {
		return 0
	}
	ring := orb.Ring(closeRing(points))
	if m == Planar {
		return math.Abs(planar.Area(ring))
	}
	return math.Abs(geo.Area(ring))
}

func closeRing(points []orb.Point) []orb.Point {
	ring := make([]orb.Point, 0, len(points)+1)
	ring = append(ring, points...)
	if !points[0].Equal(points[len(points)-1]) {
		ring = append(ring, points[0])
	}
	return ring
}
