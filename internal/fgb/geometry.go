package fgb

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

func geometryType(g orb.Geometry) flattypes.GeometryType {
	switch g.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Polygon:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case orb.Collection:
		return flattypes.GeometryTypeGeometryCollection
	}
	return flattypes.GeometryTypeUnknown
}

// collectionType is the header geometry type: the shared type of every
// geometry, or Unknown when they differ.
func collectionType(geoms []orb.Geometry) flattypes.GeometryType {
	if len(geoms) == 0 {
		return flattypes.GeometryTypeUnknown
	}
	t := geometryType(geoms[0])
	for _, g := range geoms[1:] {
		if geometryType(g) != t {
			return flattypes.GeometryTypeUnknown
		}
	}
	return t
}

// toFGB returns nil for geometries FlatGeobuf cannot carry.
func toFGB(g orb.Geometry, b *flatbuffers.Builder) *writer.Geometry {
	out := writer.NewGeometry(b)
	switch v := g.(type) {
	case orb.Point:
		out.SetType(flattypes.GeometryTypePoint)
		out.SetXY([]float64{v[0], v[1]})
	case orb.MultiPoint:
		out.SetType(flattypes.GeometryTypeMultiPoint)
		xy, _ := flatten([]orb.LineString{orb.LineString(v)})
		out.SetXY(xy)
	case orb.LineString:
		out.SetType(flattypes.GeometryTypeLineString)
		xy, _ := flatten([]orb.LineString{v})
		out.SetXY(xy)
	case orb.MultiLineString:
		out.SetType(flattypes.GeometryTypeMultiLineString)
		xy, ends := flatten(v)
		out.SetXY(xy)
		out.SetEnds(ends)
	case orb.Polygon:
		out.SetType(flattypes.GeometryTypePolygon)
		xy, ends := flattenPolygon(v)
		out.SetXY(xy)
		out.SetEnds(ends)
	case orb.MultiPolygon:
		out.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			parts = append(parts, *toFGB(poly, b))
		}
		out.SetParts(parts)
	case orb.Collection:
		out.SetType(flattypes.GeometryTypeGeometryCollection)
		parts := make([]writer.Geometry, 0, len(v))
		for _, child := range v {
			if p := toFGB(child, b); p != nil {
				parts = append(parts, *p)
			}
		}
		out.SetParts(parts)
	default:
		return nil
	}
	return out
}

// flatten interleaves the coordinates of lines and records the cumulative
// point count at the end of each.
func flatten(lines []orb.LineString) ([]float64, []uint32) {
	var n int
	for _, l := range lines {
		n += len(l)
	}
	xy := make([]float64, 0, 2*n)
	ends := make([]uint32, 0, len(lines))
	for _, l := range lines {
		for _, p := range l {
			xy = append(xy, p[0], p[1])
		}
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

func flattenPolygon(p orb.Polygon) ([]float64, []uint32) {
	lines := make([]orb.LineString, len(p))
	for i, r := range p {
		lines[i] = orb.LineString(r)
	}
	return flatten(lines)
}

func fromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		pts := points(g, 0, g.XyLength()/2)
		if len(pts) == 0 {
			return nil
		}
		return pts[0]
	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(points(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeLineString:
		return orb.LineString(points(g, 0, g.XyLength()/2))
	case flattypes.GeometryTypeMultiLineString:
		parts := split(g)
		mls := make(orb.MultiLineString, len(parts))
		for i, p := range parts {
			mls[i] = orb.LineString(p)
		}
		return mls
	case flattypes.GeometryTypePolygon:
		return polygon(g)
	case flattypes.GeometryTypeMultiPolygon:
		mp := make(orb.MultiPolygon, 0, g.PartsLength())
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				mp = append(mp, polygon(&part))
			}
		}
		return mp
	case flattypes.GeometryTypeGeometryCollection:
		c := make(orb.Collection, 0, g.PartsLength())
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if !g.Parts(&part, i) {
				continue
			}
			if child := fromFGB(&part); child != nil {
				c = append(c, child)
			}
		}
		return c
	}
	return nil
}

func polygon(g *flattypes.Geometry) orb.Polygon {
	parts := split(g)
	poly := make(orb.Polygon, len(parts))
	for i, p := range parts {
		poly[i] = orb.Ring(p)
	}
	return poly
}

// split cuts the coordinate array at the ends offsets. Without ends the
// whole array is one part.
func split(g *flattypes.Geometry) [][]orb.Point {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		return [][]orb.Point{points(g, 0, n)}
	}
	out := make([][]orb.Point, 0, g.EndsLength())
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := min(int(g.Ends(i)), n)
		if end < start {
			break
		}
		out = append(out, points(g, start, end))
		start = end
	}
	return out
}

// points reads coordinates [from, to).
func points(g *flattypes.Geometry, from, to int) []orb.Point {
	pts := make([]orb.Point, 0, max(0, to-from))
	for i := from; i < to; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}
