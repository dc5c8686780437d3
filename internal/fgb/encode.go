package fgb

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Encode writes the features of fc that carry a geometry as an indexed
// FlatGeobuf file.
func Encode(w io.Writer, fc *geojson.FeatureCollection, opts Options) error {
	var features []*geojson.Feature
	if fc != nil {
		for _, f := range fc.Features {
			if f != nil && f.Geometry != nil && geometryType(f.Geometry) != flattypes.GeometryTypeUnknown {
				features = append(features, f)
			}
		}
	}
	if len(features) == 0 {
		return ErrEmpty
	}

	geoms := make([]orb.Geometry, len(features))
	for i, f := range features {
		geoms[i] = f.Geometry
	}
	s := inferSchema(features)

	// Encode properties up front so a bad value fails the call instead of
	// silently dropping a feature inside the generator.
	props := make([][]byte, len(features))
	for i, f := range features {
		p, err := encodeProperties(f.Properties, s)
		if err != nil {
			return fmt.Errorf("fgb: feature %d: %w", i, err)
		}
		props[i] = p
	}

	b := flatbuffers.NewBuilder(4096)
	header := writer.NewHeader(b)
	header.SetGeometryType(collectionType(geoms))
	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}
	if len(s.names) > 0 {
		cols := make([]*writer.Column, len(s.names))
		for i, name := range s.names {
			col := writer.NewColumn(b)
			col.SetName(name)
			col.SetTitle(name)
			col.SetType(s.types[i])
			col.SetNullable(true)
			cols[i] = col
		}
		header.SetColumns(cols)
	}
	if opts.CRSCode > 0 {
		crs := writer.NewCrs(b)
		crs.SetOrg("EPSG")
		crs.SetCode(int32(opts.CRSCode))
		header.SetCrs(crs)
	}

	gen := &featureGenerator{geoms: geoms, props: props}
	_, err := writer.NewWriter(header, true, gen, nil).Write(w)
	if err != nil {
		return fmt.Errorf("fgb: write: %w", err)
	}
	return nil
}

// featureGenerator feeds prepared features to the upstream writer.
type featureGenerator struct {
	geoms []orb.Geometry
	props [][]byte
	next  int
}

func (g *featureGenerator) Generate() *writer.Feature {
	if g.next >= len(g.geoms) {
		return nil
	}
	i := g.next
	g.next++

	b := flatbuffers.NewBuilder(1024)
	f := writer.NewFeature(b)
	f.SetGeometry(toFGB(g.geoms[i], b))
	if len(g.props[i]) > 0 {
		f.SetProperties(g.props[i])
	}
	return f
}
