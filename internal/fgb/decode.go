package fgb

import (
	"fmt"
	"math"

	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb/geojson"
)

// Decode reads every feature of a FlatGeobuf file.
func Decode(data []byte) (*geojson.FeatureCollection, Header, error) {
	file, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	h := file.Header()
	if h == nil {
		return nil, Header{}, fmt.Errorf("%w: missing header", ErrInvalidData)
	}
	header := readHeader(h)

	fc := geojson.NewFeatureCollection()
	if header.FeaturesCount == 0 {
		return fc, header, nil
	}
	if !header.HasIndex {
		return nil, header, ErrNoIndex
	}

	// The header envelope is optional, so search the whole plane.
	found, err := file.Search(-math.MaxFloat64, -math.MaxFloat64, math.MaxFloat64, math.MaxFloat64)
	if err != nil {
		return nil, header, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	for _, f := range found {
		feature, err := readFeature(f, h)
		if err != nil {
			return nil, header, err
		}
		if feature != nil {
			fc.Append(feature)
		}
	}
	return fc, header, nil
}

func readHeader(h *flattypes.Header) Header {
	out := Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}
	if h.EnvelopeLength() >= 4 {
		for i := range out.Envelope {
			out.Envelope[i] = h.Envelope(i)
		}
	}
	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		out.CRSCode = int(crs.Code())
	}
	for i := 0; i < h.ColumnsLength(); i++ {
		var col flattypes.Column
		if h.Columns(&col, i) {
			out.Columns = append(out.Columns, Column{
				Name: string(col.Name()),
				Type: flattypes.EnumNamesColumnType[col.Type()],
			})
		}
	}
	return out
}

// readFeature returns nil for features without a usable geometry.
func readFeature(f *flattypes.Feature, h *flattypes.Header) (*geojson.Feature, error) {
	if f == nil {
		return nil, nil
	}
	var g flattypes.Geometry
	if f.Geometry(&g) == nil {
		return nil, nil
	}
	geom := fromFGB(&g)
	if geom == nil {
		return nil, nil
	}
	feature := geojson.NewFeature(geom)

	if n := f.PropertiesLength(); n > 0 && h.ColumnsLength() > 0 {
		raw := make([]byte, n)
		for i := range raw {
			raw[i] = byte(f.Properties(i))
		}
		props, err := decodeProperties(raw, h)
		if err != nil {
			return nil, err
		}
		feature.Properties = props
	}
	return feature, nil
}
