package fgb

import (
	"bytes"
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roads() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, ls := range []orb.LineString{
		{{10, 10}, {15, 12}},
		{{12, 14}, {20, 16}},
		{{11, 18}, {19, 20}},
	} {
		f := geojson.NewFeature(ls)
		f.Properties = geojson.Properties{
			"name":   []string{"a", "b", "c"}[i],
			"lanes":  float64(i + 1),
			"oneway": i == 0,
		}
		fc.Append(f)
	}
	fc.Features[1].Properties["tags"] = map[string]any{"surface": "gravel"}
	return fc
}

func encode(t *testing.T, fc *geojson.FeatureCollection, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, fc, opts))
	return buf.Bytes()
}

func byName(fc *geojson.FeatureCollection) map[string]*geojson.Feature {
	out := map[string]*geojson.Feature{}
	for _, f := range fc.Features {
		out[f.Properties.MustString("name")] = f
	}
	return out
}

func TestEncodeWritesMagic(t *testing.T) {
	data := encode(t, roads(), Options{})
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62, 0x00}, data[:8])
}

func TestRoundTrip(t *testing.T) {
	data := encode(t, roads(), Options{Name: "roads", CRSCode: 4326})

	fc, h, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "roads", h.Name)
	assert.Equal(t, "LineString", h.GeometryType)
	assert.Equal(t, uint64(3), h.FeaturesCount)
	assert.Equal(t, 4326, h.CRSCode)
	assert.True(t, h.HasIndex)
	assert.Equal(t, []Column{
		{Name: "lanes", Type: "Double"},
		{Name: "name", Type: "String"},
		{Name: "oneway", Type: "Bool"},
		{Name: "tags", Type: "Json"},
	}, h.Columns)

	// Index order is spatial, not insertion order.
	require.Len(t, fc.Features, 3)
	got := byName(fc)
	for name, want := range byName(roads()) {
		f, ok := got[name]
		require.True(t, ok, name)
		assert.Equal(t, want.Geometry, f.Geometry, name)
		assert.Equal(t, want.Properties["lanes"], f.Properties["lanes"], name)
		assert.Equal(t, want.Properties["oneway"], f.Properties["oneway"], name)
	}
	assert.Equal(t, map[string]any{"surface": "gravel"}, got["b"].Properties["tags"])
	assert.NotContains(t, got["a"].Properties, "tags")
}

func TestRoundTripGeometryTypes(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	holed := orb.Polygon{
		{{20, 20}, {30, 20}, {30, 30}, {20, 30}, {20, 20}},
		{{22, 22}, {24, 22}, {24, 24}, {22, 22}},
	}
	geoms := []orb.Geometry{
		orb.Point{1, 2},
		orb.MultiPoint{{1, 1}, {2, 2}},
		orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}, {4, 4}}},
		square,
		holed,
		orb.MultiPolygon{square, holed},
	}

	fc := geojson.NewFeatureCollection()
	for i, g := range geoms {
		f := geojson.NewFeature(g)
		f.Properties = geojson.Properties{"name": string(rune('a' + i))}
		fc.Append(f)
	}

	out, h, err := Decode(encode(t, fc, Options{}))
	require.NoError(t, err)
	assert.Equal(t, "Unknown", h.GeometryType)

	got := byName(out)
	require.Len(t, got, len(geoms))
	for i, g := range geoms {
		assert.Equal(t, g, got[string(rune('a'+i))].Geometry)
	}
}

func TestEncodeSkipsFeaturesWithoutGeometry(t *testing.T) {
	fc := roads()
	fc.Append(&geojson.Feature{Type: "Feature", Properties: geojson.Properties{"name": "nil"}})

	out, h, err := Decode(encode(t, fc, Options{}))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h.FeaturesCount)
	assert.Len(t, out.Features, 3)
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Encode(&buf, nil, Options{}), ErrEmpty)
	assert.ErrorIs(t, Encode(&buf, geojson.NewFeatureCollection(), Options{}), ErrEmpty)
}

func TestDecodeInvalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a flatgeobuf")} {
		_, _, err := Decode(data)
		assert.ErrorIs(t, err, ErrInvalidData)
	}
}

func TestInferSchema(t *testing.T) {
	features := []*geojson.Feature{
		{Properties: geojson.Properties{"n": 1, "mixed": 1.5, "none": nil}},
		{Properties: geojson.Properties{"n": int64(2), "mixed": "x"}},
		nil,
	}
	s := inferSchema(features)
	assert.Equal(t, []string{"mixed", "n", "none"}, s.names)
	assert.Equal(t, []flattypes.ColumnType{
		flattypes.ColumnTypeString,
		flattypes.ColumnTypeLong,
		flattypes.ColumnTypeString,
	}, s.types)
}

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b, want flattypes.ColumnType
	}{
		{flattypes.ColumnTypeInt, flattypes.ColumnTypeDouble, flattypes.ColumnTypeDouble},
		{flattypes.ColumnTypeBool, flattypes.ColumnTypeLong, flattypes.ColumnTypeLong},
		{flattypes.ColumnTypeString, flattypes.ColumnTypeDouble, flattypes.ColumnTypeString},
		{flattypes.ColumnTypeString, flattypes.ColumnTypeJson, flattypes.ColumnTypeJson},
		{flattypes.ColumnTypeJson, flattypes.ColumnTypeBool, flattypes.ColumnTypeJson},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, promote(tt.a, tt.b), "%v + %v", tt.a, tt.b)
		assert.Equal(t, tt.want, promote(tt.b, tt.a), "%v + %v", tt.b, tt.a)
	}
}
