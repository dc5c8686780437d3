// Package ingest turns uploaded GeoJSON and FlatGeobuf files into layer
// descriptors. Decoding failures do not return an error: they come back as
// descriptors with success=false so the registry reports them per file.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-workspace/internal/crs"
	"github.com/joeblew999/geo-workspace/internal/fgb"
	"github.com/joeblew999/geo-workspace/internal/service"
)

// Format names an upload encoding.
type Format string

const (
	FormatAuto       Format = ""
	FormatGeoJSON    Format = "geojson"
	FormatFlatGeobuf Format = "fgb"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown upload format")

var fgbMagic = []byte{0x66, 0x67, 0x62, 0x03}

// ParseFormat accepts "", "geojson", "json", "fgb" and "flatgeobuf".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "geojson", "json":
		return FormatGeoJSON, nil
	case "fgb", "flatgeobuf":
		return FormatFlatGeobuf, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Detect picks the format from the FlatGeobuf magic bytes, falling back to
// GeoJSON.
func Detect(data []byte) Format {
	if bytes.HasPrefix(data, fgbMagic) {
		return FormatFlatGeobuf
	}
	return FormatGeoJSON
}

// LayerName derives a layer name from a file name: "roads.geojson" gives
// "roads".
func LayerName(file string) string {
	base := filepath.Base(file)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Decode converts one uploaded file into a vector descriptor.
func Decode(name string, data []byte, format Format) service.Descriptor {
	if format == FormatAuto {
		format = Detect(data)
	}

	var (
		fc  *geojson.FeatureCollection
		err error
	)
	switch format {
	case FormatFlatGeobuf:
		fc, err = decodeFlatGeobuf(name, data)
	case FormatGeoJSON:
		fc, err = decodeGeoJSON(data)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		diagf("decoding %s as %s: %v", name, format, err)
		return failed(name, err)
	}

	raw, err := json.Marshal(fc)
	if err != nil {
		return failed(name, err)
	}
	return service.Descriptor{Type: service.Vector, Name: name, GeoJSON: raw}
}

func failed(name string, err error) service.Descriptor {
	ok := false
	return service.Descriptor{Type: service.Vector, Name: name, Success: &ok, Error: err.Error()}
}

func decodeFlatGeobuf(name string, data []byte) (*geojson.FeatureCollection, error) {
	fc, h, err := fgb.Decode(data)
	if err != nil {
		return nil, err
	}
	if h.CRSCode != 0 && h.CRSCode != crs.GeographicCode {
		opsf("%s declares EPSG:%d; vector features are drawn as lon/lat without reprojection", name, h.CRSCode)
	}
	return fc, nil
}

// decodeGeoJSON accepts a FeatureCollection, a single Feature or a bare
// geometry.
func decodeGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("not GeoJSON: %w", err)
	}

	switch envelope.Type {
	case "FeatureCollection":
		return geojson.UnmarshalFeatureCollection(data)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		return fc.Append(f), nil
	case "":
		return nil, errors.New("not GeoJSON: missing type")
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	fc := geojson.NewFeatureCollection()
	return fc.Append(geojson.NewFeature(g.Geometry())), nil
}
