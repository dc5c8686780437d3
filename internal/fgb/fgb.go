// Package fgb encodes vector layers to FlatGeobuf and decodes uploaded
// FlatGeobuf files back into feature collections.
//
// Files are always written with a packed Hilbert R-tree index; decoding
// requires one, since features are enumerated through an index search.
package fgb

import "errors"

// Common errors.
var (
	ErrEmpty       = errors.New("fgb: no features to write")
	ErrInvalidData = errors.New("fgb: invalid data")
	ErrNoIndex     = errors.New("fgb: file has no spatial index")
)

// Options configure Encode.
type Options struct {
	Name        string // Layer name stored in the header
	Description string
	CRSCode     int // EPSG code; 0 writes no CRS
}

// Column describes one property column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Header is the metadata of a decoded file.
type Header struct {
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	GeometryType  string     `json:"geometryType"`
	FeaturesCount uint64     `json:"featuresCount"`
	Envelope      [4]float64 `json:"envelope"` // minX, minY, maxX, maxY
	CRSCode       int        `json:"crsCode,omitempty"`
	HasIndex      bool       `json:"hasIndex"`
	Columns       []Column   `json:"columns,omitempty"`
}
