// Package service holds the layer registry of the geo workspace: the ordered
// set of vector and raster overlays, their rendering attributes, and the
// events emitted when they change.
package service

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-workspace/internal/geomath"
)

// Kind distinguishes vector from raster layers.
type Kind string

const (
	Vector Kind = "vector"
	Raster Kind = "raster"
)

// Default rendering attributes for new layers.
const (
	DefaultOpacity = 0.65
	DefaultColor   = "#ff7800"
)

// Style holds the rendering attributes of a layer.
type Style struct {
	StrokeColor string  `json:"strokeColor" doc:"Stroke color (CSS)" example:"#ff7800"`
	FillColor   string  `json:"fillColor" doc:"Fill color (CSS)" example:"#ff7800"`
	Opacity     float64 `json:"opacity" minimum:"0" maximum:"1" doc:"Layer opacity (0-1)" example:"0.65"`
}

// StylePatch is a partial style update. Nil fields are left unchanged.
type StylePatch struct {
	StrokeColor *string  `json:"strokeColor,omitempty" doc:"Stroke color (CSS)"`
	FillColor   *string  `json:"fillColor,omitempty" doc:"Fill color (CSS)"`
	Opacity     *float64 `json:"opacity,omitempty" doc:"Layer opacity, clamped to 0-1"`
}

// RasterData is a handle to decoded pixels. Either Ref points at a buffer
// kept by the decoder, or Pixels carries the band-interleaved values inline.
type RasterData struct {
	Ref    string    `json:"ref,omitempty" doc:"Decoder buffer reference" example:"uploads/dem.tif#0"`
	Width  int       `json:"width,omitempty" minimum:"0" doc:"Pixel columns"`
	Height int       `json:"height,omitempty" minimum:"0" doc:"Pixel rows"`
	Bands  int       `json:"bands,omitempty" minimum:"0" doc:"Bands per pixel"`
	NoData *float64  `json:"noData,omitempty" doc:"No-data sentinel value"`
	Pixels []float64 `json:"pixels,omitempty" doc:"Band-interleaved pixel values"`
}

// Empty reports whether the handle references no pixels at all.
func (d *RasterData) Empty() bool {
	return d == nil || (d.Ref == "" && len(d.Pixels) == 0)
}

// RasterInfo is the raster part of a layer. Bounds are always geographic
// unless Resolution is "unprojected", in which case they are the source
// bounds kept as-is.
type RasterInfo struct {
	Data        RasterData           `json:"data"`
	Bounds      geomath.LatLngBounds `json:"bounds" doc:"[[minLat,minLng],[maxLat,maxLng]]"`
	SourceBound geomath.LatLngBounds `json:"sourceBounds" doc:"Bounds as declared by the decoder"`
	SourceCRS   string               `json:"sourceCrs,omitempty" doc:"Declared CRS identifier" example:"EPSG:32636"`
	ResolvedCRS string               `json:"resolvedCrs,omitempty" doc:"CRS used to reproject" example:"EPSG:32636"`
	Resolution  string               `json:"resolution" doc:"How bounds were resolved" example:"table"`
	WasGuessed  bool                 `json:"wasGuessed,omitempty" doc:"CRS was inferred from coordinates; placement is approximate"`
	Reason      string               `json:"reason,omitempty" doc:"Why reprojection degraded"`
}

// Layer is one addressable map overlay.
type Layer struct {
	ID       string                     `json:"id" doc:"Unique layer identifier" example:"roads-1"`
	Kind     Kind                       `json:"kind" enum:"vector,raster" doc:"Layer kind"`
	Name     string                     `json:"name" doc:"Display name" example:"roads"`
	Visible  bool                       `json:"visible" doc:"Whether the layer is drawn"`
	Order    int                        `json:"order" doc:"Draw order, 0 is drawn first"`
	Style    Style                      `json:"style"`
	Features *geojson.FeatureCollection `json:"geojson,omitempty" doc:"Vector features"`
	Raster   *RasterInfo                `json:"raster,omitempty" doc:"Raster data and bounds"`
}

// clone copies the mutable parts of a layer so snapshots do not alias
// registry state. Feature collections are shared; they are replaced, never
// edited in place.
func (l Layer) clone() Layer {
	if l.Raster != nil {
		r := *l.Raster
		l.Raster = &r
	}
	return l
}

// Descriptor is a parsed upload handed over by a decoder.
type Descriptor struct {
	Type    Kind            `json:"type" enum:"vector,raster" doc:"Layer kind"`
	Name    string          `json:"name" doc:"Layer name" example:"roads"`
	Success *bool           `json:"success,omitempty" doc:"Decoder outcome; omitted means success"`
	Error   string          `json:"error,omitempty" doc:"Decoder error message"`
	Color   string          `json:"color,omitempty" doc:"Layer color (CSS); generated when empty" example:"#3388ff"`
	GeoJSON json.RawMessage `json:"geojson,omitempty" doc:"FeatureCollection for vector layers"`
	Data    *RasterData     `json:"data,omitempty" doc:"Pixel handle for raster layers"`
	Bounds  *[2][2]float64  `json:"bounds,omitempty" doc:"Raster bounds [[minLat,minLng],[maxLat,maxLng]] in the source CRS"`
	CRS     string          `json:"crs,omitempty" doc:"Source CRS identifier" example:"EPSG:32636"`
}

// Failure reports a descriptor that was not added.
type Failure struct {
	Name   string `json:"name" doc:"Descriptor name"`
	Reason string `json:"reason" doc:"Why it was skipped"`
}
