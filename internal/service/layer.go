package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/geo-workspace/internal/crs"
	"github.com/joeblew999/geo-workspace/internal/geomath"
)

// Common errors.
var (
	ErrInvalidGeometry   = errors.New("invalid geometry")
	ErrMissingBounds     = errors.New("raster has no usable bounds")
	ErrMissingRasterData = errors.New("raster has no pixel data")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrDecoderFailed     = errors.New("decoder failed")
	ErrUnknownKind       = errors.New("unknown layer kind")
	ErrLayerNotFound     = errors.New("layer not found")
	ErrNotVector         = errors.New("layer is not a vector layer")
)

// BoundsResolver normalizes raster bounds into geographic coordinates.
// *crs.Resolver satisfies it.
type BoundsResolver interface {
	Resolve(ctx context.Context, raw orb.Bound, declared string) crs.Result
}

// Registry is the ordered collection of layers. Index 0 is drawn first.
type Registry struct {
	resolver BoundsResolver

	// ingest serializes AddLayers so bound resolution of two batches never
	// interleaves; mu guards the layer state itself.
	ingest sync.Mutex
	mu     sync.RWMutex
	layers []Layer
	seq    int
}

// NewRegistry creates an empty registry.
func NewRegistry(resolver BoundsResolver) *Registry {
	return &Registry{resolver: resolver}
}

// AddLayers validates and appends a batch of descriptors. Each descriptor
// succeeds or fails on its own. When exactly one descriptor is given and
// name is not empty, it replaces the descriptor's name.
func (r *Registry) AddLayers(ctx context.Context, descs []Descriptor, name string) ([]Layer, []Failure) {
	r.ingest.Lock()
	defer r.ingest.Unlock()

	type prepared struct {
		layer Layer
		color string
	}
	var (
		ready    []prepared
		failures []Failure
	)
	for _, d := range descs {
		if len(descs) == 1 && strings.TrimSpace(name) != "" {
			d.Name = strings.TrimSpace(name)
		}
		l, err := r.prepare(ctx, d)
		if err != nil {
			diagf("skipping %q: %v", d.Name, err)
			failures = append(failures, Failure{Name: d.Name, Reason: err.Error()})
			continue
		}
		ready = append(ready, prepared{layer: l, color: d.Color})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added := make([]Layer, 0, len(ready))
	for _, p := range ready {
		l := p.layer
		r.seq++
		l.ID = layerID(l.Name, r.seq)
		color := p.color
		if color == "" {
			color = paletteColor(r.seq - 1)
		}
		l.Style = Style{StrokeColor: color, FillColor: color, Opacity: DefaultOpacity}
		l.Visible = true
		l.Order = len(r.layers)
		r.layers = append(r.layers, l)
		added = append(added, l.clone())
	}
	return added, failures
}

// prepare turns a descriptor into a layer without touching registry state.
func (r *Registry) prepare(ctx context.Context, d Descriptor) (Layer, error) {
	if d.Success != nil && !*d.Success {
		if d.Error != "" {
			return Layer{}, fmt.Errorf("%w: %s", ErrDecoderFailed, d.Error)
		}
		return Layer{}, ErrDecoderFailed
	}
	if strings.TrimSpace(d.Name) == "" {
		d.Name = "untitled"
	}

	switch d.Type {
	case Vector:
		fc, err := parseFeatureCollection(d.GeoJSON)
		if err != nil {
			return Layer{}, err
		}
		return Layer{Kind: Vector, Name: d.Name, Features: fc}, nil

	case Raster:
		if d.Bounds == nil {
			return Layer{}, ErrMissingBounds
		}
		raw := geomath.LatLngBounds(*d.Bounds).Bound()
		if !geomath.Finite(raw) {
			return Layer{}, fmt.Errorf("%w: non-finite bounds %v", ErrMissingBounds, *d.Bounds)
		}
		if d.Data.Empty() {
			return Layer{}, ErrMissingRasterData
		}

		info := &RasterInfo{
			Data:        *d.Data,
			SourceBound: geomath.FromBound(raw),
			SourceCRS:   d.CRS,
		}
		res := crs.Result{Bounds: raw, Method: crs.MethodUnprojected, Reason: "no resolver"}
		if r.resolver != nil {
			res = r.resolver.Resolve(ctx, raw, d.CRS)
		}
		info.Bounds = geomath.FromBound(res.Bounds)
		info.ResolvedCRS = res.CRS
		info.Resolution = string(res.Method)
		info.WasGuessed = res.WasGuessed
		info.Reason = res.Reason
		return Layer{Kind: Raster, Name: d.Name, Raster: info}, nil
	}
	return Layer{}, fmt.Errorf("%w %q", ErrUnknownKind, d.Type)
}

// parseFeatureCollection checks the GeoJSON envelope before decoding it, so
// a missing "type" or "features" member is reported as such.
func parseFeatureCollection(raw json.RawMessage) (*geojson.FeatureCollection, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: no geojson", ErrInvalidGeometry)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	var typ string
	if err := json.Unmarshal(envelope["type"], &typ); err != nil || typ != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type must be FeatureCollection", ErrInvalidGeometry)
	}
	if _, ok := envelope["features"]; !ok {
		return nil, fmt.Errorf("%w: missing features", ErrInvalidGeometry)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if fc.Features == nil {
		return nil, fmt.Errorf("%w: features must be an array", ErrInvalidGeometry)
	}
	return fc, nil
}

// Get returns a layer by ID.
func (r *Registry) Get(id string) (Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.index(id)
	if i < 0 {
		return Layer{}, false
	}
	return r.layers[i].clone(), true
}

// Snapshot returns the layers in draw order.
func (r *Registry) Snapshot() []Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Layer, len(r.layers))
	for i, l := range r.layers {
		out[i] = l.clone()
	}
	return out
}

// Len returns the number of layers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// Seq returns the number of IDs handed out so far.
func (r *Registry) Seq() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// SetVisibility shows or hides a layer. Returns false if id is unknown.
func (r *Registry) SetVisibility(id string, visible bool) bool {
	return r.update(id, func(l *Layer) { l.Visible = visible })
}

// SetStyle applies the non-nil fields of p. Opacity is clamped to [0,1].
func (r *Registry) SetStyle(id string, p StylePatch) bool {
	return r.update(id, func(l *Layer) {
		if p.StrokeColor != nil {
			l.Style.StrokeColor = *p.StrokeColor
		}
		if p.FillColor != nil {
			l.Style.FillColor = *p.FillColor
		}
		if p.Opacity != nil && !math.IsNaN(*p.Opacity) {
			l.Style.Opacity = clampOpacity(*p.Opacity)
		}
	})
}

// Rename changes a layer's display name. Blank names are ignored.
func (r *Registry) Rename(id, name string) bool {
	name = strings.TrimSpace(name)
	return r.update(id, func(l *Layer) {
		if name != "" {
			l.Name = name
		}
	})
}

// SetFeatures replaces a vector layer's feature collection with raw, which
// must be a GeoJSON FeatureCollection. Bounds follow the new features.
func (r *Registry) SetFeatures(id string, raw json.RawMessage) error {
	fc, err := parseFeatureCollection(raw)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrLayerNotFound, id)
	}
	if r.layers[i].Kind != Vector {
		return fmt.Errorf("%w: %q", ErrNotVector, id)
	}
	r.layers[i].Features = fc
	return nil
}

func (r *Registry) update(id string, fn func(*Layer)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return false
	}
	fn(&r.layers[i])
	return true
}

// Reorder moves the layer at from to position to, shifting the layers in
// between. Both indices must be within the current length.
func (r *Registry) Reorder(from, to int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.layers)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: reorder %d -> %d with %d layers", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}
	l := r.layers[from]
	r.layers = append(r.layers[:from], r.layers[from+1:]...)
	r.layers = append(r.layers[:to], append([]Layer{l}, r.layers[to:]...)...)
	r.renumber()
	return nil
}

// Remove deletes a layer. Returns false if id is unknown.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return false
	}
	r.layers = append(r.layers[:i], r.layers[i+1:]...)
	r.renumber()
	return true
}

// ComputeBounds returns a layer's extent. Vector extents are computed from
// the current features on every call. The second result is false when the
// layer is unknown or has no non-degenerate extent.
func (r *Registry) ComputeBounds(id string) (orb.Bound, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.index(id)
	if i < 0 {
		return orb.Bound{}, false
	}
	return layerBounds(r.layers[i])
}

// VisibleBounds returns the union of the extents of all visible layers.
func (r *Registry) VisibleBounds() (orb.Bound, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		union orb.Bound
		found bool
	)
	for _, l := range r.layers {
		if !l.Visible {
			continue
		}
		b, ok := layerBounds(l)
		if !ok {
			continue
		}
		union = geomath.Union(union, found, b)
		found = true
	}
	return union, found
}

// Restore replaces the registry content with previously saved layers.
// IDs handed out later continue after both seq and any "-N" suffix found
// in the restored IDs.
func (r *Registry) Restore(layers []Layer, seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.layers = make([]Layer, 0, len(layers))
	for _, l := range layers {
		if l.ID == "" {
			continue
		}
		l.Style.Opacity = clampOpacity(l.Style.Opacity)
		r.layers = append(r.layers, l.clone())
		seq = max(seq, idSeq(l.ID))
	}
	r.seq = max(r.seq, seq)
	r.renumber()
}

func (r *Registry) index(id string) int {
	for i := range r.layers {
		if r.layers[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) renumber() {
	for i := range r.layers {
		r.layers[i].Order = i
	}
}

func layerBounds(l Layer) (orb.Bound, bool) {
	switch l.Kind {
	case Raster:
		if l.Raster == nil {
			return orb.Bound{}, false
		}
		b := l.Raster.Bounds.Bound()
		if geomath.Degenerate(b) {
			return orb.Bound{}, false
		}
		return b, true
	case Vector:
		return featureBounds(l.Features)
	}
	return orb.Bound{}, false
}

func featureBounds(fc *geojson.FeatureCollection) (orb.Bound, bool) {
	if fc == nil {
		return orb.Bound{}, false
	}
	var (
		union orb.Bound
		found bool
	)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		if !geomath.Finite(b) {
			continue
		}
		union = geomath.Union(union, found, b)
		found = true
	}
	if !found || geomath.Degenerate(union) {
		return orb.Bound{}, false
	}
	return union, true
}

func clampOpacity(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultOpacity
	}
	return max(0, min(1, v))
}

// layerID builds a URL-safe ID from a name and a sequence number that is
// never reused for the registry's lifetime.
func layerID(name string, seq int) string {
	slug := generateID(name)
	if slug == "" {
		slug = "layer"
	}
	return slug + "-" + strconv.Itoa(seq)
}

// idSeq reads the trailing sequence number of an ID built by layerID.
func idSeq(id string) int {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// generateID creates a URL-safe slug from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	// Remove any characters that aren't alphanumeric or underscore
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
