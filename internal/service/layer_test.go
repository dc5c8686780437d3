package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geo-workspace/internal/crs"
	"github.com/joeblew999/geo-workspace/internal/geomath"
)

const roadsJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "a"}, "geometry": {"type": "LineString", "coordinates": [[10, 10], [15, 12]]}},
    {"type": "Feature", "properties": {"name": "b"}, "geometry": {"type": "LineString", "coordinates": [[12, 14], [20, 16]]}},
    {"type": "Feature", "properties": {"name": "c"}, "geometry": {"type": "LineString", "coordinates": [[11, 18], [19, 20]]}}
  ]
}`

func vector(name, body string) Descriptor {
	return Descriptor{Type: Vector, Name: name, GeoJSON: []byte(body)}
}

func raster(name string, bounds *[2][2]float64, crsID string) Descriptor {
	return Descriptor{
		Type:   Raster,
		Name:   name,
		Bounds: bounds,
		CRS:    crsID,
		Data:   &RasterData{Width: 2, Height: 1, Bands: 1, Pixels: []float64{1, 2}},
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(crs.NewResolver(nil, nil))
}

func addNamed(t *testing.T, r *Registry, names ...string) []Layer {
	t.Helper()
	var descs []Descriptor
	for _, n := range names {
		descs = append(descs, vector(n, roadsJSON))
	}
	added, failures := r.AddLayers(context.Background(), descs, "")
	require.Empty(t, failures)
	require.Len(t, added, len(names))
	return added
}

func TestAddVectorLayer(t *testing.T) {
	r := newTestRegistry()
	added := addNamed(t, r, "roads")

	l := added[0]
	assert.Equal(t, "roads-1", l.ID)
	assert.Equal(t, Vector, l.Kind)
	assert.True(t, l.Visible)
	assert.Equal(t, 0, l.Order)
	assert.Equal(t, DefaultOpacity, l.Style.Opacity)
	assert.Equal(t, DefaultColor, l.Style.FillColor)
	require.NotNil(t, l.Features)
	assert.Len(t, l.Features.Features, 3)

	b, ok := r.ComputeBounds(l.ID)
	require.True(t, ok)
	assert.Equal(t, geomath.LatLngBounds{{10, 10}, {20, 20}}, geomath.FromBound(b))
}

func TestAddLayersPartialFailure(t *testing.T) {
	r := newTestRegistry()
	failed := false
	utm := [2][2]float64{{3490000, 490000}, {3510000, 510000}}

	descs := []Descriptor{
		vector("good", roadsJSON),
		vector("no-type", `{"features": []}`),
		vector("no-features", `{"type": "FeatureCollection"}`),
		vector("not-json", `{{`),
		vector("empty", ``),
		raster("no-bounds", nil, "EPSG:32636"),
		{Type: Raster, Name: "no-data", Bounds: &utm},
		{Type: Vector, Name: "decoder", Success: &failed, Error: "bad shapefile"},
		{Type: "pointcloud", Name: "weird"},
		raster("dem", &utm, "EPSG:32636"),
	}
	added, failures := r.AddLayers(context.Background(), descs, "")

	require.Len(t, added, 2)
	assert.Equal(t, "good", added[0].Name)
	assert.Equal(t, "dem", added[1].Name)
	assert.Equal(t, []int{0, 1}, []int{added[0].Order, added[1].Order})

	reasons := map[string]string{}
	for _, f := range failures {
		reasons[f.Name] = f.Reason
	}
	require.Len(t, reasons, 8)
	assert.Contains(t, reasons["no-type"], ErrInvalidGeometry.Error())
	assert.Contains(t, reasons["no-features"], "missing features")
	assert.Contains(t, reasons["not-json"], ErrInvalidGeometry.Error())
	assert.Contains(t, reasons["empty"], ErrInvalidGeometry.Error())
	assert.Equal(t, ErrMissingBounds.Error(), reasons["no-bounds"])
	assert.Equal(t, ErrMissingRasterData.Error(), reasons["no-data"])
	assert.Contains(t, reasons["decoder"], "bad shapefile")
	assert.Contains(t, reasons["weird"], ErrUnknownKind.Error())
}

func TestAddRasterReprojectsBounds(t *testing.T) {
	r := newTestRegistry()
	utm := [2][2]float64{{3490000, 490000}, {3510000, 510000}}

	added, failures := r.AddLayers(context.Background(), []Descriptor{raster("dem", &utm, "EPSG:32636")}, "")
	require.Empty(t, failures)
	require.Len(t, added, 1)

	info := added[0].Raster
	require.NotNil(t, info)
	assert.Equal(t, string(crs.MethodTable), info.Resolution)
	assert.Equal(t, "EPSG:32636", info.ResolvedCRS)
	assert.Equal(t, geomath.LatLngBounds(utm), info.SourceBound)

	b := info.Bounds.Bound()
	assert.True(t, geomath.IsGeographic(b))
	assert.InDelta(t, 33, b.Center()[0], 0.01)
	assert.InDelta(t, 31.63, b.Center()[1], 0.05)

	got, ok := r.ComputeBounds(added[0].ID)
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestAddRasterAlreadyGeographic(t *testing.T) {
	r := newTestRegistry()
	geo := [2][2]float64{{10, 20}, {11, 21}}

	added, _ := r.AddLayers(context.Background(), []Descriptor{raster("img", &geo, "EPSG:32636")}, "")
	require.Len(t, added, 1)
	assert.Equal(t, geomath.LatLngBounds(geo), added[0].Raster.Bounds)
	assert.Equal(t, string(crs.MethodAlreadyGeographic), added[0].Raster.Resolution)
}

func TestAddRasterGuessedZone(t *testing.T) {
	r := newTestRegistry()
	utm := [2][2]float64{{3490000, 490000}, {3510000, 510000}}

	added, _ := r.AddLayers(context.Background(), []Descriptor{raster("scan", &utm, "")}, "")
	require.Len(t, added, 1)
	assert.True(t, added[0].Raster.WasGuessed)
	assert.True(t, geomath.IsGeographic(added[0].Raster.Bounds.Bound()))
}

func TestAddLayersNameOverrideAndColor(t *testing.T) {
	r := newTestRegistry()

	d := vector("upload.geojson", roadsJSON)
	d.Color = "#3388ff"
	added, _ := r.AddLayers(context.Background(), []Descriptor{d}, "  Rivers ")
	require.Len(t, added, 1)
	assert.Equal(t, "Rivers", added[0].Name)
	assert.Equal(t, "rivers-1", added[0].ID)
	assert.Equal(t, "#3388ff", added[0].Style.StrokeColor)

	// The override only applies to single-descriptor batches.
	added, _ = r.AddLayers(context.Background(), []Descriptor{vector("a", roadsJSON), vector("b", roadsJSON)}, "ignored")
	require.Len(t, added, 2)
	assert.Equal(t, "a", added[0].Name)
	assert.Equal(t, "b", added[1].Name)
	assert.NotEqual(t, added[0].Style.FillColor, added[1].Style.FillColor)
}

func TestGeneratedColorsAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 24; i++ {
		c := paletteColor(i)
		assert.Regexp(t, `^#[0-9a-f]{6}$`, c)
		assert.False(t, seen[c], "color %s repeated at %d", c, i)
		seen[c] = true
	}
}

func TestIDsNeverReused(t *testing.T) {
	r := newTestRegistry()
	first := addNamed(t, r, "roads")[0]
	require.True(t, r.Remove(first.ID))

	second := addNamed(t, r, "roads")[0]
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "roads-2", second.ID)

	unnamed := addNamed(t, r, "!!!")[0]
	assert.Equal(t, "layer-3", unnamed.ID)
}

func TestSetVisibilityUnknownIsNoop(t *testing.T) {
	r := newTestRegistry()
	addNamed(t, r, "roads")
	before := r.Snapshot()

	assert.False(t, r.SetVisibility("missing-id", false))
	assert.Empty(t, cmp.Diff(before, r.Snapshot(), cmp.Comparer(sameFeatures)))
}

func TestSetVisibilityAndStyle(t *testing.T) {
	r := newTestRegistry()
	l := addNamed(t, r, "roads", "rivers")[1]

	require.True(t, r.SetVisibility(l.ID, false))
	got, _ := r.Get(l.ID)
	assert.False(t, got.Visible)

	stroke := "#000000"
	require.True(t, r.SetStyle(l.ID, StylePatch{StrokeColor: &stroke}))
	got, _ = r.Get(l.ID)
	assert.Equal(t, "#000000", got.Style.StrokeColor)
	assert.Equal(t, l.Style.FillColor, got.Style.FillColor)
	assert.Equal(t, DefaultOpacity, got.Style.Opacity)

	for _, tt := range []struct{ in, want float64 }{{1.7, 1}, {-0.3, 0}, {0.4, 0.4}} {
		op := tt.in
		require.True(t, r.SetStyle(l.ID, StylePatch{Opacity: &op}))
		got, _ = r.Get(l.ID)
		assert.Equal(t, tt.want, got.Style.Opacity)
	}

	// Style changes never move a layer.
	assert.Equal(t, 1, got.Order)
	assert.False(t, r.SetStyle("missing", StylePatch{StrokeColor: &stroke}))
}

func TestRename(t *testing.T) {
	r := newTestRegistry()
	l := addNamed(t, r, "roads")[0]

	require.True(t, r.Rename(l.ID, "Main roads"))
	got, _ := r.Get(l.ID)
	assert.Equal(t, "Main roads", got.Name)
	assert.Equal(t, l.ID, got.ID)

	require.True(t, r.Rename(l.ID, "   "))
	got, _ = r.Get(l.ID)
	assert.Equal(t, "Main roads", got.Name)

	assert.False(t, r.Rename("missing", "x"))
}

func names(layers []Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = l.Name
	}
	return out
}

func TestReorder(t *testing.T) {
	r := newTestRegistry()
	addNamed(t, r, "a", "b", "c")

	require.NoError(t, r.Reorder(0, 2))
	snap := r.Snapshot()
	assert.Equal(t, []string{"b", "c", "a"}, names(snap))
	for i, l := range snap {
		assert.Equal(t, i, l.Order)
	}

	require.NoError(t, r.Reorder(2, 0))
	assert.Equal(t, []string{"a", "b", "c"}, names(r.Snapshot()))

	require.NoError(t, r.Reorder(1, 1))
	assert.Equal(t, []string{"a", "b", "c"}, names(r.Snapshot()))

	for _, idx := range [][2]int{{-1, 0}, {0, 3}, {3, 0}, {0, -1}} {
		err := r.Reorder(idx[0], idx[1])
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "reorder %v", idx)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names(r.Snapshot()))
}

func TestRemoveKeepsOrderContiguous(t *testing.T) {
	r := newTestRegistry()
	added := addNamed(t, r, "a", "b", "c")

	require.True(t, r.Remove(added[1].ID))
	assert.False(t, r.Remove(added[1].ID))

	snap := r.Snapshot()
	assert.Equal(t, []string{"a", "c"}, names(snap))
	assert.Equal(t, 1, snap[1].Order)

	_, ok := r.ComputeBounds(added[1].ID)
	assert.False(t, ok)
}

func TestComputeBoundsDegenerate(t *testing.T) {
	r := newTestRegistry()
	added, failures := r.AddLayers(context.Background(), []Descriptor{
		vector("empty", `{"type": "FeatureCollection", "features": []}`),
		vector("point", `{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 2]}}]}`),
		vector("nullgeom", `{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {}, "geometry": null}]}`),
	}, "")
	require.Empty(t, failures)

	for _, l := range added {
		_, ok := r.ComputeBounds(l.ID)
		assert.False(t, ok, l.Name)
	}
}

func TestComputeBoundsFollowsFeatureChanges(t *testing.T) {
	r := newTestRegistry()
	l := addNamed(t, r, "roads")[0]

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))
	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, r.SetFeatures(l.ID, raw))

	b, ok := r.ComputeBounds(l.ID)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, b)
}

func TestSetFeaturesRejects(t *testing.T) {
	r := newTestRegistry()
	roads := addNamed(t, r, "roads")[0]
	geo := [2][2]float64{{10, 20}, {11, 21}}
	added, _ := r.AddLayers(context.Background(), []Descriptor{raster("img", &geo, "")}, "")
	require.Len(t, added, 1)

	err := r.SetFeatures("missing", []byte(roadsJSON))
	assert.ErrorIs(t, err, ErrLayerNotFound)
	err = r.SetFeatures(added[0].ID, []byte(roadsJSON))
	assert.ErrorIs(t, err, ErrNotVector)
	err = r.SetFeatures(roads.ID, []byte(`{"type":"Feature"}`))
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	// Rejected edits leave the features alone.
	got, ok := r.Get(roads.ID)
	require.True(t, ok)
	assert.Len(t, got.Features.Features, 3)
}

func TestVisibleBounds(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.VisibleBounds()
	assert.False(t, ok)

	roads := addNamed(t, r, "roads")[0]
	geo := [2][2]float64{{-5, -5}, {0, 0}}
	added, _ := r.AddLayers(context.Background(), []Descriptor{raster("img", &geo, "")}, "")
	require.Len(t, added, 1)

	b, ok := r.VisibleBounds()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-5, -5}, Max: orb.Point{20, 20}}, b)

	r.SetVisibility(roads.ID, false)
	b, ok = r.VisibleBounds()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-5, -5}, Max: orb.Point{0, 0}}, b)

	r.SetVisibility(added[0].ID, false)
	_, ok = r.VisibleBounds()
	assert.False(t, ok)
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	r := newTestRegistry()
	geo := [2][2]float64{{10, 20}, {11, 21}}
	added, _ := r.AddLayers(context.Background(), []Descriptor{raster("img", &geo, "")}, "")
	require.Len(t, added, 1)

	snap := r.Snapshot()
	snap[0].Name = "changed"
	snap[0].Raster.Bounds[0][0] = -1

	got, _ := r.Get(added[0].ID)
	assert.Equal(t, "img", got.Name)
	assert.Equal(t, 10.0, got.Raster.Bounds[0][0])
}

func TestRestore(t *testing.T) {
	r := newTestRegistry()
	saved := addNamed(t, r, "a", "b")
	saved[0].Style.Opacity = 3

	restored := newTestRegistry()
	restored.Restore([]Layer{saved[1], saved[0], {Name: "no id"}}, 0)

	snap := restored.Snapshot()
	assert.Equal(t, []string{"b", "a"}, names(snap))
	assert.Equal(t, []int{0, 1}, []int{snap[0].Order, snap[1].Order})
	assert.Equal(t, 1.0, snap[1].Style.Opacity)
	assert.Equal(t, 2, restored.Seq())

	next := addNamed(t, restored, "c")[0]
	assert.Equal(t, "c-3", next.ID)

	restored.Restore(nil, 10)
	assert.Equal(t, 0, restored.Len())
	assert.Equal(t, "d-11", addNamed(t, restored, "d")[0].ID)
}

func TestConcurrentAddLayers(t *testing.T) {
	r := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.AddLayers(context.Background(), []Descriptor{vector(fmt.Sprintf("l%d", i), roadsJSON)}, "")
		}(i)
	}
	wg.Wait()

	snap := r.Snapshot()
	require.Len(t, snap, 8)
	ids := map[string]bool{}
	for i, l := range snap {
		assert.Equal(t, i, l.Order)
		ids[l.ID] = true
	}
	assert.Len(t, ids, 8)
}

func sameFeatures(a, b *geojson.FeatureCollection) bool {
	return a == b
}
