package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/geo-workspace/internal/crs"
	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/measure"
	"github.com/joeblew999/geo-workspace/internal/service"
	"github.com/joeblew999/geo-workspace/internal/store"
)

const roadsJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[10,10],[15,12]]}},
  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[12,14],[20,16]]}},
  {"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[11,18],[19,20]]}}
]}`

func vector(name string) service.Descriptor {
	return service.Descriptor{Type: service.Vector, Name: name, GeoJSON: json.RawMessage(roadsJSON)}
}

func newWorkspace(t *testing.T, s store.Store, mode geomath.Mode) *Workspace {
	t.Helper()
	w := New(context.Background(), Options{
		Store:    s,
		Resolver: crs.NewResolver(nil, nil),
		Mode:     mode,
	})
	t.Cleanup(func() { w.Close() })
	return w
}

func addLayers(t *testing.T, w *Workspace, names ...string) []service.Layer {
	t.Helper()
	var descs []service.Descriptor
	for _, n := range names {
		descs = append(descs, vector(n))
	}
	added, failures := w.AddLayers(context.Background(), descs, "")
	require.Empty(t, failures)
	return added
}

func TestWorkspaceScenario(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, nil, geomath.Planar)

	roads := addLayers(t, w, "roads")[0]
	b, ok := w.LayerBounds(roads.ID)
	require.True(t, ok)
	assert.Equal(t, geomath.LatLngBounds{{10, 10}, {20, 20}}, geomath.FromBound(b))

	utm := [2][2]float64{{3490000, 490000}, {3510000, 510000}}
	added, failures := w.AddLayers(ctx, []service.Descriptor{{
		Type:   service.Raster,
		Name:   "dem",
		Bounds: &utm,
		CRS:    "EPSG:32636",
		Data:   &service.RasterData{Width: 1, Height: 1, Bands: 1, Pixels: []float64{1}},
	}}, "")
	require.Empty(t, failures)
	bounds := added[0].Raster.Bounds
	for _, corner := range bounds {
		assert.True(t, corner[0] >= -90 && corner[0] <= 90)
	}

	require.NoError(t, w.SetTool(ToolMeasure))
	for _, p := range []orb.Point{{0, 0}, {3, 0}, {3, 4}} {
		_, err := w.AddPoint(p)
		require.NoError(t, err)
	}
	m, ok := w.FinishCurrent()
	require.True(t, ok)
	assert.InDelta(t, 6, m.Metrics.Area, 1e-9)
	assert.InDelta(t, 12, m.Metrics.Perimeter, 1e-9)

	addLayers(t, w, "rivers")
	first := w.Layers()[0].ID
	require.NoError(t, w.Reorder(ctx, 0, 2))
	assert.Equal(t, first, w.Layers()[2].ID)

	before := w.Layers()
	assert.False(t, w.SetVisibility(ctx, "missing-id", false))
	assert.Equal(t, before, w.Layers())
}

func TestMeasureToolHoldsGestures(t *testing.T) {
	w := newWorkspace(t, nil, geomath.Planar)
	assert.True(t, w.NavigationEnabled())

	_, err := w.AddPoint(orb.Point{0, 0})
	assert.ErrorIs(t, err, measure.ErrInactive)

	require.NoError(t, w.SetTool(ToolMeasure))
	assert.False(t, w.NavigationEnabled())
	assert.Equal(t, ToolMeasure, w.Tool())

	// Switching to the same tool keeps the lease.
	require.NoError(t, w.SetTool(ToolMeasure))
	assert.False(t, w.NavigationEnabled())

	require.NoError(t, w.SetTool(ToolNavigate))
	assert.True(t, w.NavigationEnabled())
	assert.Equal(t, ToolNavigate, w.Tool())

	assert.ErrorIs(t, w.SetTool("lasso"), ErrUnknownTool)
}

func TestLeavingMeasureDiscardsUnfinished(t *testing.T) {
	w := newWorkspace(t, nil, geomath.Planar)
	require.NoError(t, w.SetTool(ToolMeasure))

	w.AddPoint(orb.Point{0, 0})
	w.AddPoint(orb.Point{1, 0})
	done, ok := w.FinishCurrent()
	require.True(t, ok)
	w.AddPoint(orb.Point{5, 5})

	require.NoError(t, w.SetTool(ToolNavigate))
	list := w.Measurements(measure.DefaultUnits)
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].ID)
	assert.True(t, list[0].Finished)
}

func TestCloseReleasesGestures(t *testing.T) {
	w := New(context.Background(), Options{})
	require.NoError(t, w.SetTool(ToolMeasure))
	w.AddPoint(orb.Point{1, 1})

	require.NoError(t, w.Close())
	assert.True(t, w.NavigationEnabled())
	assert.Empty(t, w.Measurements(measure.DefaultUnits))
	require.NoError(t, w.Close())
}

func TestGestureArbiter(t *testing.T) {
	var a GestureArbiter
	lease, err := a.Acquire("measure")
	require.NoError(t, err)
	assert.Equal(t, "measure", a.Holder())

	_, err = a.Acquire("draw")
	assert.ErrorIs(t, err, ErrGestureBusy)

	again, err := a.Acquire("measure")
	require.NoError(t, err)
	assert.Same(t, lease, again)

	lease.Release()
	assert.True(t, a.NavigationEnabled())

	next, err := a.Acquire("draw")
	require.NoError(t, err)

	// A stale lease must not release someone else's claim.
	lease.Release()
	assert.False(t, a.NavigationEnabled())
	assert.Equal(t, "draw", next.Owner())

	next.Release()
	next.Release()
	assert.True(t, a.NavigationEnabled())

	var none *Lease
	none.Release()
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w := New(ctx, Options{Store: store.NewFile(dir)})
	layers := addLayers(t, w, "roads", "rivers")
	require.True(t, w.SetVisibility(ctx, layers[0].ID, false))
	opacity := 0.3
	require.True(t, w.SetStyle(ctx, layers[1].ID, service.StylePatch{Opacity: &opacity}))
	require.True(t, w.Rename(ctx, layers[1].ID, "Rivers"))
	w.SetBaseMap(ctx, false)
	require.NoError(t, w.SetTool(ToolMeasure))
	require.NoError(t, w.Close())

	w = newWorkspace(t, store.NewFile(dir), geomath.Geodesic)
	st := w.State()
	require.Len(t, st.Layers, 2)
	assert.False(t, st.Layers[0].Visible)
	assert.Equal(t, "Rivers", st.Layers[1].Name)
	assert.InDelta(t, 0.3, st.Layers[1].Style.Opacity, 1e-12)
	assert.False(t, st.ShowBaseMap)
	assert.Equal(t, ToolNavigate, st.Tool)

	b, ok := w.LayerBounds(layers[1].ID)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{20, 20}}, b)

	// IDs continue after the restored ones.
	next := addLayers(t, w, "roads")
	assert.Equal(t, "roads-3", next[0].ID)
}

func TestCancelledRequestStillSaves(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(context.Background(), store.KindSQLite, dir)
	require.NoError(t, err)
	w := New(context.Background(), Options{Store: s})
	layers := addLayers(t, w, "roads")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, w.SetVisibility(ctx, layers[0].ID, false))
	require.NoError(t, w.Close())

	s, err = store.Open(context.Background(), store.KindSQLite, dir)
	require.NoError(t, err)
	w = newWorkspace(t, s, geomath.Geodesic)
	st := w.State()
	require.Len(t, st.Layers, 1)
	assert.False(t, st.Layers[0].Visible)
}

func TestEveryLayerMutationIsSaved(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	w := newWorkspace(t, s, geomath.Geodesic)

	saved := func() State {
		t.Helper()
		data, ok, err := s.Load(ctx, StateKey)
		require.NoError(t, err)
		require.True(t, ok)
		var st State
		require.NoError(t, json.Unmarshal(data, &st))
		return st
	}

	layers := addLayers(t, w, "a", "b")
	assert.Len(t, saved().Layers, 2)

	require.NoError(t, w.Reorder(ctx, 0, 1))
	assert.Equal(t, layers[1].ID, saved().Layers[0].ID)

	require.True(t, w.RemoveLayer(ctx, layers[0].ID))
	assert.Len(t, saved().Layers, 1)
	assert.False(t, w.RemoveLayer(ctx, layers[0].ID))
}

func TestSetFeaturesSavesAndPublishes(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	w := newWorkspace(t, s, geomath.Planar)
	layer := addLayers(t, w, "roads")[0]
	ch := w.Bus().Subscribe()
	defer w.Bus().Unsubscribe(ch)

	line := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[3,4],[5,6]]}}]}`
	require.NoError(t, w.SetFeatures(ctx, layer.ID, json.RawMessage(line)))
	assert.Equal(t, service.Event{Resource: service.ResourceLayers, Action: service.ActionUpdated, ID: layer.ID}, <-ch)

	b, ok := w.LayerBounds(layer.ID)
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{3, 4}, Max: orb.Point{5, 6}}, b)

	data, ok, err := s.Load(ctx, StateKey)
	require.NoError(t, err)
	require.True(t, ok)
	var st State
	require.NoError(t, json.Unmarshal(data, &st))
	require.Len(t, st.Layers, 1)
	assert.Len(t, st.Layers[0].Features.Features, 1)

	err = w.SetFeatures(ctx, "missing", json.RawMessage(line))
	assert.ErrorIs(t, err, service.ErrLayerNotFound)
}

type failingStore struct{ *store.Memory }

func (failingStore) Save(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestSaveFailureIsLoggedNotReturned(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil) })

	w := newWorkspace(t, failingStore{Memory: store.NewMemory()}, geomath.Geodesic)
	added := addLayers(t, w, "roads")
	require.Len(t, added, 1)
	assert.Contains(t, ops.String(), "disk full")
}

func TestCorruptStateIsIgnored(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Save(ctx, StateKey, []byte("{not json")))

	w := newWorkspace(t, s, geomath.Geodesic)
	assert.Empty(t, w.Layers())
	assert.True(t, w.State().ShowBaseMap)
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, nil, geomath.Planar)
	ch := w.Bus().Subscribe()
	defer w.Bus().Unsubscribe(ch)

	layer := addLayers(t, w, "roads")[0]
	w.SetVisibility(ctx, layer.ID, false)
	require.NoError(t, w.SetTool(ToolMeasure))
	m, err := w.AddPoint(orb.Point{0, 0})
	require.NoError(t, err)
	w.DeleteMeasurement(m.ID)
	w.ResetMeasurements()

	want := []service.Event{
		{Resource: service.ResourceLayers, Action: service.ActionCreated, ID: layer.ID},
		{Resource: service.ResourceLayers, Action: service.ActionUpdated, ID: layer.ID},
		{Resource: service.ResourceWorkspace, Action: service.ActionUpdated, ID: "tool"},
		{Resource: service.ResourceMeasurements, Action: service.ActionCreated, ID: m.ID},
		{Resource: service.ResourceMeasurements, Action: service.ActionDeleted, ID: m.ID},
		{Resource: service.ResourceMeasurements, Action: service.ActionReset},
	}
	for _, e := range want {
		assert.Equal(t, e, <-ch)
	}
}

func TestMeasurementsInDisplayUnits(t *testing.T) {
	w := newWorkspace(t, nil, geomath.Planar)
	require.NoError(t, w.SetTool(ToolMeasure))
	w.AddPoint(orb.Point{0, 0})
	m, err := w.AddPoint(orb.Point{2500, 0})
	require.NoError(t, err)

	d, ok := w.Measurement(m.ID, measure.Units{Length: geomath.Kilometers, Area: geomath.Hectares})
	require.True(t, ok)
	assert.InDelta(t, 2.5, d.Length, 1e-12)

	d, _ = w.Measurement(m.ID, w.Units())
	assert.InDelta(t, 2500, d.Length, 1e-9)

	_, ok = w.Measurement("missing", w.Units())
	assert.False(t, ok)
}
