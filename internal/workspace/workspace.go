// Package workspace is the facade over the layer registry and the
// measurement manager. It owns the explicit workspace state, persists it
// through a store after every layer mutation, arbitrates the map gestures
// between tools and publishes change events for renderers.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-workspace/internal/geomath"
	"github.com/joeblew999/geo-workspace/internal/measure"
	"github.com/joeblew999/geo-workspace/internal/service"
	"github.com/joeblew999/geo-workspace/internal/store"
)

// StateKey is the store key the workspace state is saved under.
const StateKey = "mapLayers"

// ErrUnknownTool is returned by SetTool for names other than the known tools.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is the active map interaction mode.
type Tool string

const (
	ToolNavigate Tool = "navigate"
	ToolMeasure  Tool = "measure"
)

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolNavigate, ToolMeasure:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// State is the serialized workspace. Tool is reported but never restored:
// the workspace always starts in navigation mode.
type State struct {
	Layers      []service.Layer `json:"layers" doc:"Layers in draw order"`
	ShowBaseMap bool            `json:"showBaseMap" doc:"Whether the base map is drawn"`
	Seq         int             `json:"seq" doc:"Layer IDs handed out so far"`
	Tool        Tool            `json:"tool,omitempty" enum:"navigate,measure" doc:"Active tool"`
}

// Options configure a Workspace. Zero values select an in-memory store,
// no bounds resolution, geodesic metrics and the default display units.
type Options struct {
	Store    store.Store
	Resolver service.BoundsResolver
	Mode     geomath.Mode
	Units    measure.Units
	Bus      *service.EventBus
}

// Workspace is safe for concurrent use.
type Workspace struct {
	layers   *service.Registry
	measures *measure.Manager
	gestures GestureArbiter
	bus      *service.EventBus
	store    store.Store
	units    measure.Units

	mu          sync.Mutex
	tool        Tool
	lease       *Lease
	showBaseMap bool
	closed      bool

	// persistMu orders saves so the store always ends with the latest state.
	persistMu sync.Mutex
}

// New creates a workspace and restores the state saved in opts.Store, if
// any. A state that cannot be read is logged and ignored.
func New(ctx context.Context, opts Options) *Workspace {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Mode == "" {
		opts.Mode = geomath.Geodesic
	}
	if opts.Units == (measure.Units{}) {
		opts.Units = measure.DefaultUnits
	}
	if opts.Bus == nil {
		opts.Bus = service.NewEventBus()
	}

	w := &Workspace{
		layers:      service.NewRegistry(opts.Resolver),
		measures:    measure.NewManager(opts.Mode),
		bus:         opts.Bus,
		store:       opts.Store,
		units:       opts.Units,
		tool:        ToolNavigate,
		showBaseMap: true,
	}
	w.restore(ctx)
	return w
}

func (w *Workspace) restore(ctx context.Context) {
	data, ok, err := w.store.Load(ctx, StateKey)
	if err != nil {
		opsf("loading workspace state: %v", err)
		return
	}
	if !ok {
		return
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		opsf("ignoring unreadable workspace state: %v", err)
		return
	}
	w.layers.Restore(st.Layers, st.Seq)
	w.showBaseMap = st.ShowBaseMap
	diagf("restored %d layers", w.layers.Len())
}

// State returns a snapshot of the workspace.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Workspace) stateLocked() State {
	return State{
		Layers:      w.layers.Snapshot(),
		ShowBaseMap: w.showBaseMap,
		Seq:         w.layers.Seq(),
		Tool:        w.tool,
	}
}

// persist saves the current state. Failures are logged, not returned: the
// in-memory workspace stays authoritative. The save outlives the request
// that triggered it, so cancellation of ctx is ignored.
func (w *Workspace) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	w.persistMu.Lock()
	defer w.persistMu.Unlock()

	st := w.State()
	st.Tool = ""
	data, err := json.Marshal(st)
	if err != nil {
		opsf("encoding workspace state: %v", err)
		return
	}
	if err := w.store.Save(ctx, StateKey, data); err != nil {
		opsf("saving workspace state: %v", err)
	}
}

func (w *Workspace) publish(resource, action, id string) {
	w.bus.Publish(service.Event{Resource: resource, Action: action, ID: id})
}

// Bus returns the change event bus.
func (w *Workspace) Bus() *service.EventBus { return w.bus }

// Units returns the default display units.
func (w *Workspace) Units() measure.Units { return w.units }

// Mode returns the distance mode measurements use.
func (w *Workspace) Mode() geomath.Mode { return w.measures.Mode() }

// Close ends any measurement in progress, restores navigation and closes
// the store. Calling Close twice is safe.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.deactivateLocked()
	w.mu.Unlock()

	return w.store.Close()
}

// Layers

// Layers returns the layers in draw order.
func (w *Workspace) Layers() []service.Layer { return w.layers.Snapshot() }

// Layer returns one layer.
func (w *Workspace) Layer(id string) (service.Layer, bool) { return w.layers.Get(id) }

// AddLayers inserts a decoded upload batch. See service.Registry.AddLayers.
func (w *Workspace) AddLayers(ctx context.Context, descs []service.Descriptor, name string) ([]service.Layer, []service.Failure) {
	added, failures := w.layers.AddLayers(ctx, descs, name)
	if len(added) > 0 {
		w.persist(ctx)
		for _, l := range added {
			w.publish(service.ResourceLayers, service.ActionCreated, l.ID)
		}
	}
	return added, failures
}

// SetVisibility shows or hides a layer. Unknown IDs are ignored.
func (w *Workspace) SetVisibility(ctx context.Context, id string, visible bool) bool {
	return w.layerChanged(ctx, id, w.layers.SetVisibility(id, visible))
}

// SetStyle patches a layer's style. Unknown IDs are ignored.
func (w *Workspace) SetStyle(ctx context.Context, id string, p service.StylePatch) bool {
	return w.layerChanged(ctx, id, w.layers.SetStyle(id, p))
}

// Rename changes a layer's display name. Unknown IDs are ignored.
func (w *Workspace) Rename(ctx context.Context, id, name string) bool {
	return w.layerChanged(ctx, id, w.layers.Rename(id, name))
}

// SetFeatures replaces a vector layer's features with a GeoJSON
// FeatureCollection. See service.Registry.SetFeatures.
func (w *Workspace) SetFeatures(ctx context.Context, id string, raw json.RawMessage) error {
	if err := w.layers.SetFeatures(id, raw); err != nil {
		return err
	}
	w.layerChanged(ctx, id, true)
	return nil
}

func (w *Workspace) layerChanged(ctx context.Context, id string, ok bool) bool {
	if ok {
		w.persist(ctx)
		w.publish(service.ResourceLayers, service.ActionUpdated, id)
	}
	return ok
}

// Reorder moves a layer from one draw position to another.
func (w *Workspace) Reorder(ctx context.Context, from, to int) error {
	if err := w.layers.Reorder(from, to); err != nil {
		return err
	}
	w.persist(ctx)
	w.publish(service.ResourceLayers, service.ActionReordered, "")
	return nil
}

// RemoveLayer deletes a layer. Unknown IDs are ignored.
func (w *Workspace) RemoveLayer(ctx context.Context, id string) bool {
	if !w.layers.Remove(id) {
		return false
	}
	w.persist(ctx)
	w.publish(service.ResourceLayers, service.ActionDeleted, id)
	return true
}

// LayerBounds returns the extent to zoom to for a layer.
func (w *Workspace) LayerBounds(id string) (orb.Bound, bool) { return w.layers.ComputeBounds(id) }

// VisibleBounds returns the extent covering every visible layer.
func (w *Workspace) VisibleBounds() (orb.Bound, bool) { return w.layers.VisibleBounds() }

// SetBaseMap toggles the base map.
func (w *Workspace) SetBaseMap(ctx context.Context, visible bool) {
	w.mu.Lock()
	changed := w.showBaseMap != visible
	w.showBaseMap = visible
	w.mu.Unlock()

	if changed {
		w.persist(ctx)
		w.publish(service.ResourceWorkspace, service.ActionUpdated, "basemap")
	}
}

// Tools

// Tool returns the active tool.
func (w *Workspace) Tool() Tool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tool
}

// NavigationEnabled reports whether pan and zoom are available.
func (w *Workspace) NavigationEnabled() bool { return w.gestures.NavigationEnabled() }

// SetTool switches the active tool. Leaving the measure tool discards the
// unfinished measurement and gives the map gestures back.
func (w *Workspace) SetTool(t Tool) error {
	if _, err := ParseTool(string(t)); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if t == w.tool {
		return nil
	}
	switch t {
	case ToolMeasure:
		lease, err := w.gestures.Acquire(string(ToolMeasure))
		if err != nil {
			return err
		}
		w.lease = lease
		w.measures.Activate()
	case ToolNavigate:
		w.deactivateLocked()
	}
	w.tool = t
	diagf("tool switched to %s", t)
	w.publish(service.ResourceWorkspace, service.ActionUpdated, "tool")
	return nil
}

func (w *Workspace) deactivateLocked() {
	defer func() {
		w.lease.Release()
		w.lease = nil
		w.tool = ToolNavigate
	}()
	if discarded := w.measures.Deactivate(); discarded != "" {
		diagf("discarded unfinished measurement %s", discarded)
		w.publish(service.ResourceMeasurements, service.ActionDeleted, discarded)
	}
}

// Measurements

// Measurements returns every measurement converted to u.
func (w *Workspace) Measurements(u measure.Units) []measure.Display {
	list := w.measures.List()
	out := make([]measure.Display, len(list))
	for i, m := range list {
		out[i] = m.Display(u)
	}
	return out
}

// Measurement returns one measurement converted to u.
func (w *Workspace) Measurement(id string, u measure.Units) (measure.Display, bool) {
	m, ok := w.measures.Get(id)
	if !ok {
		return measure.Display{}, false
	}
	return m.Display(u), true
}

// CanUndo reports whether UndoLastEdit has something to reverse.
func (w *Workspace) CanUndo() bool { return w.measures.CanUndo() }

// AddPoint records a click while the measure tool is active.
func (w *Workspace) AddPoint(p orb.Point) (measure.Measurement, error) {
	m, err := w.measures.AddPoint(p)
	if err != nil {
		return m, err
	}
	action := service.ActionUpdated
	if len(m.Points) == 1 {
		action = service.ActionCreated
	}
	w.publish(service.ResourceMeasurements, action, m.ID)
	return m, nil
}

// FinishCurrent completes the measurement being drawn.
func (w *Workspace) FinishCurrent() (measure.Measurement, bool) {
	m, ok := w.measures.FinishCurrent()
	if ok {
		w.publish(service.ResourceMeasurements, service.ActionUpdated, m.ID)
	}
	return m, ok
}

// UndoLastPoint removes the last point of the measurement being drawn.
func (w *Workspace) UndoLastPoint() (measure.Measurement, bool) {
	m, ok := w.measures.UndoLastPoint()
	if ok {
		w.publish(service.ResourceMeasurements, service.ActionUpdated, m.ID)
	}
	return m, ok
}

// UndoLastEdit reverses the last point append or move.
func (w *Workspace) UndoLastEdit() (measure.Measurement, bool) {
	m, ok := w.measures.UndoLastEdit()
	if ok {
		w.publish(service.ResourceMeasurements, service.ActionUpdated, m.ID)
	}
	return m, ok
}

// MovePoint drags one point of a measurement.
func (w *Workspace) MovePoint(id string, index int, p orb.Point) (measure.Measurement, error) {
	m, err := w.measures.MovePoint(id, index, p)
	if err == nil {
		w.publish(service.ResourceMeasurements, service.ActionUpdated, id)
	}
	return m, err
}

// RemovePoint deletes one point of a measurement.
func (w *Workspace) RemovePoint(id string, index int) (measure.Measurement, error) {
	m, err := w.measures.RemovePoint(id, index)
	if err != nil {
		return m, err
	}
	if _, ok := w.measures.Get(id); ok {
		w.publish(service.ResourceMeasurements, service.ActionUpdated, id)
	} else {
		w.publish(service.ResourceMeasurements, service.ActionDeleted, id)
	}
	return m, nil
}

// DeleteMeasurement removes a measurement. It reports whether it existed.
func (w *Workspace) DeleteMeasurement(id string) bool {
	ok := w.measures.DeleteMeasurement(id)
	if ok {
		w.publish(service.ResourceMeasurements, service.ActionDeleted, id)
	}
	return ok
}

// ResetMeasurements removes every measurement.
func (w *Workspace) ResetMeasurements() {
	w.measures.Reset()
	w.publish(service.ResourceMeasurements, service.ActionReset, "")
}
