// Package measure tracks user-drawn measurements: point sequences on the
// map with their length, and area and perimeter once they close a polygon.
//
// Points are appended to the current measurement while the tool is active.
// Finishing the current measurement opens a slot for the next one. A single
// undo record lets the last append or move be reversed.
package measure

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-workspace/internal/geomath"
)

// Common errors.
var (
	ErrNotFound        = errors.New("measurement not found")
	ErrIndexOutOfRange = errors.New("point index out of range")
	ErrInactive        = errors.New("measure tool is not active")
	ErrInvalidPoint    = errors.New("invalid point")
)

// Kind is derived from the number of points.
type Kind string

const (
	KindNone    Kind = "none"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
)

// Metrics are stored in meters and square meters.
type Metrics struct {
	Length    float64 `json:"length"`
	Area      float64 `json:"area,omitempty"`
	Perimeter float64 `json:"perimeter,omitempty"`
}

// Measurement is one point sequence.
type Measurement struct {
	ID       string      `json:"id"`
	Points   []orb.Point `json:"points"`
	Finished bool        `json:"finished"`
	Metrics  Metrics     `json:"metrics"`
}

// Kind returns Line from two points and Polygon from three.
func (m Measurement) Kind() Kind {
	switch {
	case len(m.Points) >= 3:
		return KindPolygon
	case len(m.Points) == 2:
		return KindLine
	}
	return KindNone
}

func (m Measurement) clone() Measurement {
	m.Points = append(make([]orb.Point, 0, len(m.Points)), m.Points...)
	return m
}

type editOp int

const (
	opAppend editOp = iota + 1
	opMove
)

// undoRecord is the single-slot history: enough to reverse one append or
// one move.
type undoRecord struct {
	op    editOp
	id    string
	index int
	prev  orb.Point
}

// Manager owns the measurements of a workspace. It is safe for concurrent
// use.
type Manager struct {
	mu           sync.Mutex
	mode         geomath.Mode
	active       bool
	measurements []*Measurement
	current      string
	undo         *undoRecord
	newID        func() string
}

// NewManager creates a manager computing metrics with mode.
func NewManager(mode geomath.Mode) *Manager {
	return &Manager{mode: mode, newID: uuid.NewString}
}

// Mode returns the distance mode metrics are computed with.
func (m *Manager) Mode() geomath.Mode { return m.mode }

// Activate starts accepting points.
func (m *Manager) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = true
}

// Deactivate stops accepting points and discards the unfinished
// measurement, if any. It returns the ID of the discarded measurement.
func (m *Manager) Deactivate() (discarded string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = false
	if m.current != "" {
		discarded = m.current
		m.remove(m.current)
	}
	m.undo = nil
	return discarded
}

// Active reports whether the tool accepts points.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// AddPoint appends p (lon/lat) to the current measurement, starting a new
// one when there is none.
func (m *Manager) AddPoint(p orb.Point) (Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return Measurement{}, ErrInactive
	}
	if err := checkPoint(p); err != nil {
		return Measurement{}, err
	}

	cur := m.find(m.current)
	if cur == nil {
		cur = &Measurement{ID: m.newID(), Points: []orb.Point{}}
		m.measurements = append(m.measurements, cur)
		m.current = cur.ID
	}
	cur.Points = append(cur.Points, p)
	m.recompute(cur)
	m.undo = &undoRecord{op: opAppend, id: cur.ID, index: len(cur.Points) - 1}
	return cur.clone(), nil
}

// FinishCurrent freezes the current measurement. A current measurement with
// no points is dropped. The boolean is false when nothing was finished.
func (m *Manager) FinishCurrent() (Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.find(m.current)
	m.current = ""
	if cur == nil {
		return Measurement{}, false
	}
	if len(cur.Points) == 0 {
		m.remove(cur.ID)
		return Measurement{}, false
	}
	cur.Finished = true
	// Finishing commits the appended points; only later moves are undoable.
	if m.undo != nil && m.undo.op == opAppend && m.undo.id == cur.ID {
		m.undo = nil
	}
	m.recompute(cur)
	return cur.clone(), true
}

// UndoLastPoint removes the last point of the current, unfinished
// measurement. The boolean is false when there was nothing to remove.
func (m *Manager) UndoLastPoint() (Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.find(m.current)
	if cur == nil || len(cur.Points) == 0 {
		return Measurement{}, false
	}
	cur.Points = cur.Points[:len(cur.Points)-1]
	m.recompute(cur)
	if m.undo != nil && m.undo.id == cur.ID {
		m.undo = nil
	}
	return cur.clone(), true
}

// UndoLastEdit reverses the most recent append or move, once.
func (m *Manager) UndoLastEdit() (Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.undo
	m.undo = nil
	if rec == nil {
		return Measurement{}, false
	}
	meas := m.find(rec.id)
	if meas == nil || rec.index >= len(meas.Points) {
		return Measurement{}, false
	}

	switch rec.op {
	case opAppend:
		meas.Points = append(meas.Points[:rec.index], meas.Points[rec.index+1:]...)
	case opMove:
		meas.Points[rec.index] = rec.prev
	}
	m.recompute(meas)
	return meas.clone(), true
}

// CanUndo reports whether UndoLastEdit has something to reverse.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undo != nil
}

// MovePoint replaces the coordinate at index.
func (m *Manager) MovePoint(id string, index int, p orb.Point) (Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meas := m.find(id)
	if meas == nil {
		return Measurement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if index < 0 || index >= len(meas.Points) {
		return Measurement{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(meas.Points))
	}
	if err := checkPoint(p); err != nil {
		return Measurement{}, err
	}

	m.undo = &undoRecord{op: opMove, id: id, index: index, prev: meas.Points[index]}
	meas.Points[index] = p
	m.recompute(meas)
	return meas.clone(), nil
}

// RemovePoint deletes the point at index. A finished measurement left with
// no points is deleted.
func (m *Manager) RemovePoint(id string, index int) (Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meas := m.find(id)
	if meas == nil {
		return Measurement{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if index < 0 || index >= len(meas.Points) {
		return Measurement{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(meas.Points))
	}

	meas.Points = append(meas.Points[:index], meas.Points[index+1:]...)
	m.recompute(meas)
	// Indices after the removed point shifted.
	if m.undo != nil && m.undo.id == id {
		m.undo = nil
	}
	out := meas.clone()
	if len(meas.Points) == 0 && meas.ID != m.current {
		m.remove(id)
	}
	return out, nil
}

// DeleteMeasurement removes a measurement. It reports whether it existed.
func (m *Manager) DeleteMeasurement(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(id)
}

// Reset removes every measurement.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.measurements = nil
	m.current = ""
	m.undo = nil
}

// Get returns a measurement by ID.
func (m *Manager) Get(id string) (Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meas := m.find(id)
	if meas == nil {
		return Measurement{}, false
	}
	return meas.clone(), true
}

// Current returns the unfinished measurement, if any.
func (m *Manager) Current() (Measurement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meas := m.find(m.current)
	if meas == nil {
		return Measurement{}, false
	}
	return meas.clone(), true
}

// List returns all measurements in creation order.
func (m *Manager) List() []Measurement {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Measurement, len(m.measurements))
	for i, meas := range m.measurements {
		out[i] = meas.clone()
	}
	return out
}

func (m *Manager) find(id string) *Measurement {
	if id == "" {
		return nil
	}
	for _, meas := range m.measurements {
		if meas.ID == id {
			return meas
		}
	}
	return nil
}

func (m *Manager) remove(id string) bool {
	for i, meas := range m.measurements {
		if meas.ID != id {
			continue
		}
		m.measurements = append(m.measurements[:i], m.measurements[i+1:]...)
		if m.current == id {
			m.current = ""
		}
		if m.undo != nil && m.undo.id == id {
			m.undo = nil
		}
		return true
	}
	return false
}

func (m *Manager) recompute(meas *Measurement) {
	meas.Metrics = Compute(m.mode, meas.Points)
}

// Compute derives metrics for a point sequence. Area and perimeter are set
// from three points on, treating the sequence as a ring closed back to its
// first point.
func Compute(mode geomath.Mode, points []orb.Point) Metrics {
	met := Metrics{Length: mode.PathLength(points)}
	if len(points) >= 3 {
		met.Area = mode.Area(points)
		met.Perimeter = mode.Perimeter(points)
	}
	return met
}

func checkPoint(p orb.Point) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidPoint, p)
		}
	}
	return nil
}
