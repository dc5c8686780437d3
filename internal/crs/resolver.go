package crs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-workspace/internal/geomath"
)

// Method records which path produced a Result.
type Method string

const (
	MethodDeclaredGeographic Method = "declared-geographic"
	MethodAlreadyGeographic  Method = "already-geographic"
	MethodInline             Method = "inline"
	MethodTable              Method = "table"
	MethodService            Method = "service"
	MethodHeuristic          Method = "utm-heuristic"
	MethodGuess              Method = "utm-guess"
	MethodUnprojected        Method = "unprojected"
)

// Result is the outcome of resolving a raster's bounds.
type Result struct {
	// Bounds are geographic unless Method is MethodUnprojected.
	Bounds orb.Bound
	// WasGuessed is set when no usable identifier was declared and a UTM
	// zone was inferred from the coordinates. Treat such placement as
	// approximate.
	WasGuessed bool
	Method     Method
	// CRS is the identifier actually used, e.g. "EPSG:32636".
	CRS string
	// Reason explains a degradation, empty on the happy path.
	Reason string
}

// Reprojected reports whether the result went through a transform.
func (r Result) Reprojected() bool {
	switch r.Method {
	case MethodInline, MethodTable, MethodService, MethodHeuristic, MethodGuess:
		return true
	}
	return false
}

// Resolver maps raster bounds into geographic coordinates.
type Resolver struct {
	table   *Table
	service DefinitionSource
}

// DefinitionSource looks up a projection definition by EPSG code.
type DefinitionSource interface {
	Definition(ctx context.Context, code int) (string, error)
}

// NewResolver creates a resolver. table may be nil for the built-in table;
// service may be nil to stay offline.
func NewResolver(table *Table, service DefinitionSource) *Resolver {
	if table == nil {
		table = NewTable()
	}
	return &Resolver{table: table, service: service}
}

// Table returns the resolver's definition table.
func (r *Resolver) Table() *Table { return r.table }

// Resolve converts raw, expressed in the system named by declared, into
// geographic bounds. It never returns an error: on any failure the raw
// bounds come back unchanged with Method set to MethodUnprojected and the
// cause in Reason.
func (r *Resolver) Resolve(ctx context.Context, raw orb.Bound, declared string) Result {
	raw = geomath.Normalize(raw)
	declared = strings.TrimSpace(declared)

	if declared != "" && IsGeographicID(declared) {
		return Result{Bounds: raw, Method: MethodDeclaredGeographic, CRS: declared}
	}
	// Rasters often carry no CRS or a wrong one while already being in
	// degrees, so anything in range is taken as geographic.
	if geomath.IsGeographic(raw) {
		if declared != "" {
			diagf("bounds %v already geographic, ignoring declared %s", raw, declared)
		}
		return Result{Bounds: raw, Method: MethodAlreadyGeographic, CRS: declared}
	}

	if IsProj4(declared) {
		def, err := ParseDefinition(declared)
		if err != nil {
			return r.unprojected(raw, declared, err)
		}
		return r.reproject(raw, def, Result{Method: MethodInline, CRS: declared})
	}

	code, ok := ParseCode(declared)
	if !ok {
		if declared != "" {
			diagf("declared CRS %q has no code, guessing zone", declared)
		}
		return r.guess(raw)
	}

	def, method, err := r.definition(ctx, code)
	if err != nil {
		return r.unprojected(raw, declared, err)
	}
	return r.reproject(raw, def, Result{Method: method, CRS: fmt.Sprintf("EPSG:%d", code)})
}

// definition walks the lookup chain: local table, remote service, then a UTM
// definition built from the code's trailing zone digits.
func (r *Resolver) definition(ctx context.Context, code int) (Definition, Method, error) {
	if text, ok := r.table.Lookup(code); ok {
		def, err := ParseDefinition(text)
		return def, MethodTable, err
	}

	var errs []error
	if r.service != nil {
		text, err := r.service.Definition(ctx, code)
		if err == nil {
			def, perr := ParseDefinition(text)
			if perr == nil {
				if rerr := r.table.Register(code, text); rerr != nil {
					diagf("not caching EPSG:%d: %v", code, rerr)
				}
				diagf("EPSG:%d fetched from service", code)
				return def, MethodService, nil
			}
			err = perr
		}
		opsf("projection service lookup for EPSG:%d failed: %v", code, err)
		errs = append(errs, err)
	}

	zone, south, ok := ZoneFromCode(code)
	if !ok {
		errs = append(errs, fmt.Errorf("%w: EPSG:%d has no definition and no UTM zone digits", ErrProjectionUnavailable, code))
		return Definition{}, "", errors.Join(errs...)
	}
	diagf("EPSG:%d unknown, assuming UTM zone %d south=%t", code, zone, south)
	def, err := ParseDefinition(UTMDefinition(zone, south))
	return def, MethodHeuristic, err
}

// guess infers a WGS84 UTM zone from the box itself. The longitude estimate
// uses a flat 111,320 m per degree regardless of latitude, so it degrades
// towards the poles. Results are flagged WasGuessed.
func (r *Resolver) guess(raw orb.Bound) Result {
	zone, south := GuessZone(raw)
	code := UTMCode(zone, south)
	def, err := ParseDefinition(UTMDefinition(zone, south))
	if err != nil {
		return r.unprojected(raw, "", err)
	}
	opsf("no usable CRS declared for bounds %v, guessed EPSG:%d", raw, code)
	res := r.reproject(raw, def, Result{Method: MethodGuess, CRS: fmt.Sprintf("EPSG:%d", code)})
	res.WasGuessed = res.Method == MethodGuess
	return res
}

func (r *Resolver) reproject(raw orb.Bound, def Definition, res Result) Result {
	lo, err := def.ToWGS84(raw.Min)
	if err != nil {
		return r.unprojected(raw, res.CRS, err)
	}
	hi, err := def.ToWGS84(raw.Max)
	if err != nil {
		return r.unprojected(raw, res.CRS, err)
	}

	b := geomath.Normalize(orb.Bound{Min: lo, Max: hi})
	if !geomath.IsGeographic(b) {
		return r.unprojected(raw, res.CRS, fmt.Errorf("%w: %s produced %v", ErrTransform, res.CRS, b))
	}
	res.Bounds = b
	diagf("resolved %v via %s (%s) -> %v", raw, res.Method, res.CRS, b)
	return res
}

func (r *Resolver) unprojected(raw orb.Bound, id string, err error) Result {
	opsf("keeping unprojected bounds %v for %q: %v", raw, id, err)
	return Result{
		Bounds: raw,
		Method: MethodUnprojected,
		CRS:    id,
		Reason: err.Error(),
	}
}
