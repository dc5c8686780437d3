package measure

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-workspace/internal/geomath"
)

// Units selects the display units for Display.
type Units struct {
	Length geomath.LengthUnit `json:"length" doc:"Length unit" example:"meters"`
	Area   geomath.AreaUnit   `json:"area" doc:"Area unit" example:"sqmeters"`
}

// DefaultUnits are meters and square meters.
var DefaultUnits = Units{Length: geomath.Meters, Area: geomath.SquareMeters}

// Display is a measurement with metrics converted to display units. The
// stored metrics are not changed by the conversion.
type Display struct {
	ID         string             `json:"id" doc:"Measurement ID"`
	Kind       Kind               `json:"kind" enum:"none,line,polygon" doc:"Derived from the point count"`
	Points     []orb.Point        `json:"points" doc:"[lon, lat] pairs in drawing order"`
	Finished   bool               `json:"finished" doc:"Whether drawing is complete"`
	Length     float64            `json:"length" doc:"Open path length"`
	Area       *float64           `json:"area,omitempty" doc:"Enclosed area, from three points on"`
	Perimeter  *float64           `json:"perimeter,omitempty" doc:"Closed ring length, from three points on"`
	LengthUnit geomath.LengthUnit `json:"lengthUnit" doc:"Unit of length and perimeter"`
	AreaUnit   geomath.AreaUnit   `json:"areaUnit" doc:"Unit of area"`
}

// Display converts m's metrics to u.
func (m Measurement) Display(u Units) Display {
	d := Display{
		ID:         m.ID,
		Kind:       m.Kind(),
		Points:     append([]orb.Point{}, m.Points...),
		Finished:   m.Finished,
		Length:     u.Length.FromMeters(m.Metrics.Length),
		LengthUnit: u.Length,
		AreaUnit:   u.Area,
	}
	if m.Kind() == KindPolygon {
		area := u.Area.FromSquareMeters(m.Metrics.Area)
		perimeter := u.Length.FromMeters(m.Metrics.Perimeter)
		d.Area = &area
		d.Perimeter = &perimeter
	}
	return d
}
