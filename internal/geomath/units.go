package geomath

import (
	"fmt"
	"strings"
)

// LengthUnit is a display unit for distances. Stored values are meters.
type LengthUnit string

const (
	Meters     LengthUnit = "meters"
	Kilometers LengthUnit = "kilometers"
	Feet       LengthUnit = "feet"
	Miles      LengthUnit = "miles"
)

// AreaUnit is a display unit for areas. Stored values are square meters.
type AreaUnit string

const (
	SquareMeters     AreaUnit = "sqmeters"
	SquareKilometers AreaUnit = "sqkilometers"
	Hectares         AreaUnit = "hectares"
	Acres            AreaUnit = "acres"
	SquareFeet       AreaUnit = "sqfeet"
	SquareMiles      AreaUnit = "sqmiles"
)

// metersPer holds how many meters one unit is.
var metersPer = map[LengthUnit]float64{
	Meters:     1,
	Kilometers: 1000,
	Feet:       0.3048,
	Miles:      1609.344,
}

// sqMetersPer holds how many square meters one unit is.
var sqMetersPer = map[AreaUnit]float64{
	SquareMeters:     1,
	SquareKilometers: 1e6,
	Hectares:         1e4,
	Acres:            4046.8564224,
	SquareFeet:       0.09290304,
	SquareMiles:      2589988.110336,
}

var lengthAliases = map[string]LengthUnit{
	"m": Meters, "meter": Meters, "meters": Meters, "metres": Meters,
	"km": Kilometers, "kilometer": Kilometers, "kilometers": Kilometers,
	"ft": Feet, "foot": Feet, "feet": Feet,
	"mi": Miles, "mile": Miles, "miles": Miles,
}

var areaAliases = map[string]AreaUnit{
	"m2": SquareMeters, "sqm": SquareMeters, "sqmeters": SquareMeters,
	"km2": SquareKilometers, "sqkm": SquareKilometers, "sqkilometers": SquareKilometers,
	"ha": Hectares, "hectare": Hectares, "hectares": Hectares,
	"ac": Acres, "acre": Acres, "acres": Acres,
	"ft2": SquareFeet, "sqft": SquareFeet, "sqfeet": SquareFeet,
	"mi2": SquareMiles, "sqmi": SquareMiles, "sqmiles": SquareMiles,
}

// ParseLengthUnit resolves a unit name or abbreviation. Empty means meters.
func ParseLengthUnit(s string) (LengthUnit, error) {
	if s == "" {
		return Meters, nil
	}
	if u, ok := lengthAliases[strings.ToLower(s)]; ok {
		return u, nil
	}
	return "", fmt.Errorf("unknown length unit %q", s)
}

// ParseAreaUnit resolves a unit name or abbreviation. Empty means square meters.
func ParseAreaUnit(s string) (AreaUnit, error) {
	if s == "" {
		return SquareMeters, nil
	}
	if u, ok := areaAliases[strings.ToLower(s)]; ok {
		return u, nil
	}
	return "", fmt.Errorf("unknown area unit %q", s)
}

// FromMeters converts a canonical length to u.
func (u LengthUnit) FromMeters(v float64) float64 {
	return v / u.factor()
}

// ToMeters converts a length in u back to meters.
func (u LengthUnit) ToMeters(v float64) float64 {
	return v * u.factor()
}

func (u LengthUnit) factor() float64 {
	if f, ok := metersPer[u]; ok {
		return f
	}
	return 1
}

// FromSquareMeters converts a canonical area to u.
func (u AreaUnit) FromSquareMeters(v float64) float64 {
	return v / u.factor()
}

// ToSquareMeters converts an area in u back to square meters.
func (u AreaUnit) ToSquareMeters(v float64) float64 {
	return v * u.factor()
}

func (u AreaUnit) factor() float64 {
	if f, ok := sqMetersPer[u]; ok {
		return f
	}
	return 1
}

// ConvertLength converts v between any two length units.
func ConvertLength(v float64, from, to LengthUnit) float64 {
	return to.FromMeters(from.ToMeters(v))
}

// ConvertArea converts v between any two area units.
func ConvertArea(v float64, from, to AreaUnit) float64 {
	return to.FromSquareMeters(from.ToSquareMeters(v))
}
