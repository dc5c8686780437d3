package crs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// metersPerDegree is the flat-earth approximation used when guessing a zone
// from raw easting. It ignores latitude, so the guess is best-effort only.
const metersPerDegree = 111320.0

// ZoneFromCode reads a UTM zone and hemisphere from the trailing two digits of
// an EPSG-style code: 326xx and 327xx for WGS84, 258xx for ETRS89 and 269xx
// for NAD83 and similar families. South is only inferred from 327xx.
func ZoneFromCode(code int) (zone int, south bool, ok bool) {
	zone = code % 100
	if zone < 1 || zone > 60 {
		return 0, false, false
	}
	return zone, code >= 32701 && code <= 32760, true
}

// UTMDefinition builds the PROJ.4 text for a WGS84 UTM zone.
func UTMDefinition(zone int, south bool) string {
	s := fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", zone)
	if south {
		s = fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", zone)
	}
	return s
}

// UTMCode is the WGS84 EPSG code for a zone and hemisphere.
func UTMCode(zone int, south bool) int {
	if south {
		return 32700 + zone
	}
	return 32600 + zone
}

// GuessZone picks a UTM zone for a projected box with no declared system.
// The box's mid easting is treated as meters from the zone's central
// meridian and mapped to a longitude with metersPerDegree. The hemisphere
// comes from the sign of the mid northing.
func GuessZone(b orb.Bound) (zone int, south bool) {
	center := b.Center()
	lon := (center[0] - 500000) / metersPerDegree
	zone = int(math.Floor((lon+180)/6)) + 1
	zone = max(1, min(60, zone))
	return zone, center[1] < 0
}
