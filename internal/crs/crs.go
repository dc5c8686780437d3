// Package crs turns the bounding box of an incoming raster, expressed in a
// declared or unknown coordinate reference system, into geographic
// (longitude/latitude) bounds for display.
//
// Resolution never fails outright. Every path that cannot produce a
// reprojected box falls back to the best bounds available and records why,
// so a misplaced layer is shown instead of a dropped one.
package crs

import (
	"errors"
	"strconv"
	"strings"
)

// Common errors. None of them escape Resolver.Resolve; they surface through
// Result.Reason and the ops log.
var (
	ErrProjectionUnavailable = errors.New("crs: projection unavailable")
	ErrUnsupportedProjection = errors.New("crs: unsupported projection")
	ErrInvalidDefinition     = errors.New("crs: invalid projection definition")
	ErrTransform             = errors.New("crs: transform failed")
)

// GeographicCode is the EPSG code of the display reference system.
const GeographicCode = 4326

var geographicNames = map[string]bool{
	"EPSG:4326": true,
	"4326":      true,
	"WGS84":     true,
	"WGS 84":    true,
	"CRS84":     true,
	"CRS:84":    true,
	"OGC:CRS84": true,
}

// IsGeographicID reports whether id names the display reference system.
func IsGeographicID(id string) bool {
	norm := strings.ToUpper(strings.TrimSpace(id))
	if geographicNames[norm] {
		return true
	}
	if strings.HasSuffix(norm, "CRS84") {
		return true
	}
	code, ok := ParseCode(norm)
	return ok && code == GeographicCode && strings.Contains(norm, "EPSG")
}

// ParseCode extracts a numeric code from identifiers such as "EPSG:32636",
// "epsg:32636", "32636", "urn:ogc:def:crs:EPSG::32636" or
// "http://www.opengis.net/def/crs/EPSG/0/32636": the trailing run of digits.
func ParseCode(id string) (int, bool) {
	id = strings.TrimSpace(id)
	end := len(id)
	start := end
	for start > 0 && id[start-1] >= '0' && id[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	code, err := strconv.Atoi(id[start:end])
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

// IsProj4 reports whether id is an inline PROJ.4 definition rather than an
// identifier.
func IsProj4(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), "+proj=")
}
