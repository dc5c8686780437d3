package crs

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Ellipsoid is a reference ellipsoid given by semi-major axis and flattening.
type Ellipsoid struct {
	A float64
	F float64
}

// E2 is the first eccentricity squared.
func (e Ellipsoid) E2() float64 { return e.F * (2 - e.F) }

var (
	WGS84Ellipsoid = Ellipsoid{A: 6378137, F: 1 / 298.257223563}
	GRS80Ellipsoid = Ellipsoid{A: 6378137, F: 1 / 298.257222101}
)

var ellipsoids = map[string]Ellipsoid{
	"WGS84":  WGS84Ellipsoid,
	"GRS80":  GRS80Ellipsoid,
	"intl":   {A: 6378388, F: 1 / 297.0},
	"clrk66": {A: 6378206.4, F: 1 / 294.9786982},
	"bessel": {A: 6377397.155, F: 1 / 299.1528128},
	"airy":   {A: 6377563.396, F: 1 / 299.3249646},
	"krass":  {A: 6378245, F: 1 / 298.3},
}

var datums = map[string]string{
	"WGS84": "WGS84",
	"NAD83": "GRS80",
	"NAD27": "clrk66",
}

// Definition is the subset of a PROJ.4 definition this package can invert:
// longlat, utm, tmerc, merc and somerc. Datum shifts (+towgs84, +nadgrids)
// are ignored, which is well inside the placement accuracy a map overlay
// needs.
type Definition struct {
	Proj      string
	Zone      int
	South     bool
	Lat0      float64 // degrees
	Lon0      float64 // degrees
	K0        float64
	X0        float64
	Y0        float64
	Ellipsoid Ellipsoid
	ToMeter   float64
	Text      string
}

// ParseDefinition parses a PROJ.4 string such as
// "+proj=utm +zone=36 +datum=WGS84 +units=m +no_defs".
func ParseDefinition(text string) (Definition, error) {
	d := Definition{
		K0:        1,
		Ellipsoid: WGS84Ellipsoid,
		ToMeter:   1,
		Text:      strings.TrimSpace(text),
	}
	params := map[string]string{}
	for _, tok := range strings.Fields(text) {
		if !strings.HasPrefix(tok, "+") {
			continue
		}
		key, val, _ := strings.Cut(tok[1:], "=")
		params[key] = val
	}

	d.Proj = params["proj"]
	if d.Proj == "" {
		return Definition{}, fmt.Errorf("%w: missing +proj in %q", ErrInvalidDefinition, text)
	}

	if name, ok := params["datum"]; ok {
		if e, ok := ellipsoids[datums[name]]; ok {
			d.Ellipsoid = e
		}
	}
	if name, ok := params["ellps"]; ok {
		e, ok := ellipsoids[name]
		if !ok {
			return Definition{}, fmt.Errorf("%w: unknown ellipsoid %q", ErrInvalidDefinition, name)
		}
		d.Ellipsoid = e
	}

	floatParams := []struct {
		key string
		dst *float64
	}{
		{"lat_0", &d.Lat0},
		{"lon_0", &d.Lon0},
		{"k_0", &d.K0},
		{"k", &d.K0},
		{"x_0", &d.X0},
		{"y_0", &d.Y0},
		{"to_meter", &d.ToMeter},
	}
	for _, fp := range floatParams {
		raw, ok := params[fp.key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Definition{}, fmt.Errorf("%w: +%s=%s", ErrInvalidDefinition, fp.key, raw)
		}
		*fp.dst = v
	}

	if err := d.applyAxes(params); err != nil {
		return Definition{}, err
	}

	switch params["units"] {
	case "", "m":
	case "us-ft":
		d.ToMeter = 1200.0 / 3937.0
	case "ft":
		d.ToMeter = 0.3048
	case "km":
		d.ToMeter = 1000
	default:
		return Definition{}, fmt.Errorf("%w: unsupported units %q", ErrInvalidDefinition, params["units"])
	}

	if d.Proj == "utm" {
		zone, err := strconv.Atoi(params["zone"])
		if err != nil || zone < 1 || zone > 60 {
			return Definition{}, fmt.Errorf("%w: utm zone %q", ErrInvalidDefinition, params["zone"])
		}
		_, d.South = params["south"]
		d.Zone = zone
		d.Lon0 = float64(zone*6 - 183)
		d.Lat0 = 0
		d.K0 = 0.9996
		d.X0 = 500000
		d.Y0 = 0
		if d.South {
			d.Y0 = 10000000
		}
	}
	return d, nil
}

// applyAxes overrides the ellipsoid from explicit +a/+b/+rf parameters.
func (d *Definition) applyAxes(params map[string]string) error {
	rawA, hasA := params["a"]
	if !hasA {
		return nil
	}
	a, err := strconv.ParseFloat(rawA, 64)
	if err != nil || a <= 0 {
		return fmt.Errorf("%w: +a=%s", ErrInvalidDefinition, rawA)
	}
	f := 0.0
	if rawB, ok := params["b"]; ok {
		b, err := strconv.ParseFloat(rawB, 64)
		if err != nil || b <= 0 {
			return fmt.Errorf("%w: +b=%s", ErrInvalidDefinition, rawB)
		}
		f = (a - b) / a
	} else if rawRF, ok := params["rf"]; ok {
		rf, err := strconv.ParseFloat(rawRF, 64)
		if err != nil || rf == 0 {
			return fmt.Errorf("%w: +rf=%s", ErrInvalidDefinition, rawRF)
		}
		f = 1 / rf
	}
	d.Ellipsoid = Ellipsoid{A: a, F: f}
	return nil
}

// Geographic reports whether the definition is a plain lon/lat system.
func (d Definition) Geographic() bool {
	return d.Proj == "longlat" || d.Proj == "latlong" || d.Proj == "lonlat"
}

// ToWGS84 converts a projected point to longitude/latitude in degrees.
func (d Definition) ToWGS84(p orb.Point) (orb.Point, error) {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return orb.Point{}, fmt.Errorf("%w: non-finite input %v", ErrTransform, p)
	}

	var out orb.Point
	switch {
	case d.Geographic():
		out = p
	case d.Proj == "utm" || d.Proj == "tmerc":
		x := p[0]*d.ToMeter - d.X0
		y := p[1]*d.ToMeter - d.Y0
		out = inverseTM(x, y, d.Lat0, d.Lon0, d.K0, d.Ellipsoid)
	case d.Proj == "merc":
		out = d.inverseMercator(p)
	case d.Proj == "somerc":
		x := p[0]*d.ToMeter - d.X0
		y := p[1]*d.ToMeter - d.Y0
		out = newObliqueMercator(d.Lat0, d.Lon0, d.K0, d.Ellipsoid).inverse(x, y, d.Ellipsoid.A)
	default:
		return orb.Point{}, fmt.Errorf("%w: %s", ErrUnsupportedProjection, d.Proj)
	}

	if math.IsNaN(out[0]) || math.IsNaN(out[1]) || out[1] < -90 || out[1] > 90 {
		return orb.Point{}, fmt.Errorf("%w: %v -> %v", ErrTransform, p, out)
	}
	return out, nil
}

func (d Definition) spherical() bool { return d.Ellipsoid.F == 0 }

// scale adjusts orb's web mercator sphere to the definition's radius and
// scale factor.
func (d Definition) scale() float64 {
	return d.K0 * d.Ellipsoid.A / orb.EarthRadius
}

func (d Definition) inverseMercator(p orb.Point) orb.Point {
	x := (p[0]*d.ToMeter - d.X0)
	y := (p[1]*d.ToMeter - d.Y0)

	if d.spherical() {
		s := d.scale()
		ll := project.Point(orb.Point{x / s, y / s}, project.Mercator.ToWGS84)
		return orb.Point{ll[0] + d.Lon0, ll[1]}
	}

	a, e := d.Ellipsoid.A, math.Sqrt(d.Ellipsoid.E2())
	lon := x/(a*d.K0)*180/math.Pi + d.Lon0
	t := math.Exp(-y / (a * d.K0))
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		es := e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}
	return orb.Point{lon, phi * 180 / math.Pi}
}
