package crs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// fromWGS84 projects lon/lat degrees with d, for round trips against ToWGS84.
func (d Definition) fromWGS84(p orb.Point) (orb.Point, error) {
	var xy orb.Point
	switch {
	case d.Geographic():
		return p, nil
	case d.Proj == "utm" || d.Proj == "tmerc":
		xy = forwardTM(p[0], p[1], d.Lat0, d.Lon0, d.K0, d.Ellipsoid)
	case d.Proj == "somerc":
		xy = newObliqueMercator(d.Lat0, d.Lon0, d.K0, d.Ellipsoid).forward(p, d.Ellipsoid.A)
	case d.Proj == "merc" && d.spherical():
		xy = project.Point(orb.Point{p[0] - d.Lon0, p[1]}, project.WGS84.ToMercator)
		xy = orb.Point{xy[0] * d.scale(), xy[1] * d.scale()}
	default:
		return orb.Point{}, fmt.Errorf("%w: %s", ErrUnsupportedProjection, d.Proj)
	}
	return orb.Point{(xy[0] + d.X0) / d.ToMeter, (xy[1] + d.Y0) / d.ToMeter}, nil
}

// forwardTM projects lon/lat degrees to transverse Mercator meters, without
// false easting and northing.
func forwardTM(lon, lat, lat0, lon0, k0 float64, e Ellipsoid) orb.Point {
	e2 := e.E2()
	ep2 := e2 / (1 - e2)
	phi := lat * deg

	sin, cos := math.Sincos(phi)
	tan := sin / cos
	n := e.A / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := (lon - lon0) * deg * cos
	m := meridianArc(phi, e)
	m0 := meridianArc(lat0*deg, e)

	x := k0 * n * (a + (1-t+c)*math.Pow(a, 3)/6 +
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)
	y := k0 * (m - m0 + n*tan*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	return orb.Point{x, y}
}

// forward projects lon/lat degrees to oblique Mercator meters, without false
// easting and northing.
func (o obliqueMercator) forward(p orb.Point, a float64) orb.Point {
	phi := p[1] * deg
	sp := o.e * math.Sin(phi)
	phip := 2*math.Atan(math.Exp(o.c*(isometric(phi)-o.hlfE*math.Log((1+sp)/(1-sp)))+o.k)) - math.Pi/2
	lamp := o.c * (p[0] - o.lon0) * deg
	cp := math.Cos(phip)
	phipp := clampAsin(o.cosP0*math.Sin(phip) - o.sinP0*cp*math.Cos(lamp))
	lampp := clampAsin(cp * math.Sin(lamp) / math.Cos(phipp))
	return orb.Point{a * o.kR * lampp, a * o.kR * isometric(phipp)}
}
