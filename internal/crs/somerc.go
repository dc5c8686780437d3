package crs

import (
	"math"

	"github.com/paulmach/orb"
)

// obliqueMercator holds the constants of the Swiss oblique Mercator
// (+proj=somerc): a conformal sphere touching the ellipsoid at lat0, on
// which an oblique Mercator is centred at the projection origin.
type obliqueMercator struct {
	e, hlfE      float64
	c, k, kR     float64
	sinP0, cosP0 float64
	lon0         float64
	oneES        float64
}

func newObliqueMercator(lat0, lon0, k0 float64, el Ellipsoid) obliqueMercator {
	es := el.E2()
	e := math.Sqrt(es)
	phi0 := lat0 * deg

	cp := math.Cos(phi0)
	cp *= cp
	c := math.Sqrt(1 + es*cp*cp/(1-es))
	sinP0 := math.Sin(phi0) / c
	phiP0 := math.Asin(sinP0)
	sp := e * math.Sin(phi0)

	return obliqueMercator{
		e:     e,
		hlfE:  e / 2,
		c:     c,
		k:     isometric(phiP0) - c*(isometric(phi0)-e/2*math.Log((1+sp)/(1-sp))),
		kR:    k0 * math.Sqrt(1-es) / (1 - sp*sp),
		sinP0: sinP0,
		cosP0: math.Cos(phiP0),
		lon0:  lon0,
		oneES: 1 - es,
	}
}

// inverse maps x and y, in meters with false easting and northing removed,
// to lon/lat degrees. a is the ellipsoid's semi-major axis.
func (o obliqueMercator) inverse(x, y, a float64) orb.Point {
	x /= a
	y /= a

	phipp := 2 * (math.Atan(math.Exp(y/o.kR)) - math.Pi/4)
	lampp := x / o.kR
	cp := math.Cos(phipp)
	phip := clampAsin(o.cosP0*math.Sin(phipp) + o.sinP0*cp*math.Cos(lampp))
	lamp := clampAsin(cp * math.Sin(lampp) / math.Cos(phip))

	con := (o.k - isometric(phip)) / o.c
	for i := 0; i < 6; i++ {
		esp := o.e * math.Sin(phip)
		delta := (con + isometric(phip) - o.hlfE*math.Log((1+esp)/(1-esp))) *
			(1 - esp*esp) * math.Cos(phip) / o.oneES
		phip -= delta
		if math.Abs(delta) < 1e-10 {
			break
		}
	}
	return orb.Point{o.lon0 + lamp/o.c/deg, phip / deg}
}

// isometric is the spherical isometric latitude ln(tan(pi/4 + phi/2)).
func isometric(phi float64) float64 {
	return math.Log(math.Tan(math.Pi/4 + phi/2))
}

func clampAsin(v float64) float64 {
	return math.Asin(math.Max(-1, math.Min(1, v)))
}
