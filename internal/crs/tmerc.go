package crs

import (
	"math"

	"github.com/paulmach/orb"
)

const deg = math.Pi / 180

// meridianArc is the distance along the meridian from the equator to phi.
func meridianArc(phi float64, e Ellipsoid) float64 {
	e2 := e.E2()
	e4 := e2 * e2
	e6 := e4 * e2
	return e.A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// inverseTM inverts a transverse Mercator projection. x and y are in meters
// with false easting and northing already removed. Returns lon/lat degrees.
func inverseTM(x, y, lat0, lon0, k0 float64, e Ellipsoid) orb.Point {
	e2 := e.E2()
	ep2 := e2 / (1 - e2)

	m := meridianArc(lat0*deg, e) + y/k0
	mu := m / (e.A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin1, cos1 := math.Sincos(phi1)
	tan1 := sin1 / cos1
	c1 := ep2 * cos1 * cos1
	t1 := tan1 * tan1
	n1 := e.A / math.Sqrt(1-e2*sin1*sin1)
	r1 := e.A * (1 - e2) / math.Pow(1-e2*sin1*sin1, 1.5)
	d := x / (n1 * k0)

	lat := phi1 - (n1*tan1/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lon := (d - (1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cos1

	return orb.Point{lon0 + lon/deg, lat / deg}
}
