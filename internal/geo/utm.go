package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// WGS84 ellipsoid and UTM grid constants.
const (
	wgs84A          = 6378137.0
	wgs84F          = 1 / 298.257223563
	utmScale        = 0.9996
	utmFalseEasting = 500000.0
	utmFalseNorth   = 10000000.0
)

var (
	wgs84E2  = wgs84F * (2 - wgs84F)
	wgs84EP2 = wgs84E2 / (1 - wgs84E2)
)

// UTM is a Universal Transverse Mercator zone on the WGS84 ellipsoid.
type UTM struct {
	Zone  int
	South bool
}

// CentralMeridian returns the zone's central meridian in degrees.
func (u UTM) CentralMeridian() float64 {
	return float64(u.Zone-1)*6 - 180 + 3
}

// ToWGS84 converts an easting/northing point to lon/lat degrees.
// Series expansion after Snyder, "Map Projections: A Working Manual" (1987), eq. 8-18..8-25.
func (u UTM) ToWGS84(p orb.Point) orb.Point {
	x := p[0] - utmFalseEasting
	y := p[1]

	if u.South {
		y -= utmFalseNorth
	}

	e2 := wgs84E2
	ep2 := wgs84EP2

	m := y / utmScale
	mu := m / (wgs84A * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi := math.Sin(phi1)
	cosPhi := math.Cos(phi1)
	tanPhi := math.Tan(phi1)

	n1 := wgs84A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t1 := tanPhi * tanPhi
	c1 := ep2 * cosPhi * cosPhi
	r1 := wgs84A * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	d := x / (n1 * utmScale)

	lat := phi1 - (n1*tanPhi/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lon := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi

	return orb.Point{u.CentralMeridian() + degrees(lon), degrees(lat)}
}

// FromWGS84 converts lon/lat degrees to an easting/northing point in the zone.
func (u UTM) FromWGS84(p orb.Point) orb.Point {
	e2 := wgs84E2
	ep2 := wgs84EP2

	phi := radians(p.Lat())
	lambda := radians(p.Lon() - u.CentralMeridian())

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := wgs84A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * lambda

	m := wgs84A * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	x := utmScale * n * (a + (1-t+c)*math.Pow(a, 3)/6 +
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120)

	y := utmScale * (m + n*tanPhi*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))

	if u.South {
		y += utmFalseNorth
	}

	return orb.Point{x + utmFalseEasting, y}
}

func degrees(r float64) float64 { return r * 180 / math.Pi }

func radians(d float64) float64 { return d * math.Pi / 180 }
