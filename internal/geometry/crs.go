// Package geometry holds the coordinate reference frames and planar
// primitives shared by every spatial component. Three frames exist:
// WGS84 (EPSG:4326) for external API calls, Web Mercator (EPSG:3857) as
// the single projected frame for all distance/area arithmetic, and the
// Hong Kong 1980 Grid (EPSG:2326) spoken by the geodata.gov.hk services.
// Conversions happen once per geometry at ingestion; downstream code only
// ever sees Mercator.
package geometry

import "math"

// XY is a planar coordinate in the shared projected frame (meters).
type XY struct {
	X float64
	Y float64
}

// LonLat is a geographic WGS84 coordinate in degrees.
type LonLat struct {
	Lon float64
	Lat float64
}

const (
	// WGS84 ellipsoid.
	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563

	// International 1924 ellipsoid (HK80 datum).
	intlA = 6378388.0
	intlF = 1.0 / 297.0

	// HK80 -> WGS84 geocentric translation (EPSG transformation 1825).
	hkShiftX = -162.619
	hkShiftY = -276.959
	hkShiftZ = -161.764

	// HK1980 Grid Transverse Mercator parameters (EPSG:2326).
	hkLat0       = 22.0 + 18.0/60.0 + 43.68/3600.0  // 22°18'43.68"N
	hkLon0       = 114.0 + 10.0/60.0 + 42.80/3600.0 // 114°10'42.80"E
	hkFalseEast  = 836694.05
	hkFalseNorth = 819069.80
	hkScale      = 1.0
)

// WGS84ToMercator projects a geographic coordinate into Web Mercator.
func WGS84ToMercator(p LonLat) XY {
	x := wgs84A * p.Lon * math.Pi / 180.0
	y := wgs84A * math.Log(math.Tan(math.Pi/4.0+p.Lat*math.Pi/360.0))
	return XY{X: x, Y: y}
}

// MercatorToWGS84 is the inverse of WGS84ToMercator.
func MercatorToWGS84(p XY) LonLat {
	lon := p.X / wgs84A * 180.0 / math.Pi
	lat := (2.0*math.Atan(math.Exp(p.Y/wgs84A)) - math.Pi/2.0) * 180.0 / math.Pi
	return LonLat{Lon: lon, Lat: lat}
}

// WGS84ToHK80 converts a WGS84 coordinate to HK1980 Grid easting/northing.
func WGS84ToHK80(p LonLat) XY {
	x, y, z := geodeticToECEF(p.Lat, p.Lon, wgs84A, wgs84F)
	x -= hkShiftX
	y -= hkShiftY
	z -= hkShiftZ
	lat, lon := ecefToGeodetic(x, y, z, intlA, intlF)
	return tmForward(lat, lon)
}

// HK80ToWGS84 converts HK1980 Grid easting/northing to WGS84.
func HK80ToWGS84(p XY) LonLat {
	lat, lon := tmInverse(p)
	x, y, z := geodeticToECEF(lat, lon, intlA, intlF)
	x += hkShiftX
	y += hkShiftY
	z += hkShiftZ
	outLat, outLon := ecefToGeodetic(x, y, z, wgs84A, wgs84F)
	return LonLat{Lon: outLon, Lat: outLat}
}

// geodeticToECEF converts degrees lat/lon on the given ellipsoid to
// earth-centered cartesian coordinates at zero height.
func geodeticToECEF(latDeg, lonDeg, a, f float64) (x, y, z float64) {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	e2 := f * (2 - f)
	sinLat := math.Sin(lat)
	n := a / math.Sqrt(1-e2*sinLat*sinLat)
	x = n * math.Cos(lat) * math.Cos(lon)
	y = n * math.Cos(lat) * math.Sin(lon)
	z = n * (1 - e2) * sinLat
	return x, y, z
}

// ecefToGeodetic converts cartesian coordinates back to degrees lat/lon
// using Bowring's iteration.
func ecefToGeodetic(x, y, z, a, f float64) (latDeg, lonDeg float64) {
	e2 := f * (2 - f)
	p := math.Hypot(x, y)
	lon := math.Atan2(y, x)
	lat := math.Atan2(z, p*(1-e2))
	for i := 0; i < 6; i++ {
		sinLat := math.Sin(lat)
		n := a / math.Sqrt(1-e2*sinLat*sinLat)
		lat = math.Atan2(z+e2*n*sinLat, p)
	}
	return lat * 180.0 / math.Pi, lon * 180.0 / math.Pi
}

// meridianArc returns the meridian arc length from the equator to lat on
// the International 1924 ellipsoid.
func meridianArc(lat float64) float64 {
	e2 := intlF * (2 - intlF)
	e4 := e2 * e2
	e6 := e4 * e2
	a0 := 1 - e2/4 - 3*e4/64 - 5*e6/256
	a2 := 3.0 / 8.0 * (e2 + e4/4 + 15*e6/128)
	a4 := 15.0 / 256.0 * (e4 + 3*e6/4)
	a6 := 35.0 * e6 / 3072.0
	return intlA * (a0*lat - a2*math.Sin(2*lat) + a4*math.Sin(4*lat) - a6*math.Sin(6*lat))
}

// tmForward applies the HK1980 Transverse Mercator projection to degrees
// lat/lon on the International 1924 ellipsoid.
func tmForward(latDeg, lonDeg float64) XY {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0
	lat0 := hkLat0 * math.Pi / 180.0
	lon0 := hkLon0 * math.Pi / 180.0

	e2 := intlF * (2 - intlF)
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	t := math.Tan(lat)
	t2 := t * t
	nu := intlA / math.Sqrt(1-e2*sinLat*sinLat)
	psi := nu * (1 - e2*sinLat*sinLat) / (1 - e2) // nu/rho
	dLon := lon - lon0

	m := meridianArc(lat) - meridianArc(lat0)

	cl := cosLat * dLon
	cl2 := cl * cl

	east := hkFalseEast + hkScale*nu*cl*(1+
		cl2/6*(psi-t2)+
		cl2*cl2/120*(4*psi*psi*psi*(1-6*t2)+psi*psi*(1+8*t2)-psi*2*t2+t2*t2))
	north := hkFalseNorth + hkScale*(m+nu*sinLat*cosLat*dLon*dLon/2*(1+
		cl2/12*(4*psi*psi+psi-t2)))
	return XY{X: east, Y: north}
}

// tmInverse inverts the HK1980 Transverse Mercator projection, returning
// degrees lat/lon on the International 1924 ellipsoid.
func tmInverse(p XY) (latDeg, lonDeg float64) {
	lat0 := hkLat0 * math.Pi / 180.0
	lon0 := hkLon0 * math.Pi / 180.0
	e2 := intlF * (2 - intlF)

	// Footpoint latitude by Newton iteration on the meridian arc.
	m := (p.Y - hkFalseNorth) / hkScale
	target := meridianArc(lat0) + m
	lat := lat0
	for i := 0; i < 8; i++ {
		sinLat := math.Sin(lat)
		rho := intlA * (1 - e2) / math.Pow(1-e2*sinLat*sinLat, 1.5)
		lat += (target - meridianArc(lat)) / rho
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	t := math.Tan(lat)
	t2 := t * t
	nu := intlA / math.Sqrt(1-e2*sinLat*sinLat)
	rho := intlA * (1 - e2) / math.Pow(1-e2*sinLat*sinLat, 1.5)
	psi := nu / rho

	de := (p.X - hkFalseEast) / (hkScale * nu)
	de2 := de * de

	latOut := lat - t/(hkScale*rho)*(p.X-hkFalseEast)*de/2*(1-
		de2/12*(4*psi*psi+9*psi*(1-t2)+12*t2))
	lonOut := lon0 + de/cosLat*(1-
		de2/6*(psi+2*t2)+
		de2*de2/120*(psi*psi*(4-24*t2)+psi*(9-68*t2)+72*psi*t2+24*t2*t2))

	return latOut * 180.0 / math.Pi, lonOut * 180.0 / math.Pi
}
