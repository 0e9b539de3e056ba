package geo

import "strings"

// DefaultPrecision is the geohash length attached to resolved events.
// Six characters give roughly ±0.61 km, enough to group nearby sightings.
const DefaultPrecision = 6

// base32 is the geohash alphabet (no 'a', 'i', 'l' or 'o').
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Geohash encodes p with the given precision. A precision below 1 uses DefaultPrecision.
func (p Point) Geohash(precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	lat := [2]float64{-90.0, 90.0}
	lon := [2]float64{-180.0, 180.0}

	var sb strings.Builder
	sb.Grow(precision)

	var ch uint
	bit := 0
	evenBit := true
	for sb.Len() < precision {
		// Longitude and latitude bits interleave, longitude first.
		rng, v := &lat, p.Lat
		if evenBit {
			rng, v = &lon, p.Lon
		}
		mid := (rng[0] + rng[1]) / 2
		if v > mid {
			ch |= 1 << (4 - bit)
			rng[0] = mid
		} else {
			rng[1] = mid
		}
		evenBit = !evenBit

		if bit++; bit == 5 {
			sb.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}
	return sb.String()
}
