// Package zone loads named quadrilateral zones from a reference table and
// resolves points to zone labels by containment, falling back to the nearest
// zone corner.
package zone

import (
	"errors"

	"github.com/onnwee/zonefeed/internal/geo"
)

// Errors returned while loading a zone table.
var (
	ErrMalformedZoneRow = errors.New("malformed zone row")
	ErrNoZones          = errors.New("zone table contains no valid zones")
)

// Corner positions within Zone.Corners. The order is the ring winding used
// by the containment test.
const (
	NW = iota
	SW
	SE
	NE
)

// Zone is a named quadrilateral region.
type Zone struct {
	Name    string
	Corners [4]geo.Point
}

// Ring returns the corners as a polygon ring in NW, SW, SE, NE order.
func (z Zone) Ring() []geo.Point {
	return z.Corners[:]
}

// Contains reports whether p lies inside the zone.
func (z Zone) Contains(p geo.Point) bool {
	return geo.InRing(p, z.Ring())
}

// CornerDistanceKm returns the great-circle distance from p to the closest of
// the zone's four corners. Edges are not considered.
func (z Zone) CornerDistanceKm(p geo.Point) float64 {
	best := geo.HaversineKm(p, z.Corners[0])
	for _, c := range z.Corners[1:] {
		if d := geo.HaversineKm(p, c); d < best {
			best = d
		}
	}
	return best
}

// bounds returns min lon, min lat, max lon, max lat over the corners.
func (z Zone) bounds() (minLon, minLat, maxLon, maxLat float64) {
	minLon, minLat = z.Corners[0].Lon, z.Corners[0].Lat
	maxLon, maxLat = minLon, minLat
	for _, c := range z.Corners[1:] {
		minLon = min(minLon, c.Lon)
		minLat = min(minLat, c.Lat)
		maxLon = max(maxLon, c.Lon)
		maxLat = max(maxLat, c.Lat)
	}
	return minLon, minLat, maxLon, maxLat
}
