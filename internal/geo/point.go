// Package geo provides coordinate types and pure geometry helpers used to
// classify event positions into zones.
package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PointSeparator separates longitude and latitude in the textual point encoding.
const PointSeparator = "|"

// ErrInvalidPoint is returned when a textual point cannot be parsed.
var ErrInvalidPoint = errors.New("invalid point")

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// ParsePoint parses the "<lon>|<lat>" encoding used by zone reference tables.
// Surrounding whitespace and double quotes are tolerated.
func ParsePoint(s string) (Point, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	lonStr, latStr, ok := strings.Cut(s, PointSeparator)
	if !ok {
		return Point{}, fmt.Errorf("%w: %q has no %q separator", ErrInvalidPoint, s, PointSeparator)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q: %v", ErrInvalidPoint, lonStr, err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q: %v", ErrInvalidPoint, latStr, err)
	}
	return Point{Lon: lon, Lat: lat}, nil
}

// String returns the "<lon>|<lat>" encoding of p.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + PointSeparator + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
