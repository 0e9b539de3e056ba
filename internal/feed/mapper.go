package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/zonefeed/internal/geo"
)

// ClockLayout is the 24-hour clock format used for event timestamps.
const ClockLayout = "15:04:05"

// Event is a candidate record reduced to the fields the pipeline needs.
type Event struct {
	ID string
	// Latitude and Longitude are the shortest decimal rendering of the point.
	Latitude  string
	Longitude string
	Point     geo.Point
	Name      string

	Created  time.Time
	Observed time.Time // zero when the source reported no observation
	Reported time.Time
}

// FirstNameToken returns the part of the name before the first space.
func (e Event) FirstNameToken() string {
	token, _, _ := strings.Cut(e.Name, " ")
	return token
}

// Mapper converts candidate records into events.
type Mapper struct{}

// NewMapper creates a Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map extracts an Event from r. Records without a usable id or a parseable
// point fail with ErrMalformedRecord. Missing or unparseable timestamps are
// left zero.
func (m *Mapper) Map(r Record) (Event, error) {
	id := r.IDString()
	if id == "" {
		return Event{}, fmt.Errorf("%w: id: %w", ErrMalformedRecord, ErrMissingField)
	}
	// The id keys comma-separated, newline-delimited rows.
	if strings.ContainsAny(id, ",\r\n") {
		return Event{}, fmt.Errorf("%w: id %q contains a separator", ErrMalformedRecord, id)
	}
	if r.Geometry == nil || r.Geometry.Latitude == nil || r.Geometry.Longitude == nil {
		return Event{}, fmt.Errorf("%w: record %s geometry: %w", ErrMalformedRecord, id, ErrMissingField)
	}

	latText := string(r.Geometry.Latitude.Value)
	lonText := string(r.Geometry.Longitude.Value)
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: record %s latitude %q", ErrMalformedRecord, id, latText)
	}
	lon, err := strconv.ParseFloat(lonText, 64)
	if err != nil {
		return Event{}, fmt.Errorf("%w: record %s longitude %q", ErrMalformedRecord, id, lonText)
	}

	ev := Event{
		ID:        id,
		Latitude:  formatCoordinate(lat),
		Longitude: formatCoordinate(lon),
		Point:     geo.Point{Lon: lon, Lat: lat},
		Name:      r.Name,
		Created:   millisTime(r.CreatingDateTime),
		Reported:  millisTime(r.ReportingDateTime),
	}
	if ms, err := parseMillis(r.ObservationDateTime); err == nil && ms != ObservationAbsent {
		ev.Observed = time.UnixMilli(ms)
	}
	return ev, nil
}

// formatCoordinate renders v without trailing zeros or an exponent.
func formatCoordinate(v float64) string {
	if v == 0 {
		v = 0 // drops the sign of -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func millisTime(n json.Number) time.Time {
	ms, err := parseMillis(n)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// FormatClock renders t as a 24-hour clock time in loc. A zero t renders as "".
func FormatClock(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(ClockLayout)
}
