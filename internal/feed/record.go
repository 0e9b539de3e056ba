// Package feed decodes, filters and maps geotagged event records received from
// the upstream event feed, and provides the websocket transport that delivers them.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Errors for batch decoding and record mapping.
var (
	ErrMalformedJSON   = errors.New("malformed JSON payload")
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingField    = errors.New("required field missing")
)

// ObservationAbsent is the sentinel the source uses when a record has no observation time.
const ObservationAbsent = -1

// Record is one decoded element of a feed-collection batch. Only the fields the
// pipeline uses are declared; everything else in the payload is ignored.
type Record struct {
	ID                  json.RawMessage `json:"id"`
	Name                string          `json:"name"`
	TypeName            string          `json:"typeName"`
	Action              string          `json:"action"`
	Source              *Source         `json:"source"`
	Geometry            *Geometry       `json:"geometry"`
	CreatingDateTime    json.Number     `json:"creatingDateTime"`
	ObservationDateTime json.Number     `json:"observationDateTime"`
	ReportingDateTime   json.Number     `json:"reportingDateTime"`
}

// Source identifies the system that produced a record.
type Source struct {
	Name string `json:"name"`
}

// Geometry carries the absolute point of a record.
type Geometry struct {
	Latitude  *LatitudeCoordinate  `json:"absolutePointLatitudeCoordinate"`
	Longitude *LongitudeCoordinate `json:"absolutePointLongitudeCoordinate"`
}

// LatitudeCoordinate wraps a latitude value.
type LatitudeCoordinate struct {
	Value json.Number `json:"latitudeCoordinateCoordinate"`
}

// LongitudeCoordinate wraps a longitude value.
type LongitudeCoordinate struct {
	Value json.Number `json:"longitudeCoordinateCoordinate"`
}

// SourceName returns the record's source name, or "" when absent.
func (r Record) SourceName() string {
	if r.Source == nil {
		return ""
	}
	return r.Source.Name
}

// IDString returns the record id as text. String ids are unquoted, numeric
// ids keep their literal form. Null or missing ids yield "".
func (r Record) IDString() string {
	raw := bytes.TrimSpace(r.ID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

// DecodeBatch decodes a JSON array of records. Elements that do not decode as
// a Record are dropped and counted in skipped; only a payload that is not a
// JSON array at all is an error.
func DecodeBatch(payload []byte) (records []Record, skipped int, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(payload, &elems); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	records = make([]Record, 0, len(elems))
	for _, elem := range elems {
		var rec Record
		if err := json.Unmarshal(elem, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// parseMillis parses an epoch-milliseconds value. Fractional values are truncated.
func parseMillis(n json.Number) (int64, error) {
	if ms, err := n.Int64(); err == nil {
		return ms, nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
