package zone

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/onnwee/zonefeed/internal/geo"
)

// rowFields is the number of columns in a zone row: name, nw, sw, se, ne.
const rowFields = 5

// LoadFile opens path and loads it with Load.
func LoadFile(path string, logger *slog.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zone table: %w", err)
	}
	defer f.Close()

	idx, err := Load(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return idx, nil
}

// Load reads a zone table: one header line followed by rows of
// "name,nw,sw,se,ne" where every corner is "<lon>|<lat>".
//
// Malformed rows are logged and skipped. A name that appears twice keeps its
// first position and takes the corners of the later row. Load returns
// ErrNoZones when no row survives.
func Load(r io.Reader, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var (
		zones  []Zone
		byName = make(map[string]int)
		header = true
	)

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				logger.Warn("skipping unreadable zone row",
					slog.Int("line", pe.Line),
					slog.String("error", err.Error()))
				continue
			}
			return nil, fmt.Errorf("failed to read zone table: %w", err)
		}
		if header {
			header = false
			continue
		}

		line, _ := cr.FieldPos(0)
		z, err := parseRow(record)
		if err != nil {
			logger.Warn("skipping malformed zone row",
				slog.Int("line", line),
				slog.String("error", err.Error()))
			continue
		}

		if i, ok := byName[z.Name]; ok {
			zones[i] = z
			continue
		}
		byName[z.Name] = len(zones)
		zones = append(zones, z)
	}

	if len(zones) == 0 {
		return nil, ErrNoZones
	}

	logger.Info("zone table loaded", slog.Int("zones", len(zones)))
	return newIndex(zones), nil
}

func parseRow(record []string) (Zone, error) {
	if len(record) != rowFields {
		return Zone{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedZoneRow, rowFields, len(record))
	}
	name := strings.TrimSpace(record[0])
	if name == "" {
		return Zone{}, fmt.Errorf("%w: empty name", ErrMalformedZoneRow)
	}

	z := Zone{Name: name}
	for i, raw := range record[1:] {
		p, err := geo.ParsePoint(raw)
		if err != nil {
			return Zone{}, fmt.Errorf("%w: zone %q corner %d: %v", ErrMalformedZoneRow, name, i, err)
		}
		z.Corners[i] = p
	}
	return z, nil
}
