package feed

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const sampleBatch = `[
  {"id":"a1","name":"Shahed 136 group","typeName":"Безпілотний літак (ударний)","action":"UPDATED",
   "source":{"name":"GRAPHITE"},
   "geometry":{"absolutePointLatitudeCoordinate":{"latitudeCoordinateCoordinate":50.5},
               "absolutePointLongitudeCoordinate":{"longitudeCoordinateCoordinate":30.5}},
   "creatingDateTime":1700000000000,"observationDateTime":-1,"reportingDateTime":1700000060000},
  {"id":42,"name":"Truck","typeName":"Вантажівка","action":"UPDATED","source":{"name":"GRAPHITE"}},
  "not a record",
  {"id":"b2","name":"Orlan","typeName":"Безпілотний літак","action":"CREATED","source":{"name":"GRAPHITE"}}
]`

func TestDecodeBatch(t *testing.T) {
	records, skipped, err := DecodeBatch([]byte(sampleBatch))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	if got := records[0].IDString(); got != "a1" {
		t.Errorf("records[0].IDString() = %q, want a1", got)
	}
	if got := records[1].IDString(); got != "42" {
		t.Errorf("records[1].IDString() = %q, want 42", got)
	}
	if got := records[0].SourceName(); got != "GRAPHITE" {
		t.Errorf("SourceName() = %q, want GRAPHITE", got)
	}
}

func TestDecodeBatch_NotAnArray(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "object", payload: `{"id":"a"}`},
		{name: "truncated", payload: `[{"id":"a"}`},
		{name: "empty", payload: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeBatch([]byte(tt.payload))
			if !errors.Is(err, ErrMalformedJSON) {
				t.Errorf("DecodeBatch() error = %v, want %v", err, ErrMalformedJSON)
			}
		})
	}
}

func TestRecord_IDString(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "string", raw: `"abc"`, want: "abc"},
		{name: "number", raw: `17`, want: "17"},
		{name: "null", raw: `null`, want: ""},
		{name: "missing", raw: ``, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{ID: []byte(tt.raw)}
			if got := r.IDString(); got != tt.want {
				t.Errorf("IDString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordFilter_Filter(t *testing.T) {
	records, _, err := DecodeBatch([]byte(sampleBatch))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}

	metrics := NewMetrics()
	f := NewRecordFilter(DefaultCriteria(), metrics)
	got := f.Filter(records)

	if len(got) != 1 {
		t.Fatalf("Filter() returned %d records, want 1", len(got))
	}
	if got[0].IDString() != "a1" {
		t.Errorf("Filter()[0] id = %q, want a1", got[0].IDString())
	}
	if got := getCounterValue(t, metrics.recordsReceived); got != 3 {
		t.Errorf("records received = %v, want 3", got)
	}
	if got := getCounterValue(t, metrics.recordsMatched); got != 1 {
		t.Errorf("records matched = %v, want 1", got)
	}
}

func TestRecordFilter_PreservesOrder(t *testing.T) {
	mk := func(id string) Record {
		return Record{
			ID:       []byte(`"` + id + `"`),
			TypeName: "Безпілотний літак",
			Action:   DefaultAction,
			Source:   &Source{Name: DefaultSource},
		}
	}
	batch := []Record{mk("3"), mk("1"), {ID: []byte(`"x"`)}, mk("2")}

	got := NewRecordFilter(DefaultCriteria(), nil).Filter(batch)
	want := []string{"3", "1", "2"}
	if len(got) != len(want) {
		t.Fatalf("Filter() returned %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].IDString() != want[i] {
			t.Errorf("Filter()[%d] = %q, want %q", i, got[i].IDString(), want[i])
		}
	}
	if len(batch) != 4 {
		t.Error("Filter() modified its input")
	}
}

func TestIsCandidate(t *testing.T) {
	c := DefaultCriteria()
	base := Record{TypeName: "Безпілотний літак", Action: DefaultAction, Source: &Source{Name: DefaultSource}}

	tests := []struct {
		name   string
		mutate func(r *Record)
		want   bool
	}{
		{name: "all match", mutate: func(r *Record) {}, want: true},
		{name: "category as substring", mutate: func(r *Record) { r.TypeName = "Ворожий Безпілотний літак (розвідка)" }, want: true},
		{name: "wrong category", mutate: func(r *Record) { r.TypeName = "Танк" }, want: false},
		{name: "wrong action", mutate: func(r *Record) { r.Action = "CREATED" }, want: false},
		{name: "wrong source", mutate: func(r *Record) { r.Source = &Source{Name: "OTHER"} }, want: false},
		{name: "no source", mutate: func(r *Record) { r.Source = nil }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			if got := IsCandidate(r, c); got != tt.want {
				t.Errorf("IsCandidate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapper_Map(t *testing.T) {
	records, _, err := DecodeBatch([]byte(sampleBatch))
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}

	ev, err := NewMapper().Map(records[0])
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if ev.ID != "a1" {
		t.Errorf("ID = %q, want a1", ev.ID)
	}
	if ev.Latitude != "50.5" || ev.Longitude != "30.5" {
		t.Errorf("coordinates = %q,%q, want 50.5,30.5", ev.Latitude, ev.Longitude)
	}
	if ev.Point.Lon != 30.5 || ev.Point.Lat != 50.5 {
		t.Errorf("Point = %+v, want lon 30.5 lat 50.5", ev.Point)
	}
	if !ev.Observed.IsZero() {
		t.Errorf("Observed = %v, want zero for absent observation", ev.Observed)
	}
	if ev.Created.UnixMilli() != 1700000000000 {
		t.Errorf("Created = %d, want 1700000000000", ev.Created.UnixMilli())
	}
	if got := ev.FirstNameToken(); got != "Shahed" {
		t.Errorf("FirstNameToken() = %q, want Shahed", got)
	}
}

func TestMapper_Map_Malformed(t *testing.T) {
	lat := &LatitudeCoordinate{Value: "50.1"}
	lon := &LongitudeCoordinate{Value: "30.1"}

	tests := []struct {
		name   string
		record Record
	}{
		{name: "missing id", record: Record{Geometry: &Geometry{Latitude: lat, Longitude: lon}}},
		{name: "missing geometry", record: Record{ID: []byte(`"a"`)}},
		{name: "missing longitude", record: Record{ID: []byte(`"a"`), Geometry: &Geometry{Latitude: lat}}},
		{name: "bad latitude", record: Record{ID: []byte(`"a"`), Geometry: &Geometry{
			Latitude: &LatitudeCoordinate{Value: "north"}, Longitude: lon}}},
		{name: "comma in id", record: Record{ID: []byte(`"1,2"`), Geometry: &Geometry{Latitude: lat, Longitude: lon}}},
		{name: "newline in id", record: Record{ID: []byte(`"1\n2"`), Geometry: &Geometry{Latitude: lat, Longitude: lon}}},
		{name: "carriage return in id", record: Record{ID: []byte(`"1\r"`), Geometry: &Geometry{Latitude: lat, Longitude: lon}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapper().Map(tt.record)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("Map() error = %v, want %v", err, ErrMalformedRecord)
			}
		})
	}
}

func TestMapper_Map_NormalizesCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     json.Number
		lon     json.Number
		wantLat string
		wantLon string
	}{
		{name: "plain", lat: "50.5", lon: "30.5", wantLat: "50.5", wantLon: "30.5"},
		{name: "trailing zeros", lat: "50.50", lon: "30.000", wantLat: "50.5", wantLon: "30"},
		{name: "exponent", lat: "5.05e1", lon: "3.05E+1", wantLat: "50.5", wantLon: "30.5"},
		{name: "negative zero", lat: "-0.0", lon: "-12.250", wantLat: "0", wantLon: "-12.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Record{ID: []byte(`"a"`), Geometry: &Geometry{
				Latitude:  &LatitudeCoordinate{Value: tt.lat},
				Longitude: &LongitudeCoordinate{Value: tt.lon},
			}}
			ev, err := NewMapper().Map(r)
			if err != nil {
				t.Fatalf("Map() error = %v", err)
			}
			if ev.Latitude != tt.wantLat || ev.Longitude != tt.wantLon {
				t.Errorf("coordinates = %q,%q, want %q,%q", ev.Latitude, ev.Longitude, tt.wantLat, tt.wantLon)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{name: "zero", t: time.Time{}, want: ""},
		{name: "epoch", t: time.UnixMilli(0), want: "02:00:00"},
		{name: "afternoon", t: time.Date(2024, 3, 1, 13, 4, 5, 0, time.UTC), want: "15:04:05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatClock(tt.t, loc); got != tt.want {
				t.Errorf("FormatClock() = %q, want %q", got, tt.want)
			}
		})
	}
}
