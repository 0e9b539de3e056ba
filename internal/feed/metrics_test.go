package feed

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}

	if collectors := m.Collectors(); len(collectors) != 10 {
		t.Errorf("expected 10 collectors, got %d", len(collectors))
	}
}

func TestMetrics_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		m := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m.Register(reg); err != nil {
			t.Fatalf("Register() returned error: %v", err)
		}

		// Vectors only export series once a label set has been used.
		m.ObserveResolution(ResolutionContained)
		m.IncSinkFailures("redis")
		m.SetStoreRows("detailed", 3)

		families, err := reg.Gather()
		if err != nil {
			t.Fatalf("Gather() returned error: %v", err)
		}

		expectedNames := map[string]bool{
			MetricBatchesReceived:  false,
			MetricRecordsReceived:  false,
			MetricRecordsMatched:   false,
			MetricRecordsMalformed: false,
			MetricResolutions:      false,
			MetricPersistFailures:  false,
			MetricSinkFailures:     false,
			MetricReconnects:       false,
			MetricIngestLatency:    false,
			MetricStoreRows:        false,
		}

		for _, family := range families {
			if _, ok := expectedNames[family.GetName()]; ok {
				expectedNames[family.GetName()] = true
			}
		}

		for name, found := range expectedNames {
			if !found {
				t.Errorf("metric %s not found in gathered metrics", name)
			}
		}
	})

	t.Run("duplicate registration fails", func(t *testing.T) {
		m1 := NewMetrics()
		m2 := NewMetrics()
		reg := prometheus.NewRegistry()

		if err := m1.Register(reg); err != nil {
			t.Fatalf("first Register() returned error: %v", err)
		}

		if err := m2.Register(reg); err == nil {
			t.Error("second Register() should have returned an error")
		}
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.IncBatchesReceived()
	m.IncBatchesReceived()
	m.AddRecordsReceived(5)
	m.AddRecordsMatched(2)
	m.AddRecordsMalformed(1)
	m.IncPersistFailures()
	m.IncReconnectionAttempts()
	m.ObserveResolution(ResolutionNearest)
	m.ObserveResolution(ResolutionNearest)
	m.IncSinkFailures("s3")

	tests := []struct {
		name    string
		counter prometheus.Counter
		want    float64
	}{
		{name: "batches", counter: m.batchesReceived, want: 2},
		{name: "received", counter: m.recordsReceived, want: 5},
		{name: "matched", counter: m.recordsMatched, want: 2},
		{name: "malformed", counter: m.recordsMalformed, want: 1},
		{name: "persist failures", counter: m.persistFailures, want: 1},
		{name: "reconnects", counter: m.reconnects, want: 1},
		{name: "nearest resolutions", counter: m.resolutions.WithLabelValues(ResolutionNearest), want: 2},
		{name: "s3 sink failures", counter: m.sinkFailures.WithLabelValues("s3"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getCounterValue(t, tt.counter); got != tt.want {
				t.Errorf("counter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetrics_StoreRowsAndLatency(t *testing.T) {
	m := NewMetrics()

	m.SetStoreRows("simple", 7)
	m.SetStoreRows("simple", 4)
	m.ObserveIngestLatency(0.25)

	var g dto.Metric
	if err := m.storeRows.WithLabelValues("simple").Write(&g); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := g.GetGauge().GetValue(); got != 4 {
		t.Errorf("store rows = %v, want 4", got)
	}

	var h dto.Metric
	if err := m.ingestLatency.Write(&h); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := h.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("latency sample count = %d, want 1", got)
	}
}

// getCounterValue extracts the current value from a counter.
func getCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
