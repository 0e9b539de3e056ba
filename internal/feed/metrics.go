package feed

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricBatchesReceived  = "zonefeed_batches_received_total"
	MetricRecordsReceived  = "zonefeed_records_received_total"
	MetricRecordsMatched   = "zonefeed_records_matched_total"
	MetricRecordsMalformed = "zonefeed_records_malformed_total"
	MetricResolutions      = "zonefeed_resolutions_total"
	MetricPersistFailures  = "zonefeed_persist_failures_total"
	MetricSinkFailures     = "zonefeed_sink_failures_total"
	MetricReconnects       = "zonefeed_reconnection_attempts_total"
	MetricIngestLatency    = "zonefeed_ingest_latency_seconds"
	MetricStoreRows        = "zonefeed_store_rows"
)

// Resolution kinds recorded by ObserveResolution.
const (
	ResolutionContained = "contained"
	ResolutionNearest   = "nearest"
)

var _ FilterObserver = (*Metrics)(nil)

// Metrics contains Prometheus metrics for the ingester.
// All operations are thread-safe.
type Metrics struct {
	batchesReceived  prometheus.Counter
	recordsReceived  prometheus.Counter
	recordsMatched   prometheus.Counter
	recordsMalformed prometheus.Counter
	resolutions      *prometheus.CounterVec
	persistFailures  prometheus.Counter
	sinkFailures     *prometheus.CounterVec
	reconnects       prometheus.Counter
	ingestLatency    prometheus.Histogram
	storeRows        *prometheus.GaugeVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		batchesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricBatchesReceived,
			Help: "Total number of record batches received from the feed",
		}),
		recordsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsReceived,
			Help: "Total number of records seen by the filter",
		}),
		recordsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsMatched,
			Help: "Total number of records that passed the candidate filter",
		}),
		recordsMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRecordsMalformed,
			Help: "Total number of records skipped as malformed",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricResolutions,
			Help: "Total number of zone resolutions by kind",
		}, []string{"kind"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricPersistFailures,
			Help: "Total number of failed store writes",
		}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSinkFailures,
			Help: "Total number of failed sink publishes by sink",
		}, []string{"sink"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricReconnects,
			Help: "Total number of failed feed connection attempts",
		}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricIngestLatency,
			Help:    "Histogram of batch ingestion latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		storeRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricStoreRows,
			Help: "Number of rows currently held by each store",
		}, []string{"store"}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncBatchesReceived increments the batches received counter.
func (m *Metrics) IncBatchesReceived() {
	m.batchesReceived.Inc()
}

// AddRecordsReceived adds n to the records received counter.
func (m *Metrics) AddRecordsReceived(n int) {
	m.recordsReceived.Add(float64(n))
}

// AddRecordsMatched adds n to the records matched counter.
func (m *Metrics) AddRecordsMatched(n int) {
	m.recordsMatched.Add(float64(n))
}

// AddRecordsMalformed adds n to the malformed records counter.
func (m *Metrics) AddRecordsMalformed(n int) {
	m.recordsMalformed.Add(float64(n))
}

// ObserveResolution counts a resolution of the given kind.
func (m *Metrics) ObserveResolution(kind string) {
	m.resolutions.WithLabelValues(kind).Inc()
}

// IncPersistFailures increments the persist failure counter.
func (m *Metrics) IncPersistFailures() {
	m.persistFailures.Inc()
}

// IncSinkFailures increments the failure counter for sink.
func (m *Metrics) IncSinkFailures(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// IncReconnectionAttempts increments the reconnection attempts counter.
func (m *Metrics) IncReconnectionAttempts() {
	m.reconnects.Inc()
}

// ObserveIngestLatency records an ingestion latency sample.
func (m *Metrics) ObserveIngestLatency(seconds float64) {
	m.ingestLatency.Observe(seconds)
}

// SetStoreRows records the current row count of store.
func (m *Metrics) SetStoreRows(store string, n int) {
	m.storeRows.WithLabelValues(store).Set(float64(n))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.batchesReceived,
		m.recordsReceived,
		m.recordsMatched,
		m.recordsMalformed,
		m.resolutions,
		m.persistFailures,
		m.sinkFailures,
		m.reconnects,
		m.ingestLatency,
		m.storeRows,
	}
}
