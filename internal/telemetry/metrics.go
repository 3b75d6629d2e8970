package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are per-process counters for the import pipeline. A batch run can
// dump them to a node_exporter textfile; serve exposes them on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	LinesExtracted  prometheus.Counter
	RecordsParsed   prometheus.Counter
	RecordsInserted prometheus.Counter
	RecordsSkipped  prometheus.Counter
	WindowQuirks    *prometheus.CounterVec
	FetchBytes      prometheus.Counter
	StageDuration   *prometheus.HistogramVec
	Runs            *prometheus.CounterVec
	LastSuccess     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}
	m.LinesExtracted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "lines_extracted_total",
		Help:      "Text lines extracted from incident summary documents",
	})
	m.RecordsParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "records_parsed_total",
		Help:      "Incident records produced by the parser",
	})
	m.RecordsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "records_inserted_total",
		Help:      "Incident records written to the store",
	})
	m.RecordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "records_duplicate_total",
		Help:      "Incident records skipped because the case number already existed",
	})
	m.WindowQuirks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "window_quirks_total",
		Help:      "Record windows that needed the RAMP shift or got the sentinel category",
	}, []string{"quirk"})
	m.FetchBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "fetch_bytes_total",
		Help:      "Bytes downloaded",
	})
	m.StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "normanpd",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
	m.Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "normanpd",
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})
	m.LastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "normanpd",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run",
	})
	m.Registry.MustRegister(
		m.LinesExtracted, m.RecordsParsed, m.RecordsInserted, m.RecordsSkipped,
		m.WindowQuirks, m.FetchBytes, m.StageDuration, m.Runs, m.LastSuccess,
	)
	return m
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
