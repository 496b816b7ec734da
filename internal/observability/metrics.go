package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mibelpanel/pkg/contracts/domain"
)

const namespace = "mibel_panel"

// BuildMetrics exposes the outcome of panel builds. Collectors are
// registered on the registry passed to NewBuildMetrics, never on the global
// default, so every build tool owns its own set.
type BuildMetrics struct {
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	rows          prometheus.Gauge
	events        *prometheus.CounterVec
	missingRate   *prometheus.GaugeVec
	lastSuccess   prometheus.Gauge
	stagedRows    *prometheus.CounterVec
}

// NewBuildMetrics creates and registers the build collectors on reg
func NewBuildMetrics(reg prometheus.Registerer) *BuildMetrics {
	m := &BuildMetrics{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "runs_total",
			Help:      "Panel builds by outcome.",
		}, []string{"status"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Wall time of panel builds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		rows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "rows",
			Help:      "Rows in the most recent panel.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "events_total",
			Help:      "Records dropped or altered during normalization and join, by reason.",
		}, []string{"reason"}),
		missingRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quality",
			Name:      "missing_rate",
			Help:      "Share of missing cells per column and country in the most recent panel.",
		}, []string{"column", "country"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the most recent successful build.",
		}),
		stagedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "staging",
			Name:      "rows_total",
			Help:      "Rows upserted into the staging store, by table.",
		}, []string{"table"}),
	}
	reg.MustRegister(m.builds, m.buildDuration, m.rows, m.events, m.missingRate, m.lastSuccess, m.stagedRows)
	return m
}

// RecordBuild records the outcome of one build
func (m *BuildMetrics) RecordBuild(err error, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.builds.WithLabelValues("error").Inc()
		return
	}
	m.builds.WithLabelValues("success").Inc()
	m.lastSuccess.Set(float64(finished.Unix()))
}

// RecordPanel records the size and quality of a built panel
func (m *BuildMetrics) RecordPanel(panel *domain.Panel, report *domain.QualityReport) {
	if m == nil {
		return
	}
	if panel != nil {
		m.rows.Set(float64(len(panel.Rows)))
	}
	if report == nil {
		return
	}
	for reason, n := range report.Events {
		m.events.WithLabelValues(string(reason)).Add(float64(n))
	}
	for _, e := range report.Coverage {
		m.missingRate.WithLabelValues(e.Column, e.Country).Set(e.MissingRate)
	}
}

// RecordStaged counts rows upserted into table
func (m *BuildMetrics) RecordStaged(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.stagedRows.WithLabelValues(table).Add(float64(n))
}

// WriteTextfile dumps every metric gathered by g in the node-exporter
// textfile format
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
