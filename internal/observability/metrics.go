package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the monitor.
type Metrics struct {
	SchedulerRunning prometheus.Gauge
	PollTicks        prometheus.Counter
	TickDuration     prometheus.Histogram

	// Ingestion metrics.
	FetchErrors           *prometheus.CounterVec   // labels: kind={unavailable,invalid_reading,rate_limited,canceled}
	SourceRequestDuration *prometheus.HistogramVec // labels: outcome={none,unavailable,invalid_reading,rate_limited,canceled}
	ReadingsStored        prometheus.Counter
	StorageErrors         *prometheus.CounterVec // labels: op={append_reading,append_alert,upsert_summary}
	LastReadingTimestamp  *prometheus.GaugeVec   // labels: city

	// Alerting metrics.
	RulesLoaded     *prometheus.GaugeVec // labels: state={active,disabled}
	RuleEvaluations prometheus.Counter
	Alerts          *prometheus.CounterVec // labels: outcome={dispatched,suppressed}
	SinkFailures    *prometheus.CounterVec // labels: sink

	// Aggregation metrics.
	Aggregations *prometheus.CounterVec // labels: outcome={stored,empty,error}
}

// NewMetrics creates and registers all monitor metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.SchedulerRunning,
		m.PollTicks,
		m.TickDuration,
		m.FetchErrors,
		m.SourceRequestDuration,
		m.ReadingsStored,
		m.StorageErrors,
		m.LastReadingTimestamp,
		m.RulesLoaded,
		m.RuleEvaluations,
		m.Alerts,
		m.SinkFailures,
		m.Aggregations,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      help("1 when the polling and aggregation loops are active, 0 when stopped."),
		}),
		PollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      help("Total polling ticks across all cities."),
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      help("Duration of a complete polling tick."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      help("Weather source failures by kind."),
		}, []string{"kind"}),
		SourceRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      help("Weather provider request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_stored_total",
			Help:      help("Total readings appended to the store."),
		}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      help("Reading store failures by operation."),
		}, []string{"op"}),
		LastReadingTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      help("Unix time of the newest stored reading per city."),
		}, []string{"city"}),
		RulesLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_loaded",
			Help:      help("Alert rules loaded at startup by state."),
		}, []string{"state"}),
		RuleEvaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_evaluations_total",
			Help:      help("Total rule evaluations against stored readings."),
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      help("Alert fires by outcome."),
		}, []string{"outcome"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      help("Notification sink send failures by sink."),
		}, []string{"sink"}),
		Aggregations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregations_total",
			Help:      help("Daily aggregation runs by outcome."),
		}, []string{"outcome"}),
	}
}
