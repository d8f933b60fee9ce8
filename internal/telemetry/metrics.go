package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency. Shared across all modes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "lynex",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// EventsIngestedTotal counts accepted ingest requests by event type.
var EventsIngestedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "ingest",
		Name:      "events_total",
		Help:      "Total number of events accepted by ingest admission, by type.",
	},
	[]string{"type"},
)

// EventsRejectedTotal counts rejected ingest requests by reason.
var EventsRejectedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "ingest",
		Name:      "events_rejected_total",
		Help:      "Total number of events rejected by ingest admission, by reason.",
	},
	[]string{"reason"},
)

// BusMemoryFallbackTotal counts events queued to the in-memory fallback ring.
var BusMemoryFallbackTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "bus",
		Name:      "memory_fallback_total",
		Help:      "Total number of events queued via the in-memory fallback ring.",
	},
)

// BusMemoryFallbackDroppedTotal counts events dropped by the fallback ring when full.
var BusMemoryFallbackDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "bus",
		Name:      "memory_fallback_dropped_total",
		Help:      "Total number of events dropped by the in-memory fallback ring because it was full.",
	},
)

// ProcessorMessagesTotal counts messages processed by the processor loop, by outcome.
var ProcessorMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "processor",
		Name:      "messages_total",
		Help:      "Total number of bus messages handled by the processor, by outcome.",
	},
	[]string{"outcome"},
)

// ProcessorClaimedTotal counts messages reclaimed from idle consumers.
var ProcessorClaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "processor",
		Name:      "claimed_total",
		Help:      "Total number of pending messages reclaimed from idle consumers.",
	},
)

// AlertsEvaluatedTotal counts rule evaluations.
var AlertsEvaluatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "alerts",
		Name:      "evaluated_total",
		Help:      "Total number of alert rule evaluations performed.",
	},
)

// AlertsTriggeredTotal counts triggered alerts by severity.
var AlertsTriggeredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "alerts",
		Name:      "triggered_total",
		Help:      "Total number of triggered alerts, by severity.",
	},
	[]string{"severity"},
)

// NotifierSendTotal counts notifier send attempts by channel and result.
var NotifierSendTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "notifier",
		Name:      "send_total",
		Help:      "Total number of notifier send attempts, by channel and result.",
	},
	[]string{"channel", "result"},
)

// AnalyticsBufferDepth reports the current in-memory analytics writer buffer size.
var AnalyticsBufferDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "lynex",
		Subsystem: "analytics",
		Name:      "buffer_depth",
		Help:      "Current number of buffered events awaiting flush to the analytics store.",
	},
)

// AnalyticsFlushTotal counts analytics flush attempts by result.
var AnalyticsFlushTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "analytics",
		Name:      "flush_total",
		Help:      "Total number of analytics buffer flushes, by result.",
	},
	[]string{"result"},
)

// ArchiveRowsExportedTotal counts rows exported to cold-tier storage.
var ArchiveRowsExportedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "archiver",
		Name:      "rows_exported_total",
		Help:      "Total number of rows exported by the cold-tier archiver.",
	},
)

// ArchiveCycleFailuresTotal counts archive month-batches that failed.
var ArchiveCycleFailuresTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "archiver",
		Name:      "cycle_failures_total",
		Help:      "Total number of archive month-batches that failed to export.",
	},
)

// UsageLimitRejectedTotal counts requests rejected for exceeding the monthly usage limit.
var UsageLimitRejectedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "usage",
		Name:      "limit_rejected_total",
		Help:      "Total number of ingest requests rejected for exceeding the monthly usage limit.",
	},
)

// UsageFailOpenTotal counts usage-accountant checks that failed open.
var UsageFailOpenTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "lynex",
		Subsystem: "usage",
		Name:      "fail_open_total",
		Help:      "Total number of usage checks that failed open due to counter-store unavailability.",
	},
)

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and any additional collectors.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}

// All returns all lynex-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		EventsIngestedTotal,
		EventsRejectedTotal,
		BusMemoryFallbackTotal,
		BusMemoryFallbackDroppedTotal,
		ProcessorMessagesTotal,
		ProcessorClaimedTotal,
		AlertsEvaluatedTotal,
		AlertsTriggeredTotal,
		NotifierSendTotal,
		AnalyticsBufferDepth,
		AnalyticsFlushTotal,
		ArchiveRowsExportedTotal,
		ArchiveCycleFailuresTotal,
		UsageLimitRejectedTotal,
		UsageFailOpenTotal,
	}
}
