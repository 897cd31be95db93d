package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "firewatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	classifiedEvents *prometheus.CounterVec
	degradedEvents   prometheus.Counter

	ledgerAppends    *prometheus.CounterVec
	ledgerReconciles *prometheus.CounterVec
	ledgerDeletes    *prometheus.CounterVec

	receptionAppends prometheus.Counter
	receptionSweeps  *prometheus.CounterVec

	statusTransitions *prometheus.CounterVec

	registryLoads *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		classifiedEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "classified_events_total",
				Help: "Total classified device events by severity",
			},
			[]string{"severity"},
		)
		degradedEvents = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "degraded_classifications_total",
				Help: "Total classifications resolved by keyword fallback",
			},
		)

		ledgerAppends = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fire_history_appends_total",
				Help: "Total fire history ledger appends by class",
			},
			[]string{"class"},
		)
		ledgerReconciles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fire_history_reconciles_total",
				Help: "Total false-alarm reconciliations by decision",
			},
			[]string{"decision"},
		)
		ledgerDeletes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fire_history_deletes_total",
				Help: "Total fire history deletions by outcome",
			},
			[]string{"outcome"},
		)

		receptionAppends = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "reception_log_appends_total",
				Help: "Total raw reception log appends",
			},
		)
		receptionSweeps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reception_log_sweeps_total",
				Help: "Total retention sweep runs by result",
			},
			[]string{"result"},
		)

		statusTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "market_status_transitions_total",
				Help: "Total market live status transitions by new status",
			},
			[]string{"status"},
		)

		registryLoads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "code_registry_loads_total",
				Help: "Total status code registry loads by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "Total fire history export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "history_export_latency_seconds",
				Help:    "Fire history export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			classifiedEvents,
			degradedEvents,
			ledgerAppends,
			ledgerReconciles,
			ledgerDeletes,
			receptionAppends,
			receptionSweeps,
			statusTransitions,
			registryLoads,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncClassified increments classified event counters.
func IncClassified(severity string, degraded bool) {
	if severity == "" {
		severity = "unknown"
	}
	if classifiedEvents != nil {
		classifiedEvents.WithLabelValues(severity).Inc()
	}
	if degraded && degradedEvents != nil {
		degradedEvents.Inc()
	}
}

// IncLedgerAppend increments the ledger append counter by class.
func IncLedgerAppend(class string) {
	if class == "" {
		class = "unknown"
	}
	if ledgerAppends != nil {
		ledgerAppends.WithLabelValues(class).Inc()
	}
}

// IncLedgerReconcile increments the reconciliation counter by decision.
func IncLedgerReconcile(decision string) {
	if decision == "" {
		decision = "unknown"
	}
	if ledgerReconciles != nil {
		ledgerReconciles.WithLabelValues(decision).Inc()
	}
}

// IncLedgerDelete increments the deletion counter by outcome.
func IncLedgerDelete(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if ledgerDeletes != nil {
		ledgerDeletes.WithLabelValues(outcome).Inc()
	}
}

// IncReceptionAppend increments the raw reception append counter.
func IncReceptionAppend() {
	if receptionAppends != nil {
		receptionAppends.Inc()
	}
}

// IncReceptionSweep increments the retention sweep counter.
func IncReceptionSweep(result string) {
	if result == "" {
		result = resultSuccess
	}
	if receptionSweeps != nil {
		receptionSweeps.WithLabelValues(result).Inc()
	}
}

// IncStatusTransition increments the live status transition counter.
func IncStatusTransition(status string) {
	if status == "" {
		status = "unknown"
	}
	if statusTransitions != nil {
		statusTransitions.WithLabelValues(status).Inc()
	}
}

// IncRegistryLoad increments the code registry load counter.
func IncRegistryLoad(result string) {
	if result == "" {
		result = resultSuccess
	}
	if registryLoads != nil {
		registryLoads.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
