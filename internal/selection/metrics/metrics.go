package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the selection module.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	ProcessesCreated   *prometheus.CounterVec
	ProcessTransitions *prometheus.CounterVec
	SelectionsRecorded prometheus.Counter
	SelectionsRejected *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	HistoriesArchived  prometheus.Counter
	ArchiveFailures    prometheus.Counter
	ArchivePending     prometheus.Gauge
}

// New registers the selection metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the selection metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProcessesCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stablehand_selection_processes_created_total",
			Help: "Selection processes created, by ordering algorithm",
		}, []string{"algorithm"}),
		ProcessTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stablehand_selection_process_transitions_total",
			Help: "Selection process status transitions, by target status",
		}, []string{"status"}),
		SelectionsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "stablehand_selections_recorded_total",
			Help: "Routine selections recorded",
		}),
		SelectionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stablehand_selections_rejected_total",
			Help: "Routine selections rejected, by error code",
		}, []string{"code"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stablehand_selection_operation_duration_seconds",
			Help:    "Duration of selection service operations",
			Buckets: durationBuckets,
		}, []string{"operation"}),
		HistoriesArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "stablehand_selection_histories_archived_total",
			Help: "History records written for completed processes",
		}),
		ArchiveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "stablehand_selection_archive_failures_total",
			Help: "Failed history archive attempts",
		}),
		ArchivePending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stablehand_selection_archive_pending",
			Help: "Completed processes queued for archive retry",
		}),
	}
}

func (m *Metrics) IncrementProcessCreated(algorithm string) {
	if m == nil {
		return
	}
	m.ProcessesCreated.WithLabelValues(algorithm).Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	if m == nil {
		return
	}
	m.ProcessTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementSelectionRecorded() {
	if m == nil {
		return
	}
	m.SelectionsRecorded.Inc()
}

func (m *Metrics) IncrementSelectionRejected(code string) {
	if m == nil {
		return
	}
	m.SelectionsRejected.WithLabelValues(code).Inc()
}

// ObserveOperation records the duration of an operation started at start.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementHistoryArchived() {
	if m == nil {
		return
	}
	m.HistoriesArchived.Inc()
}

func (m *Metrics) IncrementArchiveFailure() {
	if m == nil {
		return
	}
	m.ArchiveFailures.Inc()
}

func (m *Metrics) SetArchivePending(n int) {
	if m == nil {
		return
	}
	m.ArchivePending.Set(float64(n))
}
