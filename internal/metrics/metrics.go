// Package metrics defines the Prometheus collectors shared by the engine and its adapters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector taskdeck exports. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Mutations      *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	Refreshes      *prometheus.CounterVec
	CachedTasks    prometheus.Gauge
	RemindersFired *prometheus.CounterVec
	ImportedTasks  *prometheus.CounterVec
	Toasts         *prometheus.CounterVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Mutations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_mutations_total",
				Help: "Mutations issued through the pipeline, by operation and outcome",
			},
			[]string{"op", "status"},
		),
		RemoteDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskdeck_remote_request_duration_seconds",
				Help:    "Duration of calls to the remote task store",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		),
		Refreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_refreshes_total",
				Help: "Cache refreshes from the remote store, by outcome",
			},
			[]string{"status"},
		),
		CachedTasks: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "taskdeck_cached_tasks",
				Help: "Number of tasks in the local cache",
			},
		),
		RemindersFired: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_reminders_fired_total",
				Help: "Due-date reminders delivered, by channel",
			},
			[]string{"channel"},
		),
		ImportedTasks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_imported_tasks_total",
				Help: "Tasks processed by bulk import, by outcome",
			},
			[]string{"status"},
		),
		Toasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskdeck_toasts_total",
				Help: "In-app notifications published, by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) Mutation(op, status string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, status).Inc()
}

func (m *Metrics) ObserveRemote(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RemoteDuration.WithLabelValues(method, status).Observe(seconds)
}

func (m *Metrics) Refresh(status string, cached int) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(status).Inc()
	if status == "success" {
		m.CachedTasks.Set(float64(cached))
	}
}

func (m *Metrics) ReminderFired(channel string) {
	if m == nil {
		return
	}
	m.RemindersFired.WithLabelValues(channel).Inc()
}

func (m *Metrics) Imported(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ImportedTasks.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) Toast(kind string) {
	if m == nil {
		return
	}
	m.Toasts.WithLabelValues(kind).Inc()
}

func (m *Metrics) ResetCache() {
	if m == nil {
		return
	}
	m.CachedTasks.Set(0)
}
