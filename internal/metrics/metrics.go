// Package metrics exposes Prometheus counters for the triage engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all counters published by the engine and stores. A nil
// *Metrics is accepted everywhere so tests can run without touching the
// global registry.
type Metrics struct {
	ScansTotal              prometheus.Counter
	FindingsTotal           prometheus.Counter
	AlertsWrittenTotal      prometheus.Counter
	AlertsDeduplicatedTotal prometheus.Counter
	IncidentsOpenedTotal    prometheus.Counter
	IncidentsReopenedTotal  prometheus.Counter
	StoreWriteErrorsTotal   prometheus.Counter
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		ScansTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_scans_total",
			Help: "Total number of scan cycles executed",
		}),
		FindingsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_findings_total",
			Help: "Total number of findings produced by evaluators",
		}),
		AlertsWrittenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_alerts_written_total",
			Help: "Total number of alert feed rows written",
		}),
		AlertsDeduplicatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_alerts_deduplicated_total",
			Help: "Total number of scans suppressed by the fingerprint dedup gate",
		}),
		IncidentsOpenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_incidents_opened_total",
			Help: "Total number of incidents created",
		}),
		IncidentsReopenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_incidents_reopened_total",
			Help: "Total number of resolved incidents reopened on recurrence",
		}),
		StoreWriteErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtguard_store_write_errors_total",
			Help: "Total number of persisted-store write failures",
		}),
	}
}

// IncScans increments the scan counter.
func (m *Metrics) IncScans() {
	if m != nil {
		m.ScansTotal.Inc()
	}
}

// AddFindings adds n to the findings counter.
func (m *Metrics) AddFindings(n int) {
	if m != nil {
		m.FindingsTotal.Add(float64(n))
	}
}

// AddAlertsWritten adds n to the written-alerts counter.
func (m *Metrics) AddAlertsWritten(n int) {
	if m != nil {
		m.AlertsWrittenTotal.Add(float64(n))
	}
}

// IncAlertsDeduplicated increments the dedup-suppression counter.
func (m *Metrics) IncAlertsDeduplicated() {
	if m != nil {
		m.AlertsDeduplicatedTotal.Inc()
	}
}

// IncIncidentsOpened increments the incidents-created counter.
func (m *Metrics) IncIncidentsOpened() {
	if m != nil {
		m.IncidentsOpenedTotal.Inc()
	}
}

// IncIncidentsReopened increments the incidents-reopened counter.
func (m *Metrics) IncIncidentsReopened() {
	if m != nil {
		m.IncidentsReopenedTotal.Inc()
	}
}

// IncStoreWriteErrors increments the store-write-failure counter.
func (m *Metrics) IncStoreWriteErrors() {
	if m != nil {
		m.StoreWriteErrorsTotal.Inc()
	}
}
