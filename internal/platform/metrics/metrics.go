// Package metrics registers the Prometheus instruments for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuditEntriesWritten *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	RestoresTotal       prometheus.Counter
	HardDeletesTotal    prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default
// registry.
func New() *Metrics {
	return &Metrics{
		AuditEntriesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_audit_entries_written_total",
			Help: "Audit entries appended to the journal, by action and status.",
		}, []string{"action", "status"}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "admitdesk_audit_write_failures_total",
			Help: "Audit append attempts that failed and fell back to logging.",
		}),
		RestoresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "admitdesk_restores_total",
			Help: "Successful restore operations.",
		}),
		HardDeletesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "admitdesk_hard_deletes_total",
			Help: "Successful permanent deletions.",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "admitdesk_http_requests_total",
			Help: "HTTP requests served, by method and status class.",
		}, []string{"method", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admitdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}
