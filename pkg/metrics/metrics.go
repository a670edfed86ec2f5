package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TrackingEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_events_total",
			Help: "Total number of tracking events ingested (count)",
		},
		[]string{"type"},
	)

	ContactsIdentifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "contacts_identified_total",
			Help: "Total number of contact identification events published (count)",
		},
	)

	ContactsStitchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_stitched_total",
			Help: "Total number of contact stitch operations (count)",
		},
		[]string{"mode"},
	)

	AutomationDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_dispatch_total",
			Help: "Total number of webhook dispatch attempts (count)",
		},
		[]string{"run_type", "result"},
	)

	AutomationDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "automation_dispatch_duration_ms",
			Help:    "Webhook dispatch duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"result"},
	)

	AutomationActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "automation_active_rules",
			Help: "Number of enabled automation rules at last trigger (count)",
		},
	)

	AutomationRunsRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_runs_recorded_total",
			Help: "Total number of run ledger entries written (count)",
		},
		[]string{"run_type"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func Register() {
	prometheus.MustRegister(TrackingEventsTotal)
	prometheus.MustRegister(ContactsIdentifiedTotal)
	prometheus.MustRegister(ContactsStitchedTotal)
	prometheus.MustRegister(AutomationDispatchTotal)
	prometheus.MustRegister(AutomationDispatchDuration)
	prometheus.MustRegister(AutomationActiveRules)
	prometheus.MustRegister(AutomationRunsRecordedTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncTrackingEvent(eventType string) {
	TrackingEventsTotal.WithLabelValues(eventType).Inc()
}

func ObserveDispatchDuration(duration time.Duration, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	AutomationDispatchDuration.WithLabelValues(result).Observe(float64(duration.Milliseconds()))
}

func IncDispatch(runType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	AutomationDispatchTotal.WithLabelValues(runType, result).Inc()
}

func SetActiveRules(count int) {
	AutomationActiveRules.Set(float64(count))
}

func IncRunRecorded(runType string) {
	AutomationRunsRecordedTotal.WithLabelValues(runType).Inc()
}
