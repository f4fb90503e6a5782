// Package metrics provides Prometheus metrics for upstream calls and issuance outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the holder collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	UpstreamRequestsTotal   *prometheus.CounterVec   // upstream calls by call and outcome
	UpstreamRequestDuration *prometheus.HistogramVec // upstream latency by call
	IssuanceOutcomesTotal   *prometheus.CounterVec   // make-QR outcomes by mode and end state
	EventGroupsStoredTotal  *prometheus.CounterVec   // event groups persisted by mode
	GreenCardsRemovedTotal  prometheus.Counter       // expired green cards removed by cleanup
}

// New registers all collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_upstream_requests_total",
			Help: "Total number of upstream calls by call and outcome",
		}, []string{"call", "outcome"}),

		UpstreamRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "holder_upstream_request_duration_seconds",
			Help:    "Duration of upstream calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"call"}),

		IssuanceOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_issuance_outcomes_total",
			Help: "Total number of make-QR outcomes by event mode and end state",
		}, []string{"mode", "end_state"}),

		EventGroupsStoredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holder_event_groups_stored_total",
			Help: "Total number of event groups stored by event mode",
		}, []string{"mode"}),

		GreenCardsRemovedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "holder_greencards_removed_total",
			Help: "Total number of expired green cards removed",
		}),
	}
}

// ObserveUpstream records one upstream call. outcome is "success" or an error kind.
func (m *Metrics) ObserveUpstream(call, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(call, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(call).Observe(d.Seconds())
}

func (m *Metrics) IncIssuanceOutcome(mode, endState string) {
	if m == nil {
		return
	}
	m.IssuanceOutcomesTotal.WithLabelValues(mode, endState).Inc()
}

func (m *Metrics) IncEventGroupsStored(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EventGroupsStoredTotal.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) AddGreenCardsRemoved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.GreenCardsRemovedTotal.Add(float64(n))
}
