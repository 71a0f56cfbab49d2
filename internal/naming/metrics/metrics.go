package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the naming module.
type Metrics struct {
	// Successful registrations by name length bucket
	DomainsRegistered *prometheus.CounterVec

	// Successful renewals
	DomainsRenewed prometheus.Counter

	// Rent escrowed across registrations and renewals, in whole tokens
	RentCollected prometheus.Counter

	// Registration step latency
	RegisterLatency prometheus.Histogram
}

// New creates a new Metrics instance with all naming module metrics registered.
func New() *Metrics {
	return &Metrics{
		DomainsRegistered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nameservice_domains_registered_total",
			Help: "Total successful domain registrations by price bucket",
		}, []string{"bucket"}),

		DomainsRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nameservice_domains_renewed_total",
			Help: "Total successful domain renewals",
		}),

		RentCollected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "nameservice_rent_collected_tokens",
			Help: "Rent escrowed across registrations and renewals, in tokens",
		}),

		RegisterLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "nameservice_register_duration_seconds",
			Help:    "Duration of the full registration step",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// IncrementRegistered records a successful registration.
func (m *Metrics) IncrementRegistered(bucket string) {
	if m != nil {
		m.DomainsRegistered.WithLabelValues(bucket).Inc()
	}
}

// IncrementRenewed records a successful renewal.
func (m *Metrics) IncrementRenewed() {
	if m != nil {
		m.DomainsRenewed.Inc()
	}
}

// AddRentCollected records rent moved into escrow.
func (m *Metrics) AddRentCollected(tokens float64) {
	if m != nil {
		m.RentCollected.Add(tokens)
	}
}

// ObserveRegisterLatency records the duration of a registration step.
func (m *Metrics) ObserveRegisterLatency(d time.Duration) {
	if m != nil {
		m.RegisterLatency.Observe(d.Seconds())
	}
}
