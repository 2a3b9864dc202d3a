package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dani_gate_decisions_total",
			Help: "Usage gate decisions by outcome",
		},
		[]string{"decision"}, // ok|invalid|rate_limited|error
	)

	ReadmeFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dani_readme_fetch_total",
			Help: "GitHub README fetches by outcome",
		},
		[]string{"outcome"}, // ok|failed|invalid_url
	)

	KeyOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dani_key_operations_total",
			Help: "API key management operations by operation and outcome",
		},
		[]string{"op", "outcome"}, // create|rename|delete|reveal , ok|error
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors with r. Only the first call has an effect.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			GateDecisionsTotal,
			ReadmeFetchTotal,
			KeyOperationsTotal,
		)
	})
}
