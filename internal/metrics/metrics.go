package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "bindhub"
)

var (
	hashDurationBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	// Credential Metrics
	CredentialHashDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "credential_hash_duration_seconds",
		Help:      "Time spent computing Argon2id hashes.",
		Buckets:   hashDurationBuckets,
	})

	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_validations_total",
		Help:      "Count of credential validation calls.",
	}, []string{"result"})

	RotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_rotations_total",
		Help:      "Count of committed credential rotations.",
	})

	// Binding Metrics
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "binding_registrations_total",
		Help:      "Count of binding registration attempts.",
	}, []string{"status"})

	// Lifecycle Metrics
	LifecycleEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_events_total",
		Help:      "Count of processed account lifecycle events.",
	}, []string{"kind", "outcome"})

	LifecycleTransitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_binding_transitions_total",
		Help:      "Number of binding status transitions driven by lifecycle events.",
	})
)

// Validation result label values.
const (
	ResultValid    = "valid"
	ResultInvalid  = "invalid"
	ResultInactive = "inactive"
	ResultError    = "error"
)
