// Package metrics defines and registers all custom Prometheus metrics for the
// account API. It is the single source of truth for metric names, labels, and
// help strings.
//
// The metrics are registered with the default Prometheus registry at package
// initialisation and exposed on GET /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// AccountOperationsTotal counts completed account operations.
// Labels:
//   - operation: health, create, get_one, get_all, update, delete
//   - outcome: the status category (ok, clientError, conflict, notFound, serverError)
var AccountOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of account operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// EmailConflictsTotal counts rejected writes because the email was taken.
// Label:
//   - source: "precheck" (uniqueness guard) or "constraint" (storage unique index)
var EmailConflictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "email_conflicts_total",
		Help:      "Total number of email conflicts, by detection source.",
	},
	[]string{"source"},
)

// PasswordHashDuration measures the bcrypt hashing cost per call.
var PasswordHashDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of a single password hash computation.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
)

// CacheLookupsTotal counts account cache lookups.
// Label:
//   - result: "hit", "miss" or "error"
var CacheLookupsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Total number of account cache lookups, labelled by result.",
	},
	[]string{"result"},
)
