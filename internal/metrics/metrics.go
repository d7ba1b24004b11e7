// Package metrics holds the Prometheus collectors for state reconciliation.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for migration attempts.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeEmpty     = "empty"
)

var (
	// Registry holds the shopstate collectors.
	Registry = prometheus.NewRegistry()

	migrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstate",
			Subsystem: "migration",
			Name:      "attempts_total",
			Help:      "Migration attempts by aggregate and outcome.",
		},
		[]string{"aggregate", "outcome"},
	)

	migrationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopstate",
			Subsystem: "migration",
			Name:      "duration_seconds",
			Help:      "Duration of migration attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"aggregate"},
	)

	selfHeals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstate",
			Subsystem: "local",
			Name:      "self_heals_total",
			Help:      "Corrupt or partially invalid local values rewritten.",
		},
		[]string{"key"},
	)

	localWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstate",
			Subsystem: "local",
			Name:      "write_failures_total",
			Help:      "Local writes dropped after a storage or encoding failure.",
		},
		[]string{"key"},
	)

	remoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstate",
			Subsystem: "remote",
			Name:      "failures_total",
			Help:      "Remote store operations that returned an error.",
		},
		[]string{"op"},
	)

	rollbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopstate",
			Subsystem: "aggregate",
			Name:      "rollbacks_total",
			Help:      "Optimistic updates rolled back after a remote failure.",
		},
		[]string{"aggregate"},
	)
)

func init() {
	Registry.MustRegister(
		migrations,
		migrationDuration,
		selfHeals,
		localWriteFailures,
		remoteFailures,
		rollbacks,
	)
}

// RecordMigration counts one finished migration attempt.
func RecordMigration(aggregate, outcome string, elapsed time.Duration) {
	migrations.WithLabelValues(aggregate, outcome).Inc()
	migrationDuration.WithLabelValues(aggregate).Observe(elapsed.Seconds())
}

// RecordSelfHeal counts a rewrite of a corrupt local value.
func RecordSelfHeal(key string) {
	selfHeals.WithLabelValues(key).Inc()
}

// RecordLocalWriteFailure counts a swallowed local write failure.
func RecordLocalWriteFailure(key string) {
	localWriteFailures.WithLabelValues(key).Inc()
}

// RecordRemoteFailure counts a failed remote operation.
func RecordRemoteFailure(op string) {
	remoteFailures.WithLabelValues(op).Inc()
}

// RecordRollback counts an optimistic update that was undone.
func RecordRollback(aggregate string) {
	rollbacks.WithLabelValues(aggregate).Inc()
}

// WriteText writes every counter sample in Registry as "name{labels} value"
// lines, sorted, for the CLI. Histograms are reported by sample count.
func WriteText(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("%s_count %d", name, m.GetHistogram().GetSampleCount()))
			}
		}
	}
	sort.Strings(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
