// Package metrics holds the Prometheus instruments of the posting engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics contains all Prometheus metrics for the ledger.
type Metrics struct {
	// Posting
	VouchersPosted  *prometheus.CounterVec
	PostingFailures *prometheus.CounterVec
	JournalEntries  prometheus.Counter

	// Propagation
	PropagationDuration prometheus.Histogram

	// Reports
	TrialBalanceDifference *prometheus.GaugeVec
	LedgerMismatches       *prometheus.GaugeVec
}

// New registers the metrics with registry, or the default registerer when
// registry is nil.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		VouchersPosted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "branchledger_vouchers_posted_total",
				Help: "The total number of vouchers posted",
			},
			[]string{"type"},
		),
		PostingFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "branchledger_posting_failures_total",
				Help: "The total number of rejected or rolled back postings",
			},
			[]string{"kind"},
		),
		JournalEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "branchledger_journal_entries_total",
			Help: "The total number of journal entries written",
		}),
		PropagationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "branchledger_propagation_duration_seconds",
			Help:    "Time spent recomputing group balances for one posting",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		TrialBalanceDifference: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "branchledger_trial_balance_difference",
				Help: "Debit total minus credit total of the last trial balance",
			},
			[]string{"branch"},
		),
		LedgerMismatches: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "branchledger_ledger_mismatches",
				Help: "Ledgers whose stored balance disagreed with their journal in the last trial balance",
			},
			[]string{"branch"},
		),
	}
}

// ObservePropagation records the time since start.
func (m *Metrics) ObservePropagation(start time.Time) {
	m.PropagationDuration.Observe(time.Since(start).Seconds())
}

// SetTrialBalance records the outcome of a trial balance run.
func (m *Metrics) SetTrialBalance(branch string, difference decimal.Decimal, mismatches int) {
	m.TrialBalanceDifference.WithLabelValues(branch).Set(difference.InexactFloat64())
	m.LedgerMismatches.WithLabelValues(branch).Set(float64(mismatches))
}

// WriteTextfile writes the metrics gathered by g in the node exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
