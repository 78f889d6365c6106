package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Refill pipeline
	// ============================================
	RefillRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_requests_total",
			Help: "Total refill requests received, by outcome code",
		},
		[]string{"code"},
	)

	RefillsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_submitted_total",
			Help: "Refill transfers accepted by a custody provider",
		},
		[]string{"provider", "asset"},
	)

	RefillsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refill_in_flight",
		Help: "Refill transactions currently in a non-terminal status",
	})

	RefillAmountAtomic = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_amount_atomic_total",
			Help: "Sum of submitted refill amounts in atomic units",
		},
		[]string{"provider", "asset"},
	)

	// ============================================
	// Provider calls
	// ============================================
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refill_provider_call_duration_seconds",
			Help:    "Custody provider API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)

	ProviderCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_provider_call_errors_total",
			Help: "Custody provider API call failures",
		},
		[]string{"provider", "operation"},
	)

	ProviderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refill_provider_available",
			Help: "Provider availability (1=initialized, 0=unavailable)",
		},
		[]string{"provider"},
	)

	// ============================================
	// Reconciliation loop
	// ============================================
	ReconciliationCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "refill_reconciliation_cycle_duration_seconds",
		Help:    "Duration of one reconciliation scan over non-terminal transactions",
		Buckets: prometheus.DefBuckets,
	})

	ReconciliationTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_reconciliation_transitions_total",
			Help: "Status transitions applied by the reconciliation loop",
		},
		[]string{"from", "to"},
	)

	ReconciliationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refill_reconciliation_errors_total",
			Help: "Per-transaction reconciliation failures, by error type",
		},
		[]string{"error_type"},
	)

	StaleTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refill_stale_transactions",
		Help: "Non-terminal transactions older than the staleness threshold",
	})

	// ============================================
	// Ledger
	// ============================================
	LedgerWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refill_ledger_write_failures_total",
		Help: "Ledger writes that failed after a provider accepted a transfer",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refill_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})
)
