package services

import (
	"context"
	"errors"
	"log"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/events"
	"refill-backend/internal/metrics"
	"refill-backend/internal/models"
	"refill-backend/internal/providers"
	"refill-backend/internal/repository"
)

// ReconciliationService periodically converges local transaction statuses
// with provider-reported reality. It is the only component that advances a
// transaction after submission; transitions stay monotonic via the guarded
// repository update.
type ReconciliationService struct {
	refills   repository.RefillTransactionRepository
	registry  *providers.Registry
	publisher *events.Publisher

	interval    time.Duration
	staleAfter  time.Duration
	callTimeout time.Duration

	running bool
	stopCh  chan struct{}
}

// NewReconciliationService creates a new ReconciliationService instance.
func NewReconciliationService(
	refills repository.RefillTransactionRepository,
	registry *providers.Registry,
	publisher *events.Publisher,
	cfg config.ReconciliationConfig,
) *ReconciliationService {
	return &ReconciliationService{
		refills:     refills,
		registry:    registry,
		publisher:   publisher,
		interval:    cfg.IntervalDuration(),
		staleAfter:  cfg.StaleAfterDuration(),
		callTimeout: cfg.CallTimeoutDuration(),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the reconciliation loop.
func (s *ReconciliationService) Start() {
	if s.running {
		return
	}
	s.running = true

	log.Printf("🚀 Starting ReconciliationService (interval: %v, stale after: %v)", s.interval, s.staleAfter)

	go s.reconcileLoop()

	log.Printf("✅ ReconciliationService started")
}

// Stop gracefully stops the reconciliation loop.
func (s *ReconciliationService) Stop() {
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	log.Printf("🛑 ReconciliationService stopped")
}

func (s *ReconciliationService) reconcileLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run an initial pass on startup to pick up transactions left over from
	// a previous process.
	s.RunCycle(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunCycle(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// RunCycle scans all non-terminal transactions once, oldest first. Exported
// so the admin surface can trigger an immediate pass. Per-transaction
// failures are isolated: one bad provider call never aborts the scan.
func (s *ReconciliationService) RunCycle(ctx context.Context) {
	start := time.Now()

	txs, err := s.refills.FindByStatuses(ctx, models.ActiveRefillStatuses)
	if err != nil {
		log.Printf("❌ [Reconcile] Scan query failed: %v", err)
		metrics.ReconciliationErrorsTotal.WithLabelValues("scan_query").Inc()
		return
	}

	metrics.RefillsInFlight.Set(float64(len(txs)))
	if len(txs) == 0 {
		metrics.StaleTransactions.Set(0)
		return
	}

	log.Printf("🔍 [Reconcile] Scanning %d non-terminal transactions", len(txs))

	stale := 0
	for _, tx := range txs {
		if s.reconcileOne(ctx, tx) {
			stale++
		}
	}
	metrics.StaleTransactions.Set(float64(stale))

	duration := time.Since(start)
	metrics.ReconciliationCycleDuration.Observe(duration.Seconds())
	log.Printf("✅ [Reconcile] Cycle completed in %v (%d scanned, %d stale)", duration.Round(time.Millisecond), len(txs), stale)
}

// reconcileOne converges a single transaction and reports whether it is
// stale. Staleness alerts; it never changes status.
func (s *ReconciliationService) reconcileOne(ctx context.Context, tx *models.RefillTransaction) (stale bool) {
	age := time.Since(tx.CreatedAt)
	if age > s.staleAfter {
		stale = true
		log.Printf("⚠️ [Reconcile] Transaction %s is stale: status=%s age=%v", tx.RefillRequestID, tx.Status, age.Round(time.Second))
		s.publisher.PublishStaleAlert(tx, age)
	}

	if tx.ProviderTxID == nil || *tx.ProviderTxID == "" {
		// Submission never yielded a provider id; nothing to query. The
		// stale alert above is the escalation path for these.
		return stale
	}

	provider, err := s.registry.Resolve(tx.Provider)
	if err != nil {
		log.Printf("⚠️ [Reconcile] Provider %s unavailable for %s: %v", tx.Provider, tx.RefillRequestID, err)
		metrics.ReconciliationErrorsTotal.WithLabelValues("provider_unavailable").Inc()
		return stale
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	queryStart := time.Now()
	remote, err := provider.GetTransactionByID(callCtx, *tx.ProviderTxID)
	metrics.ProviderCallDuration.WithLabelValues(tx.Provider, "get_transaction").Observe(time.Since(queryStart).Seconds())
	if err != nil {
		log.Printf("⚠️ [Reconcile] Status query failed for %s: %v", tx.RefillRequestID, err)
		metrics.ProviderCallErrors.WithLabelValues(tx.Provider, "get_transaction").Inc()
		metrics.ReconciliationErrorsTotal.WithLabelValues("status_query").Inc()
		return stale
	}

	mapped := provider.MapStatus(remote.Status)
	if mapped == tx.Status {
		return stale
	}
	// PENDING never overwrites PROCESSING: unknown provider vocabulary maps
	// to PENDING and must not walk a transaction backwards.
	if tx.Status == models.RefillStatusProcessing && mapped == models.RefillStatusPending {
		return stale
	}

	message := ""
	if mapped == models.RefillStatusFailed {
		message = "provider reported failure: " + remote.Status
	}

	err = s.refills.UpdateProviderState(ctx, tx.RefillRequestID, mapped, remote.TxHash, remote.Status, remote.RawPayload, message)
	if errors.Is(err, repository.ErrNoRowsUpdated) {
		// Row went terminal between scan and update; nothing to do.
		return stale
	}
	if err != nil {
		log.Printf("❌ [Reconcile] Status update failed for %s: %v", tx.RefillRequestID, err)
		metrics.ReconciliationErrorsTotal.WithLabelValues("status_update").Inc()
		return stale
	}

	log.Printf("✅ [Reconcile] Transaction %s: %s → %s (provider: %s)", tx.RefillRequestID, tx.Status, mapped, remote.Status)
	metrics.ReconciliationTransitionsTotal.WithLabelValues(string(tx.Status), string(mapped)).Inc()

	tx.Status = mapped
	tx.ProviderStatus = remote.Status
	switch mapped {
	case models.RefillStatusCompleted:
		s.publisher.PublishRefillEvent(events.SubjectRefillCompleted, tx, "refill completed")
	case models.RefillStatusFailed, models.RefillStatusCancelled:
		s.publisher.PublishRefillEvent(events.SubjectRefillFailed, tx, message)
	}

	return stale
}
