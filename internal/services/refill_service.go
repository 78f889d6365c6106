package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"refill-backend/internal/dto"
	"refill-backend/internal/events"
	"refill-backend/internal/metrics"
	"refill-backend/internal/models"
	"refill-backend/internal/providers"
	"refill-backend/internal/repository"
	"refill-backend/internal/utils"
	"refill-backend/internal/validation"

	"gorm.io/gorm"
)

// RefillService orchestrates one refill end to end: validation, provider
// submission and the ledger write. Exactly one transaction per request id,
// at most one non-terminal transaction per asset.
type RefillService struct {
	validator *validation.RequestValidator
	refills   repository.RefillTransactionRepository
	registry  *providers.Registry
	publisher *events.Publisher

	// assetLocks serializes stage 6 + submission + insert per asset so two
	// concurrent requests for the same asset cannot both pass the in-flight
	// check. The PK uniqueness on refill_request_id backstops duplicates
	// across processes.
	mu         sync.Mutex
	assetLocks map[uint]*sync.Mutex
}

// NewRefillService creates a new RefillService instance.
func NewRefillService(
	validator *validation.RequestValidator,
	refills repository.RefillTransactionRepository,
	registry *providers.Registry,
	publisher *events.Publisher,
) *RefillService {
	return &RefillService{
		validator:  validator,
		refills:    refills,
		registry:   registry,
		publisher:  publisher,
		assetLocks: make(map[uint]*sync.Mutex),
	}
}

// ProcessRefill handles one inbound refill request. The outcome is always a
// structured result; errors that reach the caller are encoded as failure
// codes, never raw.
func (s *RefillService) ProcessRefill(ctx context.Context, req *dto.RefillRequest) *validation.Result {
	log.Printf("🔍 [Refill] Processing request %s: %s %s on %s",
		req.RequestID, req.Amount, req.AssetSymbol, req.ChainName)

	// Idempotency pre-check: a replayed request id returns the existing
	// transaction without touching the provider.
	if existing, err := s.refills.GetByRequestID(ctx, req.RequestID); err != nil {
		metrics.RefillRequestsTotal.WithLabelValues(validation.CodeInternalError).Inc()
		return validation.Failure(validation.CodeInternalError,
			fmt.Sprintf("idempotency lookup failed: %v", err))
	} else if existing != nil {
		log.Printf("ℹ️ [Refill] Request %s already processed (status=%s), returning existing transaction",
			req.RequestID, existing.Status)
		return s.existingResult(existing)
	}

	result := s.validator.Validate(ctx, req)
	if !result.Success {
		log.Printf("⚠️ [Refill] Request %s rejected: %s (%s)", req.RequestID, result.Code, result.Error)
		metrics.RefillRequestsTotal.WithLabelValues(result.Code).Inc()
		return result
	}

	outcome := s.executeRefill(ctx, req, result.Validated)
	code := outcome.Code
	if outcome.Success {
		code = "ACCEPTED"
	}
	metrics.RefillRequestsTotal.WithLabelValues(code).Inc()
	return outcome
}

// executeRefill runs the critical section: per-asset lock, in-flight
// re-check, provider submission, ledger insert.
func (s *RefillService) executeRefill(ctx context.Context, req *dto.RefillRequest, v *validation.ValidatedRefill) *validation.Result {
	lock := s.lockForAsset(v.Asset.ID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: another request for this asset may have won
	// the race between validation and here.
	if res := s.validator.CheckInFlight(ctx, v.Asset); res != nil {
		return res
	}

	provider, err := s.registry.Resolve(v.Asset.Provider)
	if err != nil {
		return validation.Failure(validation.CodeProviderUnavailable,
			fmt.Sprintf("provider %s unavailable: %v", v.Asset.Provider, err))
	}

	externalRef := providers.TransferReference(req.RequestID, v.Asset.ID)
	transfer, err := provider.CreateTransferRequest(ctx, providers.TransferRequest{
		ExternalRef: externalRef,
		Token: providers.TokenConfig{
			Symbol:          v.Asset.Symbol,
			ContractAddress: v.Asset.ContractAddress,
			ChainName:       req.ChainName,
			Decimals:        v.Asset.Decimals,
			WalletID:        v.Asset.ProviderWalletID,
		},
		AmountHuman: v.AmountHuman,
		Destination: v.HotWalletAddress,
		Note:        fmt.Sprintf("hot wallet refill %s", req.RequestID),
	})
	if err != nil {
		log.Printf("❌ [Refill] Provider submission failed for %s: %v", req.RequestID, err)
		metrics.ProviderCallErrors.WithLabelValues(v.Asset.Provider, "create_transfer").Inc()
		s.recordFailedSubmission(ctx, req, v, err)
		return validation.Failure(validation.CodeTransferRequestError,
			fmt.Sprintf("transfer submission failed: %v", err))
	}

	tx := &models.RefillTransaction{
		RefillRequestID: req.RequestID,
		AssetID:         v.Asset.ID,
		Provider:        v.Asset.Provider,
		ProviderTxID:    &transfer.ProviderTxID,
		Status:          provider.MapStatus(transfer.Status),
		AmountAtomic:    v.AmountAtomic,
		Amount:          v.AmountHuman,
		TokenSymbol:     v.Asset.Symbol,
		ChainName:       req.ChainName,
		ProviderStatus:  transfer.Status,
		ProviderPayload: transfer.RawPayload,
	}
	// A provider that immediately reports a terminal status still gets its
	// row; anything unknown starts at PENDING.
	if tx.Status == "" {
		tx.Status = models.RefillStatusPending
	}

	if res := s.persistTransaction(ctx, tx, v); res != nil {
		return res
	}

	log.Printf("✅ [Refill] Request %s submitted via %s: providerTxID=%s status=%s",
		req.RequestID, tx.Provider, transfer.ProviderTxID, tx.Status)

	metrics.RefillsSubmittedTotal.WithLabelValues(tx.Provider, tx.TokenSymbol).Inc()
	if amt, err := utils.ParseAtomic(tx.AmountAtomic); err == nil {
		f, _ := amt.Float64()
		metrics.RefillAmountAtomic.WithLabelValues(tx.Provider, tx.TokenSymbol).Add(f)
	}
	s.publisher.PublishRefillEvent(events.SubjectRefillRequested, tx, "refill submitted")

	return &validation.Result{
		Success: true,
		Data: map[string]interface{}{
			"refill_request_id": tx.RefillRequestID,
			"provider":          tx.Provider,
			"provider_tx_id":    transfer.ProviderTxID,
			"status":            string(tx.Status),
			"amount_atomic":     tx.AmountAtomic,
		},
	}
}

// persistTransaction writes the ledger row. A duplicate key means another
// writer already recorded this request id; that row wins. Any other failure
// is retried once, then escalated: the provider has accepted the transfer,
// losing the row silently is not an option.
func (s *RefillService) persistTransaction(ctx context.Context, tx *models.RefillTransaction, v *validation.ValidatedRefill) *validation.Result {
	err := s.refills.Create(ctx, tx)
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, lookupErr := s.refills.GetByRequestID(ctx, tx.RefillRequestID)
		if lookupErr == nil && existing != nil {
			log.Printf("ℹ️ [Refill] Request %s raced another writer, returning existing transaction", tx.RefillRequestID)
			return s.existingResult(existing)
		}
		err = fmt.Errorf("duplicate key but row not readable: %w", err)
	}

	log.Printf("⚠️ [Refill] Ledger write failed for %s, retrying once: %v", tx.RefillRequestID, err)
	if retryErr := s.refills.Create(ctx, tx); retryErr == nil {
		return nil
	} else {
		err = retryErr
	}

	// Provider accepted the transfer but the ledger has no row. Escalate:
	// operators must reconcile by the provider-side external reference.
	providerTxID := ""
	if tx.ProviderTxID != nil {
		providerTxID = *tx.ProviderTxID
	}
	log.Printf("❌ [Refill] CRITICAL: transfer %s accepted by %s (providerTxID=%s) but ledger write failed: %v",
		tx.RefillRequestID, tx.Provider, providerTxID, err)
	metrics.LedgerWriteFailuresTotal.Inc()
	s.publisher.PublishLedgerAlert(tx.RefillRequestID, tx.TokenSymbol, tx.Provider, providerTxID, err.Error())

	return validation.FailureWithData(validation.CodeLedgerWriteError,
		"transfer was submitted but could not be recorded, manual reconciliation required",
		map[string]interface{}{
			"refill_request_id": tx.RefillRequestID,
			"provider":          tx.Provider,
			"provider_tx_id":    providerTxID,
		})
}

// recordFailedSubmission writes a FAILED row for a request that passed
// validation but was rejected by the provider, so a retried request id is
// answered from the ledger instead of hitting the provider again.
func (s *RefillService) recordFailedSubmission(ctx context.Context, req *dto.RefillRequest, v *validation.ValidatedRefill, submitErr error) {
	tx := &models.RefillTransaction{
		RefillRequestID: req.RequestID,
		AssetID:         v.Asset.ID,
		Provider:        v.Asset.Provider,
		Status:          models.RefillStatusFailed,
		AmountAtomic:    v.AmountAtomic,
		Amount:          v.AmountHuman,
		TokenSymbol:     v.Asset.Symbol,
		ChainName:       req.ChainName,
		Message:         fmt.Sprintf("transfer submission failed: %v", submitErr),
	}
	if err := s.refills.Create(ctx, tx); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Printf("⚠️ [Refill] Could not record failed submission %s: %v", req.RequestID, err)
		return
	}
	s.publisher.PublishRefillEvent(events.SubjectRefillFailed, tx, tx.Message)
}

// GetRefillStatus returns the persisted view of one transaction, or (nil,
// nil) when the request id is unknown. Never calls the provider.
func (s *RefillService) GetRefillStatus(ctx context.Context, requestID string) (*dto.RefillStatusResponse, error) {
	tx, err := s.refills.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}
	return toStatusResponse(tx), nil
}

// ListRefillsByStatus returns persisted transactions in the given statuses,
// oldest first.
func (s *RefillService) ListRefillsByStatus(ctx context.Context, statuses []models.RefillStatus) ([]*dto.RefillStatusResponse, error) {
	txs, err := s.refills.FindByStatuses(ctx, statuses)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.RefillStatusResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toStatusResponse(tx))
	}
	return out, nil
}

// existingResult encodes an already-recorded transaction as an idempotent
// success: same request id, same transaction, no new transfer.
func (s *RefillService) existingResult(tx *models.RefillTransaction) *validation.Result {
	data := map[string]interface{}{
		"refill_request_id": tx.RefillRequestID,
		"provider":          tx.Provider,
		"status":            string(tx.Status),
		"amount_atomic":     tx.AmountAtomic,
		"idempotent":        true,
	}
	if tx.ProviderTxID != nil {
		data["provider_tx_id"] = *tx.ProviderTxID
	}
	return &validation.Result{Success: true, Data: data}
}

func (s *RefillService) lockForAsset(assetID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.assetLocks[assetID]
	if !ok {
		lock = &sync.Mutex{}
		s.assetLocks[assetID] = lock
	}
	return lock
}

func toStatusResponse(tx *models.RefillTransaction) *dto.RefillStatusResponse {
	return &dto.RefillStatusResponse{
		RefillRequestID: tx.RefillRequestID,
		Provider:        tx.Provider,
		ProviderTxID:    tx.ProviderTxID,
		Status:          string(tx.Status),
		AmountAtomic:    tx.AmountAtomic,
		Amount:          tx.Amount,
		TokenSymbol:     tx.TokenSymbol,
		ChainName:       tx.ChainName,
		ProviderStatus:  tx.ProviderStatus,
		TxHash:          tx.TxHash,
		Message:         tx.Message,
		CreatedAt:       tx.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       tx.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
