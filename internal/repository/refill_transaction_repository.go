package repository

import (
	"context"
	"errors"

	"refill-backend/internal/models"

	"gorm.io/gorm"
)

// ErrNoRowsUpdated is returned by guarded updates when the target row was
// already terminal (or missing). Status transitions are monotonic: a row in
// COMPLETED/FAILED/CANCELLED never changes again.
var ErrNoRowsUpdated = errors.New("no rows updated")

// RefillTransactionRepository defines ledger access for refill transactions.
// Rows are created once per accepted request and never deleted; terminal rows
// are retained for audit.
type RefillTransactionRepository interface {
	// Create inserts a new transaction. A duplicate refill_request_id
	// surfaces as gorm.ErrDuplicatedKey.
	Create(ctx context.Context, tx *models.RefillTransaction) error

	// GetByRequestID retrieves a transaction by its idempotency key.
	// Returns (nil, nil) when no row exists.
	GetByRequestID(ctx context.Context, requestID string) (*models.RefillTransaction, error)

	// FindActiveByAssetID returns the non-terminal transaction for an asset,
	// or (nil, nil) when the asset has none in flight.
	FindActiveByAssetID(ctx context.Context, assetID uint) (*models.RefillTransaction, error)

	// FindByStatuses returns all transactions in the given statuses,
	// oldest-created first.
	FindByStatuses(ctx context.Context, statuses []models.RefillStatus) ([]*models.RefillTransaction, error)

	// FindLatestByAssetID returns the most recently updated transaction for
	// an asset, or (nil, nil) when the asset has none. Used by the cooldown
	// guard.
	FindLatestByAssetID(ctx context.Context, assetID uint) (*models.RefillTransaction, error)

	// UpdateProviderState advances a non-terminal row from provider-reported
	// state. The WHERE clause guards monotonicity: terminal rows are left
	// untouched and ErrNoRowsUpdated is returned.
	UpdateProviderState(ctx context.Context, requestID string, status models.RefillStatus, txHash, providerStatus, payload, message string) error

	// CountActive counts transactions currently in flight, for metrics.
	CountActive(ctx context.Context) (int64, error)
}

// refillTransactionRepository implements RefillTransactionRepository over GORM.
type refillTransactionRepository struct {
	db *gorm.DB
}

// NewRefillTransactionRepository creates a new RefillTransactionRepository instance.
func NewRefillTransactionRepository(db *gorm.DB) RefillTransactionRepository {
	return &refillTransactionRepository{db: db}
}

// Create inserts a new refill transaction row.
func (r *refillTransactionRepository) Create(ctx context.Context, tx *models.RefillTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetByRequestID retrieves a refill transaction by request id.
func (r *refillTransactionRepository) GetByRequestID(ctx context.Context, requestID string) (*models.RefillTransaction, error) {
	var tx models.RefillTransaction
	err := r.db.WithContext(ctx).
		Where("refill_request_id = ?", requestID).
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindActiveByAssetID returns the in-flight transaction for the asset, if any.
func (r *refillTransactionRepository) FindActiveByAssetID(ctx context.Context, assetID uint) (*models.RefillTransaction, error) {
	var tx models.RefillTransaction
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND status IN ?", assetID, models.ActiveRefillStatuses).
		Order("created_at ASC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindLatestByAssetID returns the asset's most recently updated transaction.
func (r *refillTransactionRepository) FindLatestByAssetID(ctx context.Context, assetID uint) (*models.RefillTransaction, error) {
	var tx models.RefillTransaction
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("updated_at DESC").
		First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindByStatuses returns transactions in the given statuses, oldest first.
func (r *refillTransactionRepository) FindByStatuses(ctx context.Context, statuses []models.RefillStatus) ([]*models.RefillTransaction, error) {
	var txs []*models.RefillTransaction
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// UpdateProviderState advances a non-terminal row with provider-reported state.
func (r *refillTransactionRepository) UpdateProviderState(ctx context.Context, requestID string, status models.RefillStatus, txHash, providerStatus, payload, message string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if txHash != "" {
		updates["tx_hash"] = txHash
	}
	if providerStatus != "" {
		updates["provider_status"] = providerStatus
	}
	if payload != "" {
		updates["provider_payload"] = payload
	}
	if message != "" {
		updates["message"] = message
	}

	result := r.db.WithContext(ctx).
		Model(&models.RefillTransaction{}).
		Where("refill_request_id = ? AND status IN ?", requestID, models.ActiveRefillStatuses).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNoRowsUpdated
	}
	return nil
}

// CountActive counts in-flight transactions.
func (r *refillTransactionRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefillTransaction{}).
		Where("status IN ?", models.ActiveRefillStatuses).
		Count(&count).Error
	return count, err
}
