package repository

import (
	"context"

	"refill-backend/internal/models"

	"gorm.io/gorm"
)

// WalletRepository defines read access to operator-managed wallets.
type WalletRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	// GetByAddress resolves a wallet by its (unique) on-chain address.
	// Returns (nil, nil) when no such wallet exists.
	GetByAddress(ctx context.Context, address string) (*models.Wallet, error)
}

// walletRepository implements WalletRepository over GORM.
type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

// GetByID retrieves a wallet by primary key.
func (r *walletRepository) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Preload("Blockchain").
		First(&wallet, id).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetByAddress retrieves a wallet by address.
func (r *walletRepository) GetByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Preload("Blockchain").
		Where("address = ?", address).
		First(&wallet).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}
