package repository

import (
	"context"

	"refill-backend/internal/models"

	"gorm.io/gorm"
)

// AssetRepository defines read access to refill asset configuration.
// Assets are operator-managed; the engine never writes them.
type AssetRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Asset, error)
	// GetBySymbolAndChain resolves an asset by token symbol and chain name.
	// Returns (nil, nil) when no such asset exists.
	GetBySymbolAndChain(ctx context.Context, symbol, chainName string) (*models.Asset, error)
	List(ctx context.Context) ([]*models.Asset, error)
}

// assetRepository implements AssetRepository over GORM.
type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new AssetRepository instance.
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

// GetByID retrieves an asset by primary key.
func (r *assetRepository) GetByID(ctx context.Context, id uint) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).
		Preload("Blockchain").
		Preload("HotWallet").
		First(&asset, id).Error
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// GetBySymbolAndChain resolves an asset by symbol within one blockchain.
func (r *assetRepository) GetBySymbolAndChain(ctx context.Context, symbol, chainName string) (*models.Asset, error) {
	var asset models.Asset
	err := r.db.WithContext(ctx).
		Joins("JOIN blockchains ON blockchains.id = assets.blockchain_id").
		Where("assets.symbol = ? AND blockchains.name = ?", symbol, chainName).
		Preload("Blockchain").
		Preload("HotWallet").
		First(&asset).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// List returns all configured assets.
func (r *assetRepository) List(ctx context.Context) ([]*models.Asset, error) {
	var assets []*models.Asset
	err := r.db.WithContext(ctx).
		Preload("Blockchain").
		Preload("HotWallet").
		Order("id ASC").
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}
