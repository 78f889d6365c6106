package models

import (
	"time"
)

// RefillStatus is the local lifecycle state of a refill transaction.
// Transitions are monotonic: PENDING -> PROCESSING -> {COMPLETED|FAILED|CANCELLED}.
type RefillStatus string

const (
	RefillStatusPending    RefillStatus = "PENDING"    // accepted by provider, not yet moving
	RefillStatusProcessing RefillStatus = "PROCESSING" // provider is executing the transfer
	RefillStatusCompleted  RefillStatus = "COMPLETED"  // confirmed by provider
	RefillStatusFailed     RefillStatus = "FAILED"     // provider reported failure, or submission failed
	RefillStatusCancelled  RefillStatus = "CANCELLED"  // cancelled at the provider
)

// IsTerminal reports whether the status can no longer change.
func (s RefillStatus) IsTerminal() bool {
	switch s {
	case RefillStatusCompleted, RefillStatusFailed, RefillStatusCancelled:
		return true
	}
	return false
}

// ActiveRefillStatuses are the non-terminal statuses scanned by reconciliation
// and checked by the in-flight guard.
var ActiveRefillStatuses = []RefillStatus{RefillStatusPending, RefillStatusProcessing}

// WalletType distinguishes operational hot wallets from custody cold wallets.
type WalletType string

const (
	WalletTypeHot  WalletType = "hot"
	WalletTypeCold WalletType = "cold"
)

// NativeAssetMarker is the asset_address value used for chain-native assets
// (no token contract). Contract assets carry the contract address instead.
const NativeAssetMarker = "native"

// Blockchain is immutable reference data describing a supported chain.
type Blockchain struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"` // e.g. "ethereum", "bsc"
	Symbol    string    `json:"symbol" gorm:"not null"`           // e.g. "ETH", "BNB"
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Wallet is an operator-managed wallet record. The engine only reads wallets.
type Wallet struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Address      string     `json:"address" gorm:"uniqueIndex;not null"`
	Type         WalletType `json:"type" gorm:"not null"`
	Monitored    bool       `json:"monitored" gorm:"default:true"` // watched by the balance monitor
	BlockchainID uint       `json:"blockchain_id" gorm:"not null;index"`
	Blockchain   Blockchain `json:"blockchain,omitempty" gorm:"foreignKey:BlockchainID"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Asset is the refill configuration for one token on one chain.
// All threshold amounts are atomic-unit integer strings; human-readable
// amounts are always derived from Decimals, never stored as authority.
type Asset struct {
	ID              uint   `json:"id" gorm:"primaryKey"`
	Symbol          string `json:"symbol" gorm:"not null;index:idx_asset_symbol_chain,unique"`
	Decimals        int32  `json:"decimals" gorm:"not null"`
	ContractAddress string `json:"contract_address" gorm:"not null"` // token contract, or "native"

	BlockchainID uint       `json:"blockchain_id" gorm:"not null;index:idx_asset_symbol_chain,unique"`
	Blockchain   Blockchain `json:"blockchain,omitempty" gorm:"foreignKey:BlockchainID"`

	// HotWalletID binds contract assets to their operational wallet. Native
	// assets resolve the hot wallet from the request address directly.
	HotWalletID *uint   `json:"hot_wallet_id"`
	HotWallet   *Wallet `json:"hot_wallet,omitempty" gorm:"foreignKey:HotWalletID"`

	// SweepWalletAddress is the pinned custody (cold) wallet this asset is
	// refilled from. Requests naming any other cold wallet are rejected.
	SweepWalletAddress string `json:"sweep_wallet_address"`

	// Provider configuration: which custody backend holds the cold wallet
	// and the provider-side identifier of that wallet (vault account id,
	// wallet id, ...).
	Provider         string `json:"provider" gorm:"index"`
	ProviderWalletID string `json:"provider_wallet_id"`

	// Thresholds, atomic units.
	LowBalanceThresholdAtomic     string `json:"low_balance_threshold_atomic"`
	RefillTriggerThresholdAtomic  string `json:"refill_trigger_threshold_atomic"`
	RefillTargetBalanceAtomic     string `json:"refill_target_balance_atomic"`
	HighWithdrawalThresholdAtomic string `json:"high_withdrawal_threshold_atomic"`
	RefillDustThresholdAtomic     string `json:"refill_dust_threshold_atomic"`

	RefillCooldownSeconds int  `json:"refill_cooldown_seconds" gorm:"default:0"`
	Active                bool `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsNative reports whether the asset is the chain-native coin.
func (a *Asset) IsNative() bool {
	return a.ContractAddress == NativeAssetMarker
}

// RefillTransaction is the ledger row for one cold-to-hot transfer request.
// RefillRequestID is supplied by the caller, globally unique and immutable;
// it doubles as the idempotency token. Rows are never deleted.
type RefillTransaction struct {
	RefillRequestID string `json:"refill_request_id" gorm:"primaryKey;size:128"`

	AssetID  uint   `json:"asset_id" gorm:"not null;index"`
	Provider string `json:"provider" gorm:"not null"`

	// ProviderTxID is assigned by the custody backend once the transfer is
	// accepted; nil until then.
	ProviderTxID *string `json:"provider_tx_id"`

	Status RefillStatus `json:"status" gorm:"not null;index"`

	AmountAtomic string `json:"amount_atomic" gorm:"not null"` // authoritative
	Amount       string `json:"amount"`                        // human-readable, derived

	TokenSymbol string `json:"token_symbol" gorm:"not null"`
	ChainName   string `json:"chain_name" gorm:"not null"`

	ProviderStatus  string  `json:"provider_status"` // raw provider vocabulary
	TxHash          *string `json:"tx_hash"`
	ProviderPayload string  `json:"provider_payload" gorm:"type:text"` // opaque provider response
	Message         string  `json:"message" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}
