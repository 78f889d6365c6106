package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"refill-backend/internal/models"
)

// ErrMissingCredentials marks a custody backend that cannot initialize
// because its credentials are absent. Startup skips such a backend instead
// of failing the process.
var ErrMissingCredentials = errors.New("provider credentials missing")

// TokenConfig identifies a token held at a custody provider, with the
// precision metadata needed to normalize balances.
type TokenConfig struct {
	Symbol          string // token symbol, e.g. "USDT"
	ContractAddress string // token contract, or "native"
	ChainName       string // chain the token lives on, e.g. "ethereum"
	Decimals        int32  // atomic-unit precision
	WalletID        string // provider-side cold wallet identifier
}

// TransferRequest describes one cold-to-hot transfer submission.
type TransferRequest struct {
	// ExternalRef is the deterministic idempotency reference sent to the
	// provider: "{requestId}_{assetId}". A retried submission under the
	// same request id collides at the provider, not only locally.
	ExternalRef string

	Token       TokenConfig
	AmountHuman string // human-unit decimal string (provider boundary unit)
	Destination string // hot wallet address
	Note        string
}

// TransferResult is the provider's immediate response to a submission.
type TransferResult struct {
	Status       string // raw provider status vocabulary
	ExternalID   string // echo of ExternalRef as recorded by the provider
	ProviderTxID string
	CreatedAt    time.Time
	RawPayload   string // opaque provider response, persisted for audit
}

// ProviderTransaction is the provider's current view of a submitted transfer.
type ProviderTransaction struct {
	ID         string
	Status     string // raw provider status vocabulary
	TxHash     string
	RawPayload string
}

// CredentialCheck is the structured result of a credential probe. The probe
// never raises: backend failures are converted into an unsuccessful result.
type CredentialCheck struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Provider is the uniform capability set over interchangeable custody
// backends. The rest of the engine never branches on provider identity.
type Provider interface {
	// Name returns the provider identifier used in asset configuration.
	Name() string

	// Initialize prepares the backend from configured credentials.
	// ErrMissingCredentials means "skip me", anything else is a real fault.
	Initialize(ctx context.Context) error

	// GetTokenBalance returns the cold wallet balance in atomic units.
	// Providers report human-unit decimals; normalization to atomic happens
	// here, with arbitrary-precision arithmetic, before the value crosses
	// this boundary.
	GetTokenBalance(ctx context.Context, token TokenConfig) (string, error)

	// CreateTransferRequest submits a transfer carrying the idempotent
	// external reference.
	CreateTransferRequest(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// ValidateCredentials is a cheap, side-effect-free probe for startup
	// and health reporting.
	ValidateCredentials(ctx context.Context) *CredentialCheck

	// GetTransactionByID fetches the provider's current view of a transfer.
	GetTransactionByID(ctx context.Context, id string) (*ProviderTransaction, error)

	// MapStatus translates the provider's status vocabulary to the local
	// refill status enum.
	MapStatus(raw string) models.RefillStatus
}

// TransferReference derives the idempotent external reference for a request.
func TransferReference(requestID string, assetID uint) string {
	return fmt.Sprintf("%s_%d", requestID, assetID)
}
