package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/models"
	"refill-backend/internal/utils"
)

// ProviderFireblocks is the registry identifier for the Fireblocks backend.
const ProviderFireblocks = "fireblocks"

// FireblocksProvider is the custody backend over the Fireblocks vault API.
// Cold wallets map to vault accounts; the asset's provider_wallet_id is the
// vault account id.
type FireblocksProvider struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// fireblocksVaultAsset is the balance response for one asset in a vault account.
type fireblocksVaultAsset struct {
	ID        string `json:"id"`
	Total     string `json:"total"`
	Available string `json:"available"` // human-unit decimal string
	Pending   string `json:"pending"`
}

// fireblocksTransaction is the transaction resource shape.
type fireblocksTransaction struct {
	ID           string `json:"id"`
	ExternalTxID string `json:"externalTxId"`
	Status       string `json:"status"`
	TxHash       string `json:"txHash"`
	CreatedAt    int64  `json:"createdAt"` // epoch millis
}

// fireblocksCreateTxRequest is the transfer submission payload.
type fireblocksCreateTxRequest struct {
	AssetID      string                    `json:"assetId"`
	Source       fireblocksTransferPeer    `json:"source"`
	Destination  fireblocksTransferPeer    `json:"destination"`
	Amount       string                    `json:"amount"` // human units
	ExternalTxID string                    `json:"externalTxId"`
	Note         string                    `json:"note,omitempty"`
}

type fireblocksTransferPeer struct {
	Type           string                       `json:"type"`
	ID             string                       `json:"id,omitempty"`
	OneTimeAddress *fireblocksOneTimeAddress    `json:"oneTimeAddress,omitempty"`
}

type fireblocksOneTimeAddress struct {
	Address string `json:"address"`
}

// NewFireblocksProvider creates a Fireblocks backend from configuration.
func NewFireblocksProvider(cfg config.FireblocksConfig) *FireblocksProvider {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.fireblocks.io"
	}

	return &FireblocksProvider{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *FireblocksProvider) Name() string {
	return ProviderFireblocks
}

// Initialize checks that credentials are configured.
func (p *FireblocksProvider) Initialize(ctx context.Context) error {
	if p.apiKey == "" || p.apiSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// GetTokenBalance fetches the vault account balance for the token and
// normalizes it to atomic units. Fireblocks reports human-unit decimals.
func (p *FireblocksProvider) GetTokenBalance(ctx context.Context, token TokenConfig) (string, error) {
	path := fmt.Sprintf("/v1/vault/accounts/%s/%s", token.WalletID, p.assetID(token))
	body, err := p.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("fireblocks balance query failed: %w", err)
	}

	var asset fireblocksVaultAsset
	if err := json.Unmarshal(body, &asset); err != nil {
		return "", fmt.Errorf("parse fireblocks balance response: %w", err)
	}

	atomic, err := utils.HumanToAtomic(asset.Available, token.Decimals)
	if err != nil {
		return "", fmt.Errorf("normalize fireblocks balance %q: %w", asset.Available, err)
	}
	return atomic, nil
}

// CreateTransferRequest submits a vault-to-address transfer. ExternalRef is
// passed as externalTxId so Fireblocks rejects a duplicate submission under
// the same reference.
func (p *FireblocksProvider) CreateTransferRequest(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	payload := fireblocksCreateTxRequest{
		AssetID: p.assetID(req.Token),
		Source: fireblocksTransferPeer{
			Type: "VAULT_ACCOUNT",
			ID:   req.Token.WalletID,
		},
		Destination: fireblocksTransferPeer{
			Type:           "ONE_TIME_ADDRESS",
			OneTimeAddress: &fireblocksOneTimeAddress{Address: req.Destination},
		},
		Amount:       req.AmountHuman,
		ExternalTxID: req.ExternalRef,
		Note:         req.Note,
	}

	body, err := p.makeRequest(ctx, http.MethodPost, "/v1/transactions", payload)
	if err != nil {
		return nil, fmt.Errorf("fireblocks transfer submission failed: %w", err)
	}

	var tx fireblocksTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("parse fireblocks transfer response: %w", err)
	}

	createdAt := time.Now()
	if tx.CreatedAt > 0 {
		createdAt = time.UnixMilli(tx.CreatedAt)
	}

	return &TransferResult{
		Status:       tx.Status,
		ExternalID:   req.ExternalRef,
		ProviderTxID: tx.ID,
		CreatedAt:    createdAt,
		RawPayload:   string(body),
	}, nil
}

// ValidateCredentials probes the API with a read-only request and converts
// any failure into a structured unsuccessful result.
func (p *FireblocksProvider) ValidateCredentials(ctx context.Context) *CredentialCheck {
	if p.apiKey == "" || p.apiSecret == "" {
		return &CredentialCheck{Success: false, Code: "CREDENTIALS_MISSING", Error: "fireblocks api key/secret not configured"}
	}

	if _, err := p.makeRequest(ctx, http.MethodGet, "/v1/vault/accounts_paged?limit=1", nil); err != nil {
		return &CredentialCheck{Success: false, Code: "CREDENTIALS_INVALID", Error: err.Error()}
	}
	return &CredentialCheck{Success: true}
}

// GetTransactionByID fetches the current state of a submitted transfer.
func (p *FireblocksProvider) GetTransactionByID(ctx context.Context, id string) (*ProviderTransaction, error) {
	body, err := p.makeRequest(ctx, http.MethodGet, "/v1/transactions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("fireblocks transaction query failed: %w", err)
	}

	var tx fireblocksTransaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("parse fireblocks transaction response: %w", err)
	}

	return &ProviderTransaction{
		ID:         tx.ID,
		Status:     tx.Status,
		TxHash:     tx.TxHash,
		RawPayload: string(body),
	}, nil
}

// MapStatus translates Fireblocks transaction statuses to the local enum.
func (p *FireblocksProvider) MapStatus(raw string) models.RefillStatus {
	switch raw {
	case "SUBMITTED", "QUEUED":
		return models.RefillStatusPending
	case "PENDING_SIGNATURE", "PENDING_AUTHORIZATION", "PENDING_3RD_PARTY",
		"BROADCASTING", "CONFIRMING":
		return models.RefillStatusProcessing
	case "COMPLETED":
		return models.RefillStatusCompleted
	case "FAILED", "BLOCKED", "REJECTED", "TIMEOUT":
		return models.RefillStatusFailed
	case "CANCELLED", "CANCELLING":
		return models.RefillStatusCancelled
	default:
		// Unknown vocabulary never advances a transaction.
		return models.RefillStatusPending
	}
}

// assetID maps a token to the Fireblocks asset identifier. Native assets use
// the bare symbol; contract assets are configured per chain.
func (p *FireblocksProvider) assetID(token TokenConfig) string {
	if token.ContractAddress == models.NativeAssetMarker {
		return token.Symbol
	}
	return fmt.Sprintf("%s_%s", token.Symbol, token.ChainName)
}

// makeRequest performs one HTTP call against the Fireblocks API.
func (p *FireblocksProvider) makeRequest(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
	url := p.baseURL + path

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.apiKey)
	req.Header.Set("Authorization", "Bearer "+p.apiSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http request failed: status=%d, body=%s", resp.StatusCode, string(responseBody))
	}

	return responseBody, nil
}
