package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/models"
	"refill-backend/internal/utils"
)

// ProviderBitGo is the registry identifier for the BitGo backend.
const ProviderBitGo = "bitgo"

// BitGoProvider is the custody backend over the BitGo wallet API. The
// asset's provider_wallet_id is the BitGo wallet id; the coin identifier is
// derived from the token symbol.
//
// BitGo transfer lookups require coin and wallet id, so the provider tx id
// recorded in the ledger is a composite "coin:walletId:transferId" that
// GetTransactionByID parses back.
type BitGoProvider struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// bitgoWallet is the wallet resource, balance in base (atomic) units.
type bitgoWallet struct {
	ID             string `json:"id"`
	Coin           string `json:"coin"`
	BalanceString  string `json:"balanceString"`
	SpendableBalanceString string `json:"spendableBalanceString"`
}

// bitgoSendResponse is the sendcoins response.
type bitgoSendResponse struct {
	TxID     string `json:"txid"`
	Status   string `json:"status"`
	Transfer struct {
		ID    string `json:"id"`
		State string `json:"state"`
		Date  string `json:"date"`
	} `json:"transfer"`
}

// bitgoTransfer is the transfer resource.
type bitgoTransfer struct {
	ID    string `json:"id"`
	State string `json:"state"`
	TxID  string `json:"txid"`
}

// bitgoSendRequest is the sendcoins payload. SequenceID is the idempotent
// reference: BitGo rejects a second send under the same sequence id.
type bitgoSendRequest struct {
	Address    string `json:"address"`
	Amount     string `json:"amount"` // base units
	SequenceID string `json:"sequenceId"`
	Comment    string `json:"comment,omitempty"`
}

// NewBitGoProvider creates a BitGo backend from configuration.
func NewBitGoProvider(cfg config.BitGoConfig) *BitGoProvider {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://app.bitgo.com"
	}

	return &BitGoProvider{
		baseURL:     baseURL,
		accessToken: cfg.AccessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *BitGoProvider) Name() string {
	return ProviderBitGo
}

// Initialize checks that credentials are configured.
func (p *BitGoProvider) Initialize(ctx context.Context) error {
	if p.accessToken == "" {
		return ErrMissingCredentials
	}
	return nil
}

// GetTokenBalance fetches the wallet's spendable balance. BitGo already
// reports base (atomic) units, so no shift is applied here.
func (p *BitGoProvider) GetTokenBalance(ctx context.Context, token TokenConfig) (string, error) {
	path := fmt.Sprintf("/api/v2/%s/wallet/%s", p.coin(token), token.WalletID)
	body, err := p.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("bitgo balance query failed: %w", err)
	}

	var wallet bitgoWallet
	if err := json.Unmarshal(body, &wallet); err != nil {
		return "", fmt.Errorf("parse bitgo wallet response: %w", err)
	}

	balance := wallet.SpendableBalanceString
	if balance == "" {
		balance = wallet.BalanceString
	}
	if balance == "" {
		return "", fmt.Errorf("bitgo wallet %s returned no balance", token.WalletID)
	}
	return balance, nil
}

// CreateTransferRequest submits a sendcoins call carrying the idempotent
// sequence id. The amount crosses the BitGo boundary in base units.
func (p *BitGoProvider) CreateTransferRequest(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	coin := p.coin(req.Token)

	atomic, err := utils.HumanToAtomic(req.AmountHuman, req.Token.Decimals)
	if err != nil {
		return nil, fmt.Errorf("convert amount to base units: %w", err)
	}

	payload := bitgoSendRequest{
		Address:    req.Destination,
		Amount:     atomic,
		SequenceID: req.ExternalRef,
		Comment:    req.Note,
	}

	path := fmt.Sprintf("/api/v2/%s/wallet/%s/sendcoins", coin, req.Token.WalletID)
	body, err := p.makeRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, fmt.Errorf("bitgo transfer submission failed: %w", err)
	}

	var sent bitgoSendResponse
	if err := json.Unmarshal(body, &sent); err != nil {
		return nil, fmt.Errorf("parse bitgo send response: %w", err)
	}

	status := sent.Transfer.State
	if status == "" {
		status = sent.Status
	}

	return &TransferResult{
		Status:       status,
		ExternalID:   req.ExternalRef,
		ProviderTxID: fmt.Sprintf("%s:%s:%s", coin, req.Token.WalletID, sent.Transfer.ID),
		CreatedAt:    time.Now(),
		RawPayload:   string(body),
	}, nil
}

// ValidateCredentials probes the session endpoint and converts any failure
// into a structured unsuccessful result.
func (p *BitGoProvider) ValidateCredentials(ctx context.Context) *CredentialCheck {
	if p.accessToken == "" {
		return &CredentialCheck{Success: false, Code: "CREDENTIALS_MISSING", Error: "bitgo access token not configured"}
	}

	if _, err := p.makeRequest(ctx, http.MethodGet, "/api/v2/user/session", nil); err != nil {
		return &CredentialCheck{Success: false, Code: "CREDENTIALS_INVALID", Error: err.Error()}
	}
	return &CredentialCheck{Success: true}
}

// GetTransactionByID fetches a transfer by the composite id recorded at
// submission time ("coin:walletId:transferId").
func (p *BitGoProvider) GetTransactionByID(ctx context.Context, id string) (*ProviderTransaction, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed bitgo transaction id %q, want coin:walletId:transferId", id)
	}
	coin, walletID, transferID := parts[0], parts[1], parts[2]

	path := fmt.Sprintf("/api/v2/%s/wallet/%s/transfer/%s", coin, walletID, transferID)
	body, err := p.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("bitgo transfer query failed: %w", err)
	}

	var transfer bitgoTransfer
	if err := json.Unmarshal(body, &transfer); err != nil {
		return nil, fmt.Errorf("parse bitgo transfer response: %w", err)
	}

	return &ProviderTransaction{
		ID:         id,
		Status:     transfer.State,
		TxHash:     transfer.TxID,
		RawPayload: string(body),
	}, nil
}

// MapStatus translates BitGo transfer states to the local enum.
func (p *BitGoProvider) MapStatus(raw string) models.RefillStatus {
	switch strings.ToLower(raw) {
	case "initialized", "pendingapproval":
		return models.RefillStatusPending
	case "signed", "unconfirmed":
		return models.RefillStatusProcessing
	case "confirmed":
		return models.RefillStatusCompleted
	case "failed", "rejected":
		return models.RefillStatusFailed
	case "removed", "canceled":
		return models.RefillStatusCancelled
	default:
		return models.RefillStatusPending
	}
}

// coin maps a token to the BitGo coin identifier, e.g. "eth" for native
// Ethereum, "eth:usdt" for an ERC-20 token.
func (p *BitGoProvider) coin(token TokenConfig) string {
	chain := strings.ToLower(token.ChainName)
	if token.ContractAddress == models.NativeAssetMarker {
		return chainCoin(chain)
	}
	return fmt.Sprintf("%s:%s", chainCoin(chain), strings.ToLower(token.Symbol))
}

// chainCoin maps internal chain names to BitGo chain tickers.
func chainCoin(chain string) string {
	switch chain {
	case "ethereum":
		return "eth"
	case "bitcoin":
		return "btc"
	case "polygon":
		return "polygon"
	case "bsc":
		return "bsc"
	default:
		return chain
	}
}

// makeRequest performs one HTTP call against the BitGo API.
func (p *BitGoProvider) makeRequest(ctx context.Context, method, path string, data interface{}) ([]byte, error) {
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
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

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
