package dto

// RefillRequest is the inbound record from the balance-monitoring caller.
// Amount is a human-unit decimal string; the engine converts it to atomic
// units using the asset's configured precision.
type RefillRequest struct {
	RequestID          string `json:"request_id"`
	WalletAddress      string `json:"wallet_address"` // target hot wallet
	AssetSymbol        string `json:"asset_symbol"`
	AssetAddress       string `json:"asset_address"` // token contract, or "native"
	ChainName          string `json:"chain_name"`
	Amount             string `json:"amount"`
	SweepWalletAddress string `json:"sweep_wallet_address"` // cold wallet to draw from
}

// RefillResponse is the outbound result envelope. Transport collaborators map
// REFILL_IN_PROGRESS to a conflict response, other failure codes to a
// rejection and unexpected errors to an internal error.
type RefillResponse struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// RefillStatusResponse is the read-only status query payload. It reflects the
// persisted ledger row only; freshness is bounded by the reconciliation
// interval, never by a live provider call.
type RefillStatusResponse struct {
	RefillRequestID string  `json:"refill_request_id"`
	Provider        string  `json:"provider"`
	ProviderTxID    *string `json:"provider_tx_id"`
	Status          string  `json:"status"`
	AmountAtomic    string  `json:"amount_atomic"`
	Amount          string  `json:"amount"`
	TokenSymbol     string  `json:"token_symbol"`
	ChainName       string  `json:"chain_name"`
	ProviderStatus  string  `json:"provider_status"`
	TxHash          *string `json:"tx_hash"`
	Message         string  `json:"message,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}
