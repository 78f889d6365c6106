package validation

// Diagnostic codes returned by the validation pipeline and the orchestrator.
// Transport collaborators map REFILL_IN_PROGRESS to a conflict response and
// every other failure code to a rejection.
const (
	// Stage 1: field completeness
	CodeMissingFields = "MISSING_FIELDS"

	// Stage 2: asset resolution
	CodeAssetNotFound        = "ASSET_NOT_FOUND"
	CodeAssetValidationError = "ASSET_VALIDATION_ERROR"

	// Stage 3: sweep-wallet binding
	CodeSweepWalletMismatch     = "SWEEP_WALLET_MISMATCH"
	CodeNoSweepWalletConfigured = "NO_SWEEP_WALLET_CONFIGURED"

	// Stage 4: cold-wallet solvency
	CodeInsufficientBalance    = "INSUFFICIENT_BALANCE"
	CodeNoColdWalletConfigured = "NO_COLD_WALLET_CONFIGURED"
	CodeBalanceValidationError = "BALANCE_VALIDATION_ERROR"

	// Stage 5: hot-wallet need
	CodeHotWalletNotFound     = "HOT_WALLET_NOT_FOUND"
	CodeInvalidWalletType     = "INVALID_WALLET_TYPE"
	CodeInvalidAmount         = "INVALID_AMOUNT"
	CodeSufficientBalance     = "SUFFICIENT_BALANCE"
	CodeAboveTriggerThreshold = "ABOVE_TRIGGER_THRESHOLD"

	// Stage 6: in-flight guard
	CodeRefillInProgress        = "REFILL_IN_PROGRESS"
	CodePendingRefillCheckError = "PENDING_REFILL_CHECK_ERROR"
	CodeRefillCooldownActive    = "REFILL_COOLDOWN_ACTIVE"

	// Orchestration
	CodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	CodeTransferRequestError = "TRANSFER_REQUEST_ERROR"
	CodeLedgerWriteError     = "LEDGER_WRITE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Result is the outcome of validation or orchestration: {success, code,
// error, data}. Data carries diagnostic detail (missing fields, available
// balance, the in-flight transaction, ...).
type Result struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`

	// Validated is populated on pipeline success for the orchestrator.
	Validated *ValidatedRefill `json:"-"`
}

// Failure builds an unsuccessful result.
func Failure(code, errMsg string) *Result {
	return &Result{Success: false, Code: code, Error: errMsg}
}

// FailureWithData builds an unsuccessful result with diagnostic payload.
func FailureWithData(code, errMsg string, data map[string]interface{}) *Result {
	return &Result{Success: false, Code: code, Error: errMsg, Data: data}
}

// Success builds a successful result.
func Success(data map[string]interface{}) *Result {
	return &Result{Success: true, Data: data}
}
