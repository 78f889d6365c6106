package validation

import (
	"context"
	"fmt"
	"log"
	"time"

	"refill-backend/internal/dto"
	"refill-backend/internal/models"
	"refill-backend/internal/providers"
	"refill-backend/internal/repository"
	"refill-backend/internal/utils"
)

// ProviderResolver resolves a custody backend by identifier.
// *providers.Registry satisfies it.
type ProviderResolver interface {
	Resolve(name string) (providers.Provider, error)
}

// ValidatedRefill carries everything the orchestrator needs after a request
// passed the whole pipeline, so nothing is resolved twice.
type ValidatedRefill struct {
	Asset            *models.Asset
	HotWallet        *models.Wallet
	HotWalletAddress string
	AmountAtomic     string
	AmountHuman      string
	// CurrentBalanceAtomic is the hot-wallet balance implied by the request:
	// the monitor asks for (target - current), so current = target - amount.
	CurrentBalanceAtomic string
}

// RequestValidator decides, via read-only queries, whether a refill may
// proceed. The pipeline short-circuits on the first failing stage, ordered
// cheapest-first: local field checks before ledger lookups before remote
// provider calls.
type RequestValidator struct {
	assets   repository.AssetRepository
	wallets  repository.WalletRepository
	refills  repository.RefillTransactionRepository
	registry ProviderResolver
}

// NewRequestValidator creates a new RequestValidator instance.
func NewRequestValidator(
	assets repository.AssetRepository,
	wallets repository.WalletRepository,
	refills repository.RefillTransactionRepository,
	registry ProviderResolver,
) *RequestValidator {
	return &RequestValidator{
		assets:   assets,
		wallets:  wallets,
		refills:  refills,
		registry: registry,
	}
}

// Validate runs the full guard pipeline for one refill request.
func (v *RequestValidator) Validate(ctx context.Context, req *dto.RefillRequest) *Result {
	if res := v.ValidateRequiredFields(req); !res.Success {
		return res
	}

	asset, res := v.resolveAsset(ctx, req)
	if res != nil {
		return res
	}

	if res := v.validateSweepWallet(req, asset); res != nil {
		return res
	}

	amountAtomic, res := v.validateColdBalance(ctx, req, asset)
	if res != nil {
		return res
	}

	validated, res := v.validateHotWalletNeed(ctx, req, asset, amountAtomic)
	if res != nil {
		return res
	}

	if res := v.CheckInFlight(ctx, asset); res != nil {
		return res
	}

	return &Result{
		Success: true,
		Data: map[string]interface{}{
			"asset_id":      asset.ID,
			"amount_atomic": validated.AmountAtomic,
			"provider":      asset.Provider,
		},
		Validated: validated,
	}
}

// ValidateRequiredFields checks request completeness and reports the full
// missing-field set, not just the first gap.
func (v *RequestValidator) ValidateRequiredFields(req *dto.RefillRequest) *Result {
	missing := []string{}

	if req.RequestID == "" {
		missing = append(missing, "request_id")
	}
	if req.WalletAddress == "" {
		missing = append(missing, "wallet_address")
	}
	if req.AssetSymbol == "" {
		missing = append(missing, "asset_symbol")
	}
	if req.AssetAddress == "" {
		missing = append(missing, "asset_address")
	}
	if req.ChainName == "" {
		missing = append(missing, "chain_name")
	}
	if req.Amount == "" {
		missing = append(missing, "amount")
	}
	if req.SweepWalletAddress == "" {
		missing = append(missing, "sweep_wallet_address")
	}

	if len(missing) > 0 {
		return FailureWithData(CodeMissingFields,
			fmt.Sprintf("missing required fields: %v", missing),
			map[string]interface{}{"missing_fields": missing})
	}
	return &Result{Success: true}
}

// resolveAsset looks up the asset by symbol and chain; it must exist and be
// active.
func (v *RequestValidator) resolveAsset(ctx context.Context, req *dto.RefillRequest) (*models.Asset, *Result) {
	asset, err := v.assets.GetBySymbolAndChain(ctx, req.AssetSymbol, req.ChainName)
	if err != nil {
		return nil, Failure(CodeAssetValidationError,
			fmt.Sprintf("asset lookup failed: %v", err))
	}
	if asset == nil {
		return nil, Failure(CodeAssetNotFound,
			fmt.Sprintf("asset %s on chain %s is not configured", req.AssetSymbol, req.ChainName))
	}
	if !asset.Active {
		return nil, Failure(CodeAssetNotFound,
			fmt.Sprintf("asset %s on chain %s is inactive", req.AssetSymbol, req.ChainName))
	}
	return asset, nil
}

// validateSweepWallet requires the requested cold wallet to equal the
// asset's pinned sweep wallet.
func (v *RequestValidator) validateSweepWallet(req *dto.RefillRequest, asset *models.Asset) *Result {
	if asset.SweepWalletAddress == "" {
		return Failure(CodeNoSweepWalletConfigured,
			fmt.Sprintf("asset %s has no sweep wallet configured", asset.Symbol))
	}

	if !utils.SameAddress(req.SweepWalletAddress, asset.SweepWalletAddress) {
		return FailureWithData(CodeSweepWalletMismatch,
			"requested sweep wallet does not match the configured sweep wallet",
			map[string]interface{}{
				"expected": asset.SweepWalletAddress,
				"received": req.SweepWalletAddress,
			})
	}
	return nil
}

// validateColdBalance queries the custody provider for the cold wallet
// balance and requires requested <= available. Every check re-queries the
// provider; balances are never cached.
func (v *RequestValidator) validateColdBalance(ctx context.Context, req *dto.RefillRequest, asset *models.Asset) (string, *Result) {
	if asset.Provider == "" || asset.ProviderWalletID == "" {
		return "", Failure(CodeNoColdWalletConfigured,
			fmt.Sprintf("asset %s has no cold wallet provider configuration", asset.Symbol))
	}

	amountAtomic, err := utils.HumanToAtomic(req.Amount, asset.Decimals)
	if err != nil {
		return "", Failure(CodeInvalidAmount,
			fmt.Sprintf("invalid amount %q: %v", req.Amount, err))
	}

	provider, err := v.registry.Resolve(asset.Provider)
	if err != nil {
		return "", Failure(CodeBalanceValidationError,
			fmt.Sprintf("provider %s not available for balance check: %v", asset.Provider, err))
	}

	available, err := provider.GetTokenBalance(ctx, providers.TokenConfig{
		Symbol:          asset.Symbol,
		ContractAddress: asset.ContractAddress,
		ChainName:       req.ChainName,
		Decimals:        asset.Decimals,
		WalletID:        asset.ProviderWalletID,
	})
	if err != nil {
		return "", Failure(CodeBalanceValidationError,
			fmt.Sprintf("cold wallet balance query failed: %v", err))
	}

	cmp, err := utils.CompareAtomic(amountAtomic, available)
	if err != nil {
		return "", Failure(CodeBalanceValidationError,
			fmt.Sprintf("balance comparison failed: %v", err))
	}
	if cmp > 0 {
		log.Printf("⚠️ [Validator] Insufficient cold balance for %s: requested=%s available=%s",
			asset.Symbol, amountAtomic, available)
		return "", FailureWithData(CodeInsufficientBalance,
			"cold wallet balance is insufficient for the requested amount",
			map[string]interface{}{
				"requested_atomic":  amountAtomic,
				"available_balance": available,
			})
	}

	return amountAtomic, nil
}

// validateHotWalletNeed resolves the target hot wallet and confirms the
// refill is actually warranted under the asset's thresholds.
func (v *RequestValidator) validateHotWalletNeed(ctx context.Context, req *dto.RefillRequest, asset *models.Asset, amountAtomic string) (*ValidatedRefill, *Result) {
	hotAddress, err := DetermineHotWalletAddress(req, asset)
	if err != nil {
		return nil, Failure(CodeHotWalletNotFound, err.Error())
	}

	wallet, err := v.wallets.GetByAddress(ctx, utils.NormalizeAddress(hotAddress))
	if err != nil {
		return nil, Failure(CodeHotWalletNotFound,
			fmt.Sprintf("hot wallet lookup failed: %v", err))
	}
	if wallet == nil {
		return nil, Failure(CodeHotWalletNotFound,
			fmt.Sprintf("hot wallet %s is not registered", hotAddress))
	}
	if wallet.Type != models.WalletTypeHot {
		return nil, Failure(CodeInvalidWalletType,
			fmt.Sprintf("wallet %s is type %q, refills may only target hot wallets", hotAddress, wallet.Type))
	}

	amount, err := utils.ParseAtomic(amountAtomic)
	if err != nil {
		return nil, Failure(CodeInvalidAmount, err.Error())
	}
	if !amount.IsPositive() {
		return nil, Failure(CodeInvalidAmount, "refill amount must be greater than zero")
	}

	if asset.RefillTargetBalanceAtomic == "" || asset.RefillTriggerThresholdAtomic == "" {
		return nil, Failure(CodeAssetValidationError,
			fmt.Sprintf("asset %s has no refill target/trigger thresholds configured", asset.Symbol))
	}

	target, err := utils.ParseAtomic(asset.RefillTargetBalanceAtomic)
	if err != nil {
		return nil, Failure(CodeAssetValidationError,
			fmt.Sprintf("invalid refill target for asset %s: %v", asset.Symbol, err))
	}
	trigger, err := utils.ParseAtomic(asset.RefillTriggerThresholdAtomic)
	if err != nil {
		return nil, Failure(CodeAssetValidationError,
			fmt.Sprintf("invalid refill trigger for asset %s: %v", asset.Symbol, err))
	}

	// The monitor requests (target - current), so the implied current hot
	// balance is target - amount.
	current := target.Sub(amount)

	if current.IsNegative() {
		return nil, Failure(CodeInvalidAmount,
			"requested amount exceeds the configured refill target")
	}
	if current.Cmp(target) >= 0 {
		return nil, Failure(CodeSufficientBalance,
			"hot wallet balance already meets the refill target")
	}
	if current.Cmp(trigger) > 0 {
		return nil, FailureWithData(CodeAboveTriggerThreshold,
			"hot wallet balance is above the refill trigger threshold",
			map[string]interface{}{
				"current_atomic": current.String(),
				"trigger_atomic": trigger.String(),
			})
	}

	if asset.RefillDustThresholdAtomic != "" {
		dust, err := utils.ParseAtomic(asset.RefillDustThresholdAtomic)
		if err == nil && amount.Cmp(dust) <= 0 {
			return nil, Failure(CodeInvalidAmount,
				fmt.Sprintf("refill amount %s does not exceed the dust threshold %s", amount, dust))
		}
	}

	humanAmount, err := utils.AtomicToHuman(amountAtomic, asset.Decimals)
	if err != nil {
		return nil, Failure(CodeInvalidAmount, err.Error())
	}

	return &ValidatedRefill{
		Asset:                asset,
		HotWallet:            wallet,
		HotWalletAddress:     hotAddress,
		AmountAtomic:         amountAtomic,
		AmountHuman:          humanAmount,
		CurrentBalanceAtomic: current.String(),
	}, nil
}

// CheckInFlight is the last guard before the ledger write: at most one
// refill transaction per asset may be non-terminal. The orchestrator re-runs
// this inside its per-asset critical section.
func (v *RequestValidator) CheckInFlight(ctx context.Context, asset *models.Asset) *Result {
	existing, err := v.refills.FindActiveByAssetID(ctx, asset.ID)
	if err != nil {
		return Failure(CodePendingRefillCheckError,
			fmt.Sprintf("pending refill lookup failed: %v", err))
	}
	if existing != nil {
		return FailureWithData(CodeRefillInProgress,
			fmt.Sprintf("a refill for asset %s is already in flight", asset.Symbol),
			map[string]interface{}{
				"refill_request_id": existing.RefillRequestID,
				"status":            string(existing.Status),
				"created_at":        existing.CreatedAt.Format(time.RFC3339),
			})
	}

	if res := v.checkCooldown(ctx, asset); res != nil {
		return res
	}
	return nil
}

// checkCooldown rejects a refill that follows a completed one too closely.
func (v *RequestValidator) checkCooldown(ctx context.Context, asset *models.Asset) *Result {
	if asset.RefillCooldownSeconds <= 0 {
		return nil
	}

	latest, err := v.refills.FindLatestByAssetID(ctx, asset.ID)
	if err != nil {
		return Failure(CodePendingRefillCheckError,
			fmt.Sprintf("cooldown lookup failed: %v", err))
	}
	if latest == nil || latest.Status != models.RefillStatusCompleted {
		return nil
	}

	cooldown := time.Duration(asset.RefillCooldownSeconds) * time.Second
	elapsed := time.Since(latest.UpdatedAt)
	if elapsed < cooldown {
		return FailureWithData(CodeRefillCooldownActive,
			fmt.Sprintf("last refill for asset %s completed %s ago, cooldown is %s", asset.Symbol, elapsed.Round(time.Second), cooldown),
			map[string]interface{}{
				"refill_request_id": latest.RefillRequestID,
				"retry_after":       (cooldown - elapsed).Round(time.Second).String(),
			})
	}
	return nil
}

// DetermineHotWalletAddress resolves which address receives the refill.
// Native assets use the requested wallet address directly; contract assets
// must resolve through the asset's bound hot wallet — a contract asset with
// no bound wallet is a hard configuration error.
func DetermineHotWalletAddress(req *dto.RefillRequest, asset *models.Asset) (string, error) {
	if req.AssetAddress == models.NativeAssetMarker {
		return req.WalletAddress, nil
	}
	if asset == nil || asset.HotWallet == nil {
		return "", fmt.Errorf("contract asset %s has no bound hot wallet", req.AssetSymbol)
	}
	return asset.HotWallet.Address, nil
}
