package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"refill-backend/internal/dto"
	"refill-backend/internal/models"
	"refill-backend/internal/providers"
	"refill-backend/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sweepAddress = "0x1111111111111111111111111111111111111111"
	hotAddress   = "0x2222222222222222222222222222222222222222"
	contractAddr = "0x3333333333333333333333333333333333333333"
)

type fakeAssetRepo struct {
	asset *models.Asset
	err   error
}

func (f *fakeAssetRepo) GetByID(ctx context.Context, id uint) (*models.Asset, error) {
	return f.asset, f.err
}

func (f *fakeAssetRepo) GetBySymbolAndChain(ctx context.Context, symbol, chainName string) (*models.Asset, error) {
	return f.asset, f.err
}

func (f *fakeAssetRepo) List(ctx context.Context) ([]*models.Asset, error) {
	if f.asset == nil {
		return nil, f.err
	}
	return []*models.Asset{f.asset}, f.err
}

type fakeWalletRepo struct {
	wallets map[string]*models.Wallet
	err     error
}

func (f *fakeWalletRepo) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	return nil, errors.New("not used")
}

func (f *fakeWalletRepo) GetByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.wallets[address], nil
}

type fakeRefillRepo struct {
	byRequestID map[string]*models.RefillTransaction
	active      *models.RefillTransaction
	latest      *models.RefillTransaction
	activeErr   error
	latestErr   error
}

func (f *fakeRefillRepo) Create(ctx context.Context, tx *models.RefillTransaction) error {
	return nil
}

func (f *fakeRefillRepo) GetByRequestID(ctx context.Context, requestID string) (*models.RefillTransaction, error) {
	return f.byRequestID[requestID], nil
}

func (f *fakeRefillRepo) FindActiveByAssetID(ctx context.Context, assetID uint) (*models.RefillTransaction, error) {
	return f.active, f.activeErr
}

func (f *fakeRefillRepo) FindByStatuses(ctx context.Context, statuses []models.RefillStatus) ([]*models.RefillTransaction, error) {
	return nil, nil
}

func (f *fakeRefillRepo) FindLatestByAssetID(ctx context.Context, assetID uint) (*models.RefillTransaction, error) {
	return f.latest, f.latestErr
}

func (f *fakeRefillRepo) UpdateProviderState(ctx context.Context, requestID string, status models.RefillStatus, txHash, providerStatus, payload, message string) error {
	return nil
}

func (f *fakeRefillRepo) CountActive(ctx context.Context) (int64, error) {
	return 0, nil
}

type fakeProvider struct {
	name       string
	balance    string
	balanceErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Initialize(ctx context.Context) error { return nil }

func (f *fakeProvider) GetTokenBalance(ctx context.Context, token providers.TokenConfig) (string, error) {
	return f.balance, f.balanceErr
}

func (f *fakeProvider) CreateTransferRequest(ctx context.Context, req providers.TransferRequest) (*providers.TransferResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) ValidateCredentials(ctx context.Context) *providers.CredentialCheck {
	return &providers.CredentialCheck{Success: true}
}

func (f *fakeProvider) GetTransactionByID(ctx context.Context, id string) (*providers.ProviderTransaction, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) MapStatus(raw string) models.RefillStatus {
	return models.RefillStatusPending
}

type fakeResolver struct {
	provider providers.Provider
	err      error
}

func (f *fakeResolver) Resolve(name string) (providers.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

// testAsset is a contract asset with a healthy threshold configuration:
// target 100 USDT, trigger 50 USDT, ample cold balance.
func testAsset() *models.Asset {
	hotID := uint(7)
	return &models.Asset{
		ID:              1,
		Symbol:          "USDT",
		Decimals:        6,
		ContractAddress: contractAddr,
		HotWalletID:     &hotID,
		HotWallet: &models.Wallet{
			ID:      hotID,
			Address: hotAddress,
			Type:    models.WalletTypeHot,
		},
		SweepWalletAddress:           sweepAddress,
		Provider:                     "fireblocks",
		ProviderWalletID:             "vault-0",
		RefillTriggerThresholdAtomic: "50000000",
		RefillTargetBalanceAtomic:    "100000000",
		RefillDustThresholdAtomic:    "1000",
		Active:                       true,
	}
}

func testRequest() *dto.RefillRequest {
	return &dto.RefillRequest{
		RequestID:          "req-123",
		WalletAddress:      hotAddress,
		AssetSymbol:        "USDT",
		AssetAddress:       contractAddr,
		ChainName:          "ethereum",
		Amount:             "70",
		SweepWalletAddress: sweepAddress,
	}
}

type validatorFixture struct {
	assets   *fakeAssetRepo
	wallets  *fakeWalletRepo
	refills  *fakeRefillRepo
	provider *fakeProvider
	resolver *fakeResolver
}

func newFixture(asset *models.Asset) (*RequestValidator, *validatorFixture) {
	f := &validatorFixture{
		assets: &fakeAssetRepo{asset: asset},
		wallets: &fakeWalletRepo{wallets: map[string]*models.Wallet{
			utils.NormalizeAddress(hotAddress): {ID: 7, Address: hotAddress, Type: models.WalletTypeHot},
		}},
		refills:  &fakeRefillRepo{},
		provider: &fakeProvider{name: "fireblocks", balance: "1000000000"},
	}
	f.resolver = &fakeResolver{provider: f.provider}
	return NewRequestValidator(f.assets, f.wallets, f.refills, f.resolver), f
}

func TestValidateSuccess(t *testing.T) {
	v, _ := newFixture(testAsset())

	res := v.Validate(context.Background(), testRequest())

	require.True(t, res.Success)
	require.NotNil(t, res.Validated)
	assert.Equal(t, "70000000", res.Validated.AmountAtomic)
	assert.Equal(t, "70", res.Validated.AmountHuman)
	// target 100 - requested 70 => implied current balance 30, below trigger 50.
	assert.Equal(t, "30000000", res.Validated.CurrentBalanceAtomic)
	assert.Equal(t, hotAddress, res.Validated.HotWalletAddress)
	assert.Equal(t, uint(1), res.Data["asset_id"])
	assert.Equal(t, "fireblocks", res.Data["provider"])
}

func TestValidateMissingFieldsListsAllGaps(t *testing.T) {
	v, _ := newFixture(testAsset())

	res := v.Validate(context.Background(), &dto.RefillRequest{})

	require.False(t, res.Success)
	assert.Equal(t, CodeMissingFields, res.Code)
	missing, ok := res.Data["missing_fields"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{
		"request_id", "wallet_address", "asset_symbol", "asset_address",
		"chain_name", "amount", "sweep_wallet_address",
	}, missing)
}

func TestValidateAssetNotFound(t *testing.T) {
	v, _ := newFixture(nil)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeAssetNotFound, res.Code)
}

func TestValidateInactiveAssetRejected(t *testing.T) {
	asset := testAsset()
	asset.Active = false
	v, _ := newFixture(asset)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeAssetNotFound, res.Code)
}

func TestValidateAssetLookupError(t *testing.T) {
	v, f := newFixture(testAsset())
	f.assets.err = errors.New("db down")

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeAssetValidationError, res.Code)
}

func TestValidateNoSweepWalletConfigured(t *testing.T) {
	asset := testAsset()
	asset.SweepWalletAddress = ""
	v, _ := newFixture(asset)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeNoSweepWalletConfigured, res.Code)
}

func TestValidateSweepWalletMismatch(t *testing.T) {
	v, _ := newFixture(testAsset())
	req := testRequest()
	req.SweepWalletAddress = "0x4444444444444444444444444444444444444444"

	res := v.Validate(context.Background(), req)

	require.False(t, res.Success)
	assert.Equal(t, CodeSweepWalletMismatch, res.Code)
	assert.Equal(t, sweepAddress, res.Data["expected"])
	assert.Equal(t, req.SweepWalletAddress, res.Data["received"])
}

func TestValidateSweepWalletCaseInsensitiveMatch(t *testing.T) {
	v, _ := newFixture(testAsset())
	req := testRequest()
	req.SweepWalletAddress = "0X1111111111111111111111111111111111111111"

	res := v.Validate(context.Background(), req)

	assert.True(t, res.Success)
}

func TestValidateNoColdWalletConfigured(t *testing.T) {
	asset := testAsset()
	asset.ProviderWalletID = ""
	v, _ := newFixture(asset)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeNoColdWalletConfigured, res.Code)
}

func TestValidateInvalidAmount(t *testing.T) {
	v, _ := newFixture(testAsset())

	for _, amount := range []string{"seventy", "0.0000001", "-5"} {
		req := testRequest()
		req.Amount = amount

		res := v.Validate(context.Background(), req)

		require.False(t, res.Success, "amount %q must be rejected", amount)
		assert.Equal(t, CodeInvalidAmount, res.Code, "amount %q", amount)
	}
}

func TestValidateProviderUnavailableForBalanceCheck(t *testing.T) {
	v, f := newFixture(testAsset())
	f.resolver.err = providers.ErrProviderUnavailable

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeBalanceValidationError, res.Code)
}

func TestValidateBalanceQueryFailure(t *testing.T) {
	v, f := newFixture(testAsset())
	f.provider.balanceErr = errors.New("vault timeout")

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeBalanceValidationError, res.Code)
}

func TestValidateInsufficientColdBalance(t *testing.T) {
	v, f := newFixture(testAsset())
	f.provider.balance = "50000000" // 50 USDT available, 70 requested

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeInsufficientBalance, res.Code)
	assert.Equal(t, "70000000", res.Data["requested_atomic"])
	assert.Equal(t, "50000000", res.Data["available_balance"])
}

func TestValidateHotWalletNotRegistered(t *testing.T) {
	v, f := newFixture(testAsset())
	f.wallets.wallets = map[string]*models.Wallet{}

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeHotWalletNotFound, res.Code)
}

func TestValidateRejectsNonHotWallet(t *testing.T) {
	v, f := newFixture(testAsset())
	f.wallets.wallets[utils.NormalizeAddress(hotAddress)].Type = models.WalletTypeCold

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeInvalidWalletType, res.Code)
}

func TestValidateContractAssetWithoutBoundHotWallet(t *testing.T) {
	asset := testAsset()
	asset.HotWallet = nil
	asset.HotWalletID = nil
	v, _ := newFixture(asset)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeHotWalletNotFound, res.Code)
}

func TestValidateAmountAboveTargetRejected(t *testing.T) {
	v, _ := newFixture(testAsset())
	req := testRequest()
	req.Amount = "150" // implied current balance would be negative

	res := v.Validate(context.Background(), req)

	require.False(t, res.Success)
	assert.Equal(t, CodeInvalidAmount, res.Code)
}

func TestValidateAboveTriggerThreshold(t *testing.T) {
	v, _ := newFixture(testAsset())
	req := testRequest()
	req.Amount = "40" // implied current balance 60, trigger is 50

	res := v.Validate(context.Background(), req)

	require.False(t, res.Success)
	assert.Equal(t, CodeAboveTriggerThreshold, res.Code)
	assert.Equal(t, "60000000", res.Data["current_atomic"])
	assert.Equal(t, "50000000", res.Data["trigger_atomic"])
}

func TestValidateDustAmountRejected(t *testing.T) {
	asset := testAsset()
	asset.RefillDustThresholdAtomic = "70000000"
	v, _ := newFixture(asset)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeInvalidAmount, res.Code)
}

func TestValidateMissingThresholds(t *testing.T) {
	asset := testAsset()
	asset.RefillTriggerThresholdAtomic = ""
	v, _ := newFixture(asset)

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeAssetValidationError, res.Code)
}

func TestValidateRefillInProgress(t *testing.T) {
	v, f := newFixture(testAsset())
	f.refills.active = &models.RefillTransaction{
		RefillRequestID: "req-previous",
		AssetID:         1,
		Status:          models.RefillStatusProcessing,
		CreatedAt:       time.Now().Add(-time.Minute),
	}

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeRefillInProgress, res.Code)
	assert.Equal(t, "req-previous", res.Data["refill_request_id"])
	assert.Equal(t, "PROCESSING", res.Data["status"])
}

func TestValidatePendingRefillCheckError(t *testing.T) {
	v, f := newFixture(testAsset())
	f.refills.activeErr = errors.New("db down")

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodePendingRefillCheckError, res.Code)
}

func TestValidateCooldownActive(t *testing.T) {
	asset := testAsset()
	asset.RefillCooldownSeconds = 3600
	v, f := newFixture(asset)
	f.refills.latest = &models.RefillTransaction{
		RefillRequestID: "req-previous",
		Status:          models.RefillStatusCompleted,
		UpdatedAt:       time.Now().Add(-10 * time.Minute),
	}

	res := v.Validate(context.Background(), testRequest())

	require.False(t, res.Success)
	assert.Equal(t, CodeRefillCooldownActive, res.Code)
	assert.NotEmpty(t, res.Data["retry_after"])
}

func TestValidateCooldownElapsed(t *testing.T) {
	asset := testAsset()
	asset.RefillCooldownSeconds = 3600
	v, f := newFixture(asset)
	f.refills.latest = &models.RefillTransaction{
		RefillRequestID: "req-previous",
		Status:          models.RefillStatusCompleted,
		UpdatedAt:       time.Now().Add(-2 * time.Hour),
	}

	res := v.Validate(context.Background(), testRequest())

	assert.True(t, res.Success)
}

func TestValidateCooldownIgnoresFailedRefills(t *testing.T) {
	asset := testAsset()
	asset.RefillCooldownSeconds = 3600
	v, f := newFixture(asset)
	f.refills.latest = &models.RefillTransaction{
		RefillRequestID: "req-previous",
		Status:          models.RefillStatusFailed,
		UpdatedAt:       time.Now().Add(-time.Minute),
	}

	res := v.Validate(context.Background(), testRequest())

	assert.True(t, res.Success)
}

func TestDetermineHotWalletAddress(t *testing.T) {
	t.Run("native asset uses requested wallet", func(t *testing.T) {
		req := testRequest()
		req.AssetAddress = models.NativeAssetMarker
		req.WalletAddress = "0x5555555555555555555555555555555555555555"

		addr, err := DetermineHotWalletAddress(req, testAsset())

		require.NoError(t, err)
		assert.Equal(t, req.WalletAddress, addr)
	})

	t.Run("contract asset uses bound hot wallet", func(t *testing.T) {
		addr, err := DetermineHotWalletAddress(testRequest(), testAsset())

		require.NoError(t, err)
		assert.Equal(t, hotAddress, addr)
	})

	t.Run("contract asset without bound wallet fails", func(t *testing.T) {
		asset := testAsset()
		asset.HotWallet = nil

		_, err := DetermineHotWalletAddress(testRequest(), asset)

		assert.Error(t, err)
	})
}
