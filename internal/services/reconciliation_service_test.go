package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/events"
	"refill-backend/internal/models"
	"refill-backend/internal/providers"
	"refill-backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcileFixture struct {
	ledger   *fakeLedger
	provider *fakeProvider
	svc      *ReconciliationService
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	f := &reconcileFixture{
		ledger: newFakeLedger(),
		provider: &fakeProvider{
			name:       "fireblocks",
			txnByID:    make(map[string]*providers.ProviderTransaction),
			txnErrByID: make(map[string]error),
		},
	}

	registry := providers.NewRegistry()
	registry.Register(f.provider)
	registry.InitializeAll(context.Background())

	publisher, err := events.NewPublisher(config.NATSConfig{})
	require.NoError(t, err)

	f.svc = NewReconciliationService(f.ledger, registry, publisher, config.ReconciliationConfig{
		Interval:    30,
		StaleAfter:  1800,
		CallTimeout: 5,
	})
	return f
}

func activeTx(requestID, providerTxID string, status models.RefillStatus) *models.RefillTransaction {
	tx := &models.RefillTransaction{
		RefillRequestID: requestID,
		AssetID:         1,
		Provider:        "fireblocks",
		Status:          status,
		AmountAtomic:    "70000000",
		TokenSymbol:     "USDT",
		ChainName:       "ethereum",
		CreatedAt:       time.Now().Add(-time.Minute),
	}
	if providerTxID != "" {
		tx.ProviderTxID = &providerTxID
	}
	return tx
}

func TestRunCycleAdvancesToCompleted(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "ftx-1", models.RefillStatusProcessing)}
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{
		ID:     "ftx-1",
		Status: "COMPLETED",
		TxHash: "0xabc",
	}

	f.svc.RunCycle(context.Background())

	require.Len(t, f.ledger.updates, 1)
	assert.Equal(t, "req-1", f.ledger.updates[0].requestID)
	assert.Equal(t, models.RefillStatusCompleted, f.ledger.updates[0].status)
	assert.Equal(t, "0xabc", f.ledger.updates[0].txHash)
	assert.Equal(t, "COMPLETED", f.ledger.updates[0].providerStatus)
}

func TestRunCycleAdvancesPendingToProcessing(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "ftx-1", models.RefillStatusPending)}
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{ID: "ftx-1", Status: "CONFIRMING"}

	f.svc.RunCycle(context.Background())

	require.Len(t, f.ledger.updates, 1)
	assert.Equal(t, models.RefillStatusProcessing, f.ledger.updates[0].status)
}

func TestRunCycleRecordsFailureMessage(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "ftx-1", models.RefillStatusProcessing)}
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{ID: "ftx-1", Status: "FAILED"}

	f.svc.RunCycle(context.Background())

	require.Len(t, f.ledger.updates, 1)
	assert.Equal(t, models.RefillStatusFailed, f.ledger.updates[0].status)
	assert.Contains(t, f.ledger.updates[0].message, "FAILED")
}

func TestRunCycleNeverDemotesProcessingToPending(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "ftx-1", models.RefillStatusProcessing)}
	// Unknown provider vocabulary maps to PENDING; the transaction must not
	// walk backwards.
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{ID: "ftx-1", Status: "SOME_NEW_STATUS"}

	f.svc.RunCycle(context.Background())

	assert.Empty(t, f.ledger.updates)
}

func TestRunCycleSkipsUnchangedStatus(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "ftx-1", models.RefillStatusPending)}
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{ID: "ftx-1", Status: "SUBMITTED"}

	f.svc.RunCycle(context.Background())

	assert.Empty(t, f.ledger.updates)
}

func TestRunCycleSkipsTransactionsWithoutProviderTxID(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "", models.RefillStatusPending)}

	f.svc.RunCycle(context.Background())

	assert.Empty(t, f.ledger.updates)
}

func TestRunCycleStaleTransactionKeepsStatus(t *testing.T) {
	f := newReconcileFixture(t)
	tx := activeTx("req-1", "ftx-1", models.RefillStatusPending)
	tx.CreatedAt = time.Now().Add(-2 * time.Hour) // well past the 30m threshold
	f.ledger.scan = []*models.RefillTransaction{tx}
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{ID: "ftx-1", Status: "SUBMITTED"}

	f.svc.RunCycle(context.Background())

	// Staleness alerts, it never forces a transition.
	assert.Empty(t, f.ledger.updates)
}

func TestRunCycleTreatsTerminalRaceAsBenign(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{activeTx("req-1", "ftx-1", models.RefillStatusProcessing)}
	f.ledger.updateErr = repository.ErrNoRowsUpdated
	f.provider.txnByID["ftx-1"] = &providers.ProviderTransaction{ID: "ftx-1", Status: "COMPLETED"}

	f.svc.RunCycle(context.Background())

	// The guarded update found the row already terminal; exactly one attempt,
	// no retry, no error escalation.
	assert.Equal(t, 1, f.ledger.updateCalls)
	assert.Empty(t, f.ledger.updates)
}

func TestRunCycleIsolatesPerTransactionFailures(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scan = []*models.RefillTransaction{
		activeTx("req-1", "ftx-1", models.RefillStatusProcessing),
		activeTx("req-2", "ftx-2", models.RefillStatusProcessing),
	}
	f.provider.txnErrByID["ftx-1"] = errors.New("gateway timeout")
	f.provider.txnByID["ftx-2"] = &providers.ProviderTransaction{ID: "ftx-2", Status: "COMPLETED"}

	f.svc.RunCycle(context.Background())

	require.Len(t, f.ledger.updates, 1)
	assert.Equal(t, "req-2", f.ledger.updates[0].requestID)
}

func TestRunCycleSurvivesScanFailure(t *testing.T) {
	f := newReconcileFixture(t)
	f.ledger.scanErr = errors.New("db down")

	f.svc.RunCycle(context.Background())

	assert.Empty(t, f.ledger.updates)
}

func TestStartStop(t *testing.T) {
	f := newReconcileFixture(t)

	f.svc.Start()
	f.svc.Start() // second start is a no-op
	f.svc.Stop()
	f.svc.Stop() // second stop is a no-op
}
