package events

import (
	"testing"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledPublisherNeverFails(t *testing.T) {
	p, err := NewPublisher(config.NATSConfig{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	tx := &models.RefillTransaction{
		RefillRequestID: "req-1",
		TokenSymbol:     "USDT",
		ChainName:       "ethereum",
		Provider:        "fireblocks",
		Status:          models.RefillStatusPending,
		AmountAtomic:    "70000000",
		CreatedAt:       time.Now(),
	}

	// With no NATS configured every publish degrades to a log line.
	p.PublishRefillEvent(SubjectRefillRequested, tx, "refill submitted")
	p.PublishStaleAlert(tx, 45*time.Minute)
	p.PublishLedgerAlert("req-1", "USDT", "fireblocks", "ftx-1", "write failed")
	p.Close()
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher

	assert.False(t, p.Enabled())
	p.PublishLedgerAlert("req-1", "USDT", "fireblocks", "ftx-1", "write failed")
	p.Close()
}

func TestSubjectPrefixDefault(t *testing.T) {
	p, err := NewPublisher(config.NATSConfig{})
	require.NoError(t, err)
	assert.Equal(t, "refill", p.subjectPrefix())

	p, err = NewPublisher(config.NATSConfig{SubjectPrefix: "custody.refill"})
	require.NoError(t, err)
	assert.Equal(t, "custody.refill", p.subjectPrefix())
}
