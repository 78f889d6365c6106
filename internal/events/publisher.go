package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"refill-backend/internal/config"
	"refill-backend/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Lifecycle event subjects, relative to the configured prefix.
const (
	SubjectRefillRequested = "requested"
	SubjectRefillCompleted = "completed"
	SubjectRefillFailed    = "failed"
	SubjectAlertStale      = "alerts.stale"
	SubjectAlertLedger     = "alerts.ledger"
)

// RefillEvent is the payload published for every lifecycle transition.
// EventID is unique per publication so consumers can deduplicate redeliveries.
type RefillEvent struct {
	EventID         string    `json:"event_id"`
	RefillRequestID string    `json:"refill_request_id"`
	AssetSymbol     string    `json:"asset_symbol"`
	ChainName       string    `json:"chain_name"`
	Provider        string    `json:"provider"`
	Status          string    `json:"status"`
	AmountAtomic    string    `json:"amount_atomic"`
	Message         string    `json:"message,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// StaleAlert is published when a transaction stays non-terminal past the
// configured threshold. No status changes on staleness; operators decide.
type StaleAlert struct {
	EventID         string    `json:"event_id"`
	RefillRequestID string    `json:"refill_request_id"`
	AssetSymbol     string    `json:"asset_symbol"`
	Provider        string    `json:"provider"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	Age             string    `json:"age"`
	Timestamp       time.Time `json:"timestamp"`
}

// LedgerAlert is published when a ledger write fails after the provider
// already accepted a transfer. Money has moved; the row has not.
type LedgerAlert struct {
	EventID         string    `json:"event_id"`
	RefillRequestID string    `json:"refill_request_id"`
	AssetSymbol     string    `json:"asset_symbol"`
	Provider        string    `json:"provider"`
	ProviderTxID    string    `json:"provider_tx_id"`
	Error           string    `json:"error"`
	Timestamp       time.Time `json:"timestamp"`
}

// Publisher pushes refill lifecycle events and operator alerts onto NATS.
// With no NATS URL configured the publisher runs disabled: publishes become
// log lines and never fail, so the engine keeps working without a bus.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// NewPublisher connects to NATS. An empty URL yields a disabled publisher.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	if cfg.URL == "" {
		log.Println("NATS not configured, event publishing disabled")
		return &Publisher{prefix: cfg.SubjectPrefix}, nil
	}

	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}
	reconnectWait := 5 * time.Second
	if cfg.ReconnectWait > 0 {
		reconnectWait = time.Duration(cfg.ReconnectWait) * time.Second
	}
	maxReconnects := -1
	if cfg.MaxReconnects > 0 {
		maxReconnects = cfg.MaxReconnects
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️ NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("✅ NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Printf("✅ NATS publisher connected: %s", cfg.URL)
	return &Publisher{conn: conn, prefix: cfg.SubjectPrefix}, nil
}

// Enabled reports whether a live NATS connection is held.
func (p *Publisher) Enabled() bool {
	return p != nil && p.conn != nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.Enabled() {
		p.conn.Close()
	}
}

// PublishRefillEvent publishes one lifecycle transition. Publish failures are
// logged, never raised: the ledger is the source of truth, the bus is advisory.
func (p *Publisher) PublishRefillEvent(subject string, tx *models.RefillTransaction, message string) {
	event := RefillEvent{
		EventID:         uuid.NewString(),
		RefillRequestID: tx.RefillRequestID,
		AssetSymbol:     tx.TokenSymbol,
		ChainName:       tx.ChainName,
		Provider:        tx.Provider,
		Status:          string(tx.Status),
		AmountAtomic:    tx.AmountAtomic,
		Message:         message,
		Timestamp:       time.Now().UTC(),
	}
	p.publish(subject, event)
}

// PublishStaleAlert raises an operator alert for a transaction stuck past the
// staleness threshold.
func (p *Publisher) PublishStaleAlert(tx *models.RefillTransaction, age time.Duration) {
	alert := StaleAlert{
		EventID:         uuid.NewString(),
		RefillRequestID: tx.RefillRequestID,
		AssetSymbol:     tx.TokenSymbol,
		Provider:        tx.Provider,
		Status:          string(tx.Status),
		CreatedAt:       tx.CreatedAt,
		Age:             age.Round(time.Second).String(),
		Timestamp:       time.Now().UTC(),
	}
	p.publish(SubjectAlertStale, alert)
}

// PublishLedgerAlert raises the highest-severity alert: provider accepted the
// transfer but the ledger write failed.
func (p *Publisher) PublishLedgerAlert(requestID, assetSymbol, provider, providerTxID, errMsg string) {
	alert := LedgerAlert{
		EventID:         uuid.NewString(),
		RefillRequestID: requestID,
		AssetSymbol:     assetSymbol,
		Provider:        provider,
		ProviderTxID:    providerTxID,
		Error:           errMsg,
		Timestamp:       time.Now().UTC(),
	}
	p.publish(SubjectAlertLedger, alert)
}

func (p *Publisher) publish(subject string, payload interface{}) {
	fullSubject := fmt.Sprintf("%s.%s", p.subjectPrefix(), subject)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ [NATS] marshal event for %s failed: %v", fullSubject, err)
		return
	}

	if !p.Enabled() {
		log.Printf("📣 [events] %s %s", fullSubject, string(data))
		return
	}

	if err := p.conn.Publish(fullSubject, data); err != nil {
		log.Printf("❌ [NATS] publish %s failed: %v", fullSubject, err)
		return
	}
	log.Printf("📣 [NATS] published %s", fullSubject)
}

func (p *Publisher) subjectPrefix() string {
	if p == nil || p.prefix == "" {
		return "refill"
	}
	return p.prefix
}
