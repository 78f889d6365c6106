package app

import (
	"context"
	"log"

	"refill-backend/internal/config"
	"refill-backend/internal/events"
	"refill-backend/internal/metrics"
	"refill-backend/internal/providers"
	"refill-backend/internal/repository"
	"refill-backend/internal/services"
	"refill-backend/internal/validation"

	"gorm.io/gorm"
)

// ServiceContainer wires repositories, providers and services. All
// dependencies flow through here explicitly; nothing reads global state.
type ServiceContainer struct {
	Config *config.Config
	DB     *gorm.DB

	// Repositories
	AssetRepo  repository.AssetRepository
	WalletRepo repository.WalletRepository
	RefillRepo repository.RefillTransactionRepository

	// Provider registry and event bus
	ProviderRegistry *providers.Registry
	Publisher        *events.Publisher

	// Core services
	Validator             *validation.RequestValidator
	RefillService         *services.RefillService
	ReconciliationService *services.ReconciliationService
}

// InitializeContainer builds the full dependency graph.
func InitializeContainer(cfg *config.Config, db *gorm.DB) (*ServiceContainer, error) {
	log.Println("🚀 Initializing Service Container...")

	c := &ServiceContainer{
		Config: cfg,
		DB:     db,
	}

	c.initRepositories()
	c.initProviders()

	publisher, err := events.NewPublisher(cfg.NATS)
	if err != nil {
		return nil, err
	}
	c.Publisher = publisher

	c.initServices()

	log.Println("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initRepositories() {
	log.Println("📦 Initializing Repositories...")

	c.AssetRepo = repository.NewAssetRepository(c.DB)
	c.WalletRepo = repository.NewWalletRepository(c.DB)
	c.RefillRepo = repository.NewRefillTransactionRepository(c.DB)

	log.Println("✅ Repositories initialized")
}

// initProviders registers every known custody backend and initializes them.
// Missing credentials skip a backend, they never fail startup.
func (c *ServiceContainer) initProviders() {
	log.Println("🔧 Initializing Custody Providers...")

	c.ProviderRegistry = providers.NewRegistry()
	c.ProviderRegistry.Register(providers.NewFireblocksProvider(c.Config.Providers.Fireblocks))
	c.ProviderRegistry.Register(providers.NewBitGoProvider(c.Config.Providers.BitGo))

	c.ProviderRegistry.InitializeAll(context.Background())

	for _, name := range c.ProviderRegistry.Names() {
		available := 0.0
		if _, err := c.ProviderRegistry.Resolve(name); err == nil {
			available = 1.0
		}
		metrics.ProviderAvailable.WithLabelValues(name).Set(available)
	}
}

func (c *ServiceContainer) initServices() {
	log.Println("🔧 Initializing Core Services...")

	c.Validator = validation.NewRequestValidator(
		c.AssetRepo,
		c.WalletRepo,
		c.RefillRepo,
		c.ProviderRegistry,
	)

	c.RefillService = services.NewRefillService(
		c.Validator,
		c.RefillRepo,
		c.ProviderRegistry,
		c.Publisher,
	)

	c.ReconciliationService = services.NewReconciliationService(
		c.RefillRepo,
		c.ProviderRegistry,
		c.Publisher,
		c.Config.Reconciliation,
	)

	log.Println("✅ Core Services initialized")
}

// Start launches the background loops.
func (c *ServiceContainer) Start() {
	c.ReconciliationService.Start()
}

// Cleanup stops background loops and closes connections.
func (c *ServiceContainer) Cleanup() {
	log.Println("🧹 Cleaning up Service Container...")

	if c.ReconciliationService != nil {
		c.ReconciliationService.Stop()
	}
	if c.Publisher != nil {
		c.Publisher.Close()
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}

	log.Println("✅ Service Container cleaned up")
}
