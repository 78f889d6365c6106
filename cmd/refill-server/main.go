package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"refill-backend/internal/app"
	"refill-backend/internal/config"
	"refill-backend/internal/db"
	"refill-backend/internal/handlers"
	"refill-backend/internal/router"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	log.Println("🚀 Starting refill-backend...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	gdb, err := db.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}

	container, err := app.InitializeContainer(cfg, gdb)
	if err != nil {
		log.Fatalf("❌ Failed to initialize services: %v", err)
	}
	container.Start()

	refillHandler := handlers.NewRefillHandler(container.RefillService, logger)
	adminHandler := handlers.NewAdminHandler(container.ReconciliationService, container.ProviderRegistry, logger)
	adminAuthHandler := handlers.NewAdminAuthHandler()

	engine := router.SetupRouter(cfg, gdb, logger, refillHandler, adminHandler, adminAuthHandler)

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: engine,
	}

	go func() {
		log.Printf("✅ HTTP server listening on %s", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, finish in-flight ones,
	// then stop the background loops.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP server shutdown error: %v", err)
	}

	container.Cleanup()

	log.Println("✅ refill-backend stopped")
}
