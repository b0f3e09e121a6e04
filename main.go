package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vinted/internal/config"
	"vinted/internal/server"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ExternalTimeout)
	defer cancel()

	// --- Stores ---
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close()

	// --- External services ---
	images, err := newImageHost(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s image host: %v", cfg.ImageHost, err)
	}

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s lock backend: %v", cfg.LockBackend, err)
	}
	defer closeLocker()

	// Events are optional; without RABBITMQ_URL nothing is published.
	events, closeEvents := newEventPublisher(cfg)
	defer closeEvents()

	// --- Services and HTTP ---
	deps := newDeps(cfg, st, images, newPaymentProvider(cfg), locker, events)
	app := server.New(deps)

	log.Printf("Starting server on port %s (store=%s, images=%s, lock=%s)",
		cfg.AppPort, cfg.StoreDriver, cfg.ImageHost, cfg.LockBackend)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
