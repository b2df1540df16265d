package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tariff-routing-service/internal/config"
	"tariff-routing-service/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env
	if err := godotenv.Load(); err != nil {
		log.Println("Engine: No .env file found, relying on system env vars")
	}

	cfg := config.Load()
	srv := server.NewServer(cfg)

	errCh := make(chan error, 1)

	go func() {
		log.Printf("🌍 Engine HTTP server starting on %s", cfg.HTTPAddr)
		if err := srv.StartHTTP(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("Shutting down engine server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.HTTP.Shutdown(ctx); err != nil {
			log.Printf("Failed to shutdown HTTP server: %v", err)
		}

	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	}
}
