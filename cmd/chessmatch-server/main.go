// Package main runs the chessmatch API server: a two-party correspondence
// chess service with pluggable game storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chessmatch/internal/archive"
	"chessmatch/internal/config"
	"chessmatch/internal/rules"
	httpserver "chessmatch/internal/server/http"
	"chessmatch/internal/service"
	"chessmatch/internal/store"
)

const (
	gracefulShutdownTimeout = time.Second * 5
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Command-line flags override the environment
	var (
		host         = flag.String("host", cfg.Host, "API server host")
		port         = flag.Int("port", cfg.Port, "API server port")
		dev          = flag.Bool("dev", cfg.Dev, "Development mode (relaxed rate limits)")
		storeBackend = flag.String("store", cfg.StoreBackend, "Game store backend: memory or redis")
		redisURL     = flag.String("redis-url", cfg.RedisURL, "Redis URL for the redis store backend")
		archivePath  = flag.String("archive-path", cfg.ArchivePath, "Path to SQLite history archive (disabled if empty)")
	)
	flag.Parse()

	// 1. Initialize the game store
	var st store.Store
	switch *storeBackend {
	case config.BackendMemory:
		log.Printf("Game store: in-memory (non-durable)")
		st = store.NewMemory()
	case config.BackendRedis:
		log.Printf("Game store: redis (%s)", *redisURL)
		st, err = store.NewRedis(context.Background(), *redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
	default:
		log.Fatalf("Unknown store backend: %s", *storeBackend)
	}

	// 2. Initialize the history archive (optional)
	var arc *archive.Archive
	if *archivePath != "" {
		log.Printf("History archive: %s", *archivePath)
		arc, err = archive.New(*archivePath)
		if err != nil {
			log.Fatalf("Failed to initialize archive: %v", err)
		}
	} else {
		log.Printf("History archive disabled (use -archive-path to enable)")
	}

	// 3. Initialize the service with the standard rule engine
	svc := service.New(st, rules.NewStandard(), arc)

	// 4. Initialize the Fiber app
	app := httpserver.NewFiberApp(svc, *dev)

	addr := fmt.Sprintf("%s:%d", *host, *port)

	go func() {
		log.Printf("Chessmatch API server starting...")
		log.Printf("Listening on: http://%s", addr)
		log.Printf("API Version: v1")
		if *dev {
			log.Printf("Rate Limit: 20 requests/second per IP (DEV MODE)")
		} else {
			log.Printf("Rate Limit: 10 requests/second per IP")
		}
		log.Printf("Endpoints: http://%s/api/v1/games", addr)
		log.Printf("Health: http://%s/health", addr)

		if err := app.Listen(addr); err != nil {
			log.Printf("Server listen error: %v", err)
		}
	}()

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		log.Printf("Service shutdown error: %v", err)
	}

	log.Println("Server exited")
}
