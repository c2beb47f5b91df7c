// server/cmd/api/main.go
package main

import (
	"context"
	"log"
	"time"

	"requisition-api-server/config"
	"requisition-api-server/internal/api/routes"
	"requisition-api-server/internal/auth"
	"requisition-api-server/internal/backend"
	"requisition-api-server/internal/database"
	"requisition-api-server/internal/notification"
	"requisition-api-server/internal/report"
	"requisition-api-server/internal/s3"
	"requisition-api-server/internal/socket"
	"requisition-api-server/internal/store"

	"github.com/joho/godotenv"
)

// Stale reservations are swept on this interval; held stock older than the
// default 48 hours goes back to the issue queue.
const reservationSweepInterval = time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from environment")
	}

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if cfg.JWT.Secret != "" {
		auth.JwtSecret = []byte(cfg.JWT.Secret)
	}
	if cfg.JWT.Expiration != "" {
		ttl, err := time.ParseDuration(cfg.JWT.Expiration)
		if err != nil {
			log.Fatalf("Invalid jwt expiration %q: %v", cfg.JWT.Expiration, err)
		}
		auth.TokenTTL = ttl
	}

	db, err := database.Connect(cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	dataStore := &store.Mongo{DB: db}

	if err := database.SeedAdmin(context.Background(), dataStore); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	wsHub := socket.NewHub()
	notifier := notification.NewDispatcher(dataStore, wsHub, cfg.Notify, cfg.App.URL)

	var reports *report.Builder
	if cfg.S3.Bucket != "" {
		uploader, err := s3.NewUploader(cfg.S3)
		if err != nil {
			log.Fatalf("Failed to create S3 uploader: %v", err)
		}
		reports = report.NewBuilder(uploader)
	}

	be := backend.New(dataStore, notifier, reports)

	go sweepReservations(be)

	router := routes.SetupRouter(be, wsHub)

	log.Printf("Starting API server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

func sweepReservations(be *backend.Backend) {
	ticker := time.NewTicker(reservationSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		result := be.Invoke(ctx, "release_expired_reservations", backend.Params{})
		cancel()
		if result["result"] == "error" {
			log.Printf("reservation sweep: %v", result["error"])
		} else if count, ok := result["count"].(int); ok && count > 0 {
			log.Printf("reservation sweep released %d reservations", count)
		}
	}
}
