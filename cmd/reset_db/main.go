package main

import (
	"context"
	"os"

	"ridebot/config"
	"ridebot/pkg/logger"
	"ridebot/storage"
	"ridebot/storage/mongodb"
	"ridebot/storage/postgres"
)

// reset_db wipes users, rides and bookings of the configured backend.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	ctx := context.Background()

	var (
		stg storage.IStorage
		err error
	)
	switch cfg.StorageBackend {
	case config.BackendMongo:
		stg, err = mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB, log)
	default:
		stg, err = postgres.New(ctx, cfg.PostgresURL(), log)
	}
	if err != nil {
		log.Error("Failed to connect to storage", logger.Error(err))
		os.Exit(1)
	}
	defer stg.Close()

	if err := stg.Reset(ctx); err != nil {
		log.Error("Failed to reset storage", logger.Error(err))
		return
	}
	log.Info("Successfully removed users, rides and bookings.", logger.String("storage", cfg.StorageBackend))
}
