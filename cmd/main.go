package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ridebot/config"
	"ridebot/pkg/api"
	"ridebot/pkg/bot"
	"ridebot/pkg/events"
	"ridebot/pkg/logger"
	"ridebot/pkg/notify"
	"ridebot/service"
	"ridebot/storage"
	"ridebot/storage/memory"
	"ridebot/storage/mongodb"
	"ridebot/storage/postgres"
	"ridebot/storage/redisstore"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ridebot stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logger.ILogger) error {
	// 3. Storage
	stg, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stg.Close()

	// 4. Sessions and rides cache, in Redis when configured
	var (
		sessions storage.ISessionStorage = memory.NewSessionStore()
		cache    api.RidesCache
	)
	if addr := cfg.RedisAddr(); addr != "" {
		client, err := redisstore.Connect(ctx, addr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			return err
		}
		defer client.Close()
		sessions = redisstore.NewSessionStore(client, redisstore.SessionTTL)
		if cfg.RidesCacheTTL > 0 {
			cache = redisstore.NewRidesCache(client, cfg.RidesCacheTTL)
		}
	}

	// 5. Notifications. The bot is the sender but is built after the services.
	var tg *bot.Bot
	sender := notify.SenderFunc(func(ctx context.Context, chatID int64, text string) error {
		return tg.Send(ctx, chatID, text)
	})
	notifier := notify.NewNotifier(sender, stg.Booking(), cfg.NotifyMaxAttempts, log)

	dispatcher, closeDispatcher, err := newDispatcher(cfg, notifier, stg, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	// 6. Services and bot
	svc := service.New(stg, dispatcher, log)
	tg, err = bot.New(&cfg, svc, sessions, log)
	if err != nil {
		return fmt.Errorf("failed to initialize bot: %w", err)
	}

	errCh := make(chan error, 2)

	// 7. HTTP API for the mini app
	router := api.NewRouter(svc, tg, cache, "./web", log)
	go func() {
		errCh <- api.Run(ctx, fmt.Sprintf(":%d", cfg.AppPort), router, log)
	}()

	// 8. Dispatcher background loop
	go func() {
		errCh <- dispatcher.Run(ctx)
	}()

	go tg.Start()
	log.Info("🚀 ridebot is running",
		logger.String("storage", cfg.StorageBackend),
		logger.String("notify", cfg.NotifyMode),
	)

	// 9. Graceful shutdown
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	log.Info("Stopping bot and shutting down...")
	tg.Stop()
	return err
}

func openStorage(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		stg, err := postgres.New(ctx, cfg.PostgresURL(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return stg, nil
	case config.BackendMongo:
		stg, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return stg, nil
	case config.BackendMemory:
		log.Warning("using in-memory storage, data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func newDispatcher(cfg config.Config, n *notify.Notifier, stg storage.IStorage, log logger.ILogger) (notify.Dispatcher, func(), error) {
	switch cfg.NotifyMode {
	case config.NotifyInline:
		return notify.NewInline(n), func() {}, nil
	case config.NotifyPoll:
		return notify.NewPoller(n, stg.Booking(), cfg.NotifyPollInterval, cfg.NotifyBatchSize, log), func() {}, nil
	case config.NotifyKafka:
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic)
		closeAll := func() {
			if err := producer.Close(); err != nil {
				log.Warning("failed to close kafka producer", logger.Error(err))
			}
			if err := consumer.Close(); err != nil {
				log.Warning("failed to close kafka consumer", logger.Error(err))
			}
		}
		return notify.NewKafka(n, producer, consumer, log), closeAll, nil
	}
	return nil, nil, fmt.Errorf("unknown notify mode %q", cfg.NotifyMode)
}
