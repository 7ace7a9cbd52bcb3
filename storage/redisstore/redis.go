// Package redisstore keeps bot sessions and the active rides listing in Redis.
package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridebot/pkg/logger"
)

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int, log logger.ILogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to ping Redis", logger.String("addr", addr), logger.Error(err))
		_ = client.Close()
		return nil, err
	}
	log.Info("Redis connected", logger.String("addr", addr))
	return client, nil
}
