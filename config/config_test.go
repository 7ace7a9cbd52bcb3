package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("NOTIFY_MODE", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg := Load()

	assert.Equal(t, BackendPostgres, cfg.StorageBackend)
	assert.Equal(t, NotifyPoll, cfg.NotifyMode)
	assert.Equal(t, 5*time.Second, cfg.NotifyPollInterval)
	assert.Equal(t, 10, cfg.NotifyBatchSize)
	assert.Equal(t, 3, cfg.NotifyMaxAttempts)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "POSTGRES_HOST: db.internal\nNOTIFY_BATCH_SIZE: 25\nADMIN_ID: 42\nKAFKA_BROKERS: a:9092, b:9092\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("NOTIFY_BATCH_SIZE", "")
	t.Setenv("ADMIN_ID", "7")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.PostgresHost)
	assert.Equal(t, 25, cfg.NotifyBatchSize)
	assert.Equal(t, int64(7), cfg.AdminID, "env overrides file")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestConfig_Addresses(t *testing.T) {
	cfg := Config{
		PostgresUser: "u", PostgresPassword: "p", PostgresHost: "h", PostgresPort: "1", PostgresDB: "d",
		RedisPort: "6379",
	}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", cfg.PostgresURL())
	assert.Equal(t, "", cfg.RedisAddr())

	cfg.RedisHost = "cache"
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
}

func TestLoad_Durations(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	cases := []struct {
		poll, ttl         string
		wantPoll, wantTTL time.Duration
	}{
		{"5", "10", 5 * time.Second, 10 * time.Second},
		{"2s", "1m", 2 * time.Second, time.Minute},
		{"1.5", "0", 1500 * time.Millisecond, 0},
		{"5ns", "soon", 5 * time.Second, 10 * time.Second},
		{"0", "", 5 * time.Second, 10 * time.Second},
	}
	for _, tc := range cases {
		t.Setenv("NOTIFY_POLL_INTERVAL", tc.poll)
		t.Setenv("RIDES_CACHE_TTL", tc.ttl)

		cfg := Load()

		assert.Equal(t, tc.wantPoll, cfg.NotifyPollInterval, "poll %q", tc.poll)
		assert.Equal(t, tc.wantTTL, cfg.RidesCacheTTL, "ttl %q", tc.ttl)
	}
}
