package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"

	NotifyInline = "inline"
	NotifyPoll   = "poll"
	NotifyKafka  = "kafka"
)

const minPollInterval = time.Second

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort int

	StorageBackend string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	MongoURI string
	MongoDB  string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RidesCacheTTL time.Duration

	TelegramBotToken string
	AdminID          int64
	RequiredChat     string
	WebAppURL        string

	NotifyMode         string
	NotifyPollInterval time.Duration
	NotifyBatchSize    int
	NotifyMaxAttempts  int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
	)
}

func (c Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

func Load() Config {
	_ = godotenv.Load(".env")

	file, err := readFile(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}
	get := func(key string, defaultValue interface{}) interface{} {
		return getOrReturnDefault(file, key, defaultValue)
	}

	cfg := Config{}

	cfg.ServiceName = cast.ToString(get("SERVICE_NAME", "ridebot"))
	cfg.LoggerLevel = cast.ToString(get("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(get("APP_PORT", 8080))

	cfg.StorageBackend = strings.ToLower(cast.ToString(get("STORAGE_BACKEND", BackendPostgres)))

	cfg.PostgresHost = cast.ToString(get("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(get("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(get("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(get("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(get("POSTGRES_DB", "ridebot"))

	cfg.MongoURI = cast.ToString(get("MONGO_URI", "mongodb://localhost:27017"))
	cfg.MongoDB = cast.ToString(get("MONGO_DB", "ridebot"))

	cfg.RedisHost = cast.ToString(get("REDIS_HOST", ""))
	cfg.RedisPort = cast.ToString(get("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(get("REDIS_PASSWORD", ""))
	cfg.RedisDB = cast.ToInt(get("REDIS_DB", 0))
	cfg.RidesCacheTTL = seconds(get("RIDES_CACHE_TTL", 10), 10*time.Second)

	cfg.TelegramBotToken = cast.ToString(get("TG_BOT_TOKEN", ""))
	cfg.AdminID = cast.ToInt64(get("ADMIN_ID", 0))
	cfg.RequiredChat = cast.ToString(get("REQUIRED_CHAT", ""))
	cfg.WebAppURL = cast.ToString(get("WEB_APP_URL", ""))

	cfg.NotifyMode = strings.ToLower(cast.ToString(get("NOTIFY_MODE", NotifyPoll)))
	cfg.NotifyPollInterval = seconds(get("NOTIFY_POLL_INTERVAL", 5), 5*time.Second)
	if cfg.NotifyPollInterval < minPollInterval {
		fmt.Fprintf(os.Stderr, "config: NOTIFY_POLL_INTERVAL %s is below %s, using %s\n",
			cfg.NotifyPollInterval, minPollInterval, 5*time.Second)
		cfg.NotifyPollInterval = 5 * time.Second
	}
	cfg.NotifyBatchSize = cast.ToInt(get("NOTIFY_BATCH_SIZE", 10))
	cfg.NotifyMaxAttempts = cast.ToInt(get("NOTIFY_MAX_ATTEMPTS", 3))

	cfg.KafkaBrokers = splitList(cast.ToString(get("KAFKA_BROKERS", "localhost:9092")))
	cfg.KafkaTopic = cast.ToString(get("KAFKA_TOPIC", "ride-events"))
	cfg.KafkaGroupID = cast.ToString(get("KAFKA_GROUP_ID", "ridebot-notifier"))

	return cfg
}

// readFile parses an optional flat YAML file of KEY: value pairs. An empty path
// yields an empty map.
func readFile(path string) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	if path == "" {
		return values, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return values, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return map[string]interface{}{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return values, nil
}

func getOrReturnDefault(file map[string]interface{}, key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	if v, ok := file[key]; ok && v != nil {
		return v
	}
	return defaultValue
}

// seconds reads a bare number as seconds and anything else as a Go duration
// ("500ms", "1m"). Unparsable values yield def.
func seconds(v interface{}, def time.Duration) time.Duration {
	if n, err := cast.ToFloat64E(v); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	if d, err := cast.ToDurationE(v); err == nil {
		return d
	}
	fmt.Fprintf(os.Stderr, "config: bad duration %v, using %s\n", v, def)
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
