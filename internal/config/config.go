package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	ShutdownTimeout time.Duration
	LogLevel        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KeyPrefix   string
	TTL         time.Duration
	Channel     string
	MaxAttempts int
	JitterMin   time.Duration
	JitterMax   time.Duration

	NotifierBackend string
	KafkaBrokers    []string
	CheckoutTopic   string
	CheckoutGroupID string

	MongoURI    string
	MongoDBName string
}

// Load reads the environment, after merging in a .env file when one is present.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8085"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KeyPrefix:       getEnv("TEAMCART_KEY_PREFIX", "food"),
		Channel:         getEnv("TEAMCART_CHANNEL", "teamcart-events"),
		NotifierBackend: strings.ToLower(getEnv("NOTIFIER_BACKEND", "redis")),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		CheckoutTopic:   getEnv("CHECKOUT_TOPIC", "checkout-outbox"),
		CheckoutGroupID: getEnv("CHECKOUT_GROUP_ID", "teamcart-service-consumer"),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDBName:     getEnv("MONGO_DB_NAME", "teamcartdb"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	ttlMinutes, err := getInt("TEAMCART_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.TTL = time.Duration(ttlMinutes) * time.Minute
	if cfg.MaxAttempts, err = getInt("TEAMCART_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	jitterMin, err := getInt("TEAMCART_JITTER_MIN_MS", 5)
	if err != nil {
		return nil, err
	}
	jitterMax, err := getInt("TEAMCART_JITTER_MAX_MS", 25)
	if err != nil {
		return nil, err
	}
	cfg.JitterMin = time.Duration(jitterMin) * time.Millisecond
	cfg.JitterMax = time.Duration(jitterMax) * time.Millisecond
	shutdownSeconds, err := getInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.ShutdownTimeout = time.Duration(shutdownSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.TTL <= 0:
		return errors.New("TEAMCART_TTL_MINUTES must be positive")
	case c.MaxAttempts < 1:
		return errors.New("TEAMCART_MAX_ATTEMPTS must be at least 1")
	case c.JitterMin < 0 || c.JitterMax < c.JitterMin:
		return fmt.Errorf("invalid retry jitter bounds %v..%v", c.JitterMin, c.JitterMax)
	}
	switch c.NotifierBackend {
	case "redis", "none":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return errors.New("NOTIFIER_BACKEND=kafka requires KAFKA_BROKERS")
		}
	default:
		return fmt.Errorf("unknown NOTIFIER_BACKEND %q", c.NotifierBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
