package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

const (
	SurfaceStorefront = "storefront"
	SurfaceSatellite  = "satellite"
)

type Storefront struct {
	HTTPAddr     string
	DatabaseURL  string
	RedisAddr    string
	KafkaBrokers []string
	Policy       domain.PricingPolicy
}

type Satellite struct {
	HTTPAddr          string
	DBPath            string
	StorefrontURL     string
	RedisAddr         string
	KafkaBrokers      []string
	KafkaGroupID      string
	TelegramToken     string
	TelegramURL       string
	SyncInterval      time.Duration
	PullTimeout       time.Duration
	PushTimeout       time.Duration
	CleanupInterval   time.Duration
	BroadcastInterval time.Duration
	Policy            domain.PricingPolicy
}

// LoadStorefront reads the storefront settings from the environment, after
// an optional .env file.
func LoadStorefront() (Storefront, error) {
	_ = godotenv.Load()
	var l loader

	cfg := Storefront{
		HTTPAddr:     ":" + getenv("PORT", "8080"),
		DatabaseURL:  l.required("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
	}
	if l.err != nil {
		return cfg, l.err
	}

	policy, err := LoadPolicy(os.Getenv("POLICY_FILE"), SurfaceStorefront)
	if err != nil {
		return cfg, err
	}
	cfg.Policy = policy

	return cfg, nil
}

// LoadSatellite reads the satellite settings. Redis, Kafka and the bot token
// are optional; the features that need them are disabled when unset.
func LoadSatellite() (Satellite, error) {
	_ = godotenv.Load()
	var l loader

	cfg := Satellite{
		HTTPAddr:          ":" + getenv("PORT", "8081"),
		DBPath:            getenv("SATELLITE_DB_PATH", "satellite.db"),
		StorefrontURL:     strings.TrimSuffix(l.required("STOREFRONT_URL"), "/"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBrokers:      splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaGroupID:      getenv("KAFKA_GROUP_ID", "satellite-stock"),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramURL:       os.Getenv("TELEGRAM_API_URL"),
		SyncInterval:      l.seconds("SYNC_INTERVAL", 300),
		PullTimeout:       l.seconds("PULL_TIMEOUT", 30),
		PushTimeout:       l.seconds("PUSH_TIMEOUT", 10),
		CleanupInterval:   l.seconds("CLEANUP_INTERVAL", 3600),
		BroadcastInterval: l.millis("BROADCAST_INTERVAL_MS", 100),
	}
	if l.err != nil {
		return cfg, l.err
	}

	policy, err := LoadPolicy(os.Getenv("POLICY_FILE"), SurfaceSatellite)
	if err != nil {
		return cfg, err
	}
	cfg.Policy = policy

	return cfg, nil
}

// loader keeps the first problem found so a whole config can be read before
// reporting.
type loader struct {
	err error
}

func (l *loader) required(key string) string {
	v := os.Getenv(key)
	if v == "" && l.err == nil {
		l.err = fmt.Errorf("%s environment variable is required", key)
	}
	return v
}

func (l *loader) seconds(key string, def int) time.Duration {
	return time.Duration(l.positiveInt(key, def)) * time.Second
}

func (l *loader) millis(key string, def int) time.Duration {
	return time.Duration(l.positiveInt(key, def)) * time.Millisecond
}

func (l *loader) positiveInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		if l.err == nil {
			l.err = fmt.Errorf("%s must be a positive integer, got %q", key, v)
		}
		return def
	}
	return n
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
