package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Get returns the environment value for key, or fallback when unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// Config is the service configuration, read from the environment.
type Config struct {
	Port         string `validate:"required,numeric"`
	BackendURL   string `validate:"required,url"`
	BackendToken string
	LogLevel     string `validate:"omitempty,oneof=debug info warn error"`

	DepotLatitude  float64 `validate:"gte=-90,lte=90"`
	DepotLongitude float64 `validate:"gte=-180,lte=180"`

	SessionStore string        `validate:"oneof=memory redis"`
	RedisAddr    string        `validate:"required_if=SessionStore redis"`
	SessionTTL   time.Duration `validate:"gt=0"`

	// Leg cache: Postgres when DatabaseURL is set, otherwise SQLite at LegCachePath.
	DatabaseURL  string
	LegCachePath string
	LegCacheTTL  time.Duration `validate:"gte=0"`

	CapacityPolicy    string        `validate:"oneof=block warn"`
	SearchQuietPeriod time.Duration `validate:"gte=0"`
	TSPConcurrency    int           `validate:"gte=1"`
	// Bounds optimizer and save calls, which outlive the request that started them.
	CallTimeout time.Duration `validate:"gt=0"`
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:           Get("PORT", "8080"),
		BackendURL:     Get("BACKEND_URL", "http://localhost:8000/api/v1"),
		BackendToken:   Get("BACKEND_TOKEN", ""),
		LogLevel:       Get("LOG_LEVEL", "info"),
		SessionStore:   Get("SESSION_STORE", "memory"),
		RedisAddr:      Get("REDIS_ADDR", ""),
		DatabaseURL:    Get("DATABASE_URL", ""),
		LegCachePath:   Get("LEG_CACHE_PATH", "data/legs.db"),
		CapacityPolicy: Get("CAPACITY_POLICY", "block"),
	}

	var err error
	if cfg.DepotLatitude, err = GetFloat("DEPOT_LATITUDE", -6.2088); err != nil {
		return Config{}, err
	}
	if cfg.DepotLongitude, err = GetFloat("DEPOT_LONGITUDE", 106.8456); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = GetDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.LegCacheTTL, err = GetDuration("LEG_CACHE_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SearchQuietPeriod, err = GetDuration("SEARCH_QUIET_PERIOD", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.TSPConcurrency, err = GetInt("TSP_CONCURRENCY", 4); err != nil {
		return Config{}, err
	}
	if cfg.CallTimeout, err = GetDuration("BACKEND_CALL_TIMEOUT", 2*time.Minute); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
