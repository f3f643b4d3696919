package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server
	ListenAddr  string
	Environment string // "development", "production" or "test"

	// Database
	DatabaseURL string

	// NATS (empty disables the external event stream)
	NATSServers string

	// Telegram WebApp authentication
	TelegramBotToken string

	// Tokens
	TokenSecret       string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	SessionInactivity time.Duration

	// Game engine
	CountdownDuration time.Duration
	TickInterval      time.Duration
	PostCrashPause    time.Duration
	HouseEdgeBps      int64 // basis points, 100 = 1%
	SeedRevealGrace   time.Duration

	// Wagering
	MinBet         int64
	MaxBet         int64
	DefaultBalance int64
	GuestBalance   int64
	FarmingCycle   time.Duration
	FarmingReward  int64

	// HTTP surface
	AllowedOrigins      []string
	AdminIPAllowlist    []string
	RegistrationEnabled bool
	RegistrationKey     string

	// Observability
	OTelEnabled              bool
	OTelServiceName          string
	OTelExporterType         string // "otlp", "console" or "none"
	OTelOTLPEndpoint         string
	OTelExportIntervalMillis int64
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// load loads configuration from the environment, reading a .env file first
// when one exists.
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		ListenAddr:  getEnvWithDefault("LISTEN_ADDR", ":8080"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		NATSServers: os.Getenv("NATS_SERVERS"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		TokenSecret:       os.Getenv("TOKEN_SECRET"),
		AccessTokenTTL:    getDurationWithDefault("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		RefreshTokenTTL:   getDurationWithDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		SessionInactivity: getDurationWithDefault("SESSION_INACTIVITY", 24*time.Hour),

		CountdownDuration: getDurationWithDefault("COUNTDOWN_DURATION", 5*time.Second),
		TickInterval:      getDurationWithDefault("TICK_INTERVAL", 50*time.Millisecond),
		PostCrashPause:    getDurationWithDefault("POST_CRASH_PAUSE", 3*time.Second),
		HouseEdgeBps:      getInt64WithDefault("HOUSE_EDGE_BPS", 100),
		SeedRevealGrace:   getDurationWithDefault("SEED_REVEAL_GRACE", 5*time.Minute),

		MinBet:         getInt64WithDefault("MIN_BET", 100),     // 1.00
		MaxBet:         getInt64WithDefault("MAX_BET", 1000000), // 10,000.00
		DefaultBalance: getInt64WithDefault("DEFAULT_BALANCE", 100000),
		GuestBalance:   getInt64WithDefault("GUEST_BALANCE", 100000),
		FarmingCycle:   getDurationWithDefault("FARMING_CYCLE", 6*time.Hour),
		FarmingReward:  getInt64WithDefault("FARMING_REWARD", 6000),

		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
		AdminIPAllowlist:    splitList(os.Getenv("ADMIN_IP_ALLOWLIST")),
		RegistrationEnabled: os.Getenv("REGISTRATION_ENABLED") == "true",
		RegistrationKey:     os.Getenv("REGISTRATION_KEY"),

		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "crashd"),
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "none"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelExportIntervalMillis: getInt64WithDefault("OTEL_EXPORT_INTERVAL_MILLIS", 60000),
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.TokenSecret == "" {
			return nil, fmt.Errorf("TOKEN_SECRET is required")
		}
	}
	if config.HouseEdgeBps < 0 || config.HouseEdgeBps >= 10000 {
		return nil, fmt.Errorf("HOUSE_EDGE_BPS must be in [0, 10000)")
	}
	if config.MinBet <= 0 || config.MaxBet < config.MinBet {
		return nil, fmt.Errorf("MIN_BET/MAX_BET must satisfy 0 < min <= max")
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		ListenAddr:        ":0",
		Environment:       "test",
		TokenSecret:       "test-secret",
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		SessionInactivity: time.Hour,
		CountdownDuration: 50 * time.Millisecond,
		TickInterval:      5 * time.Millisecond,
		PostCrashPause:    20 * time.Millisecond,
		HouseEdgeBps:      100,
		SeedRevealGrace:   time.Minute,
		MinBet:            1,
		MaxBet:            1000000,
		DefaultBalance:    100000,
		GuestBalance:      100000,
		FarmingCycle:      6 * time.Hour,
		FarmingReward:     6000,
	}
}
