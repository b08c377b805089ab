package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full application configuration, populated from
// environment variables.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Mpesa    MpesaConfig
	Payment  PaymentConfig
	Job      JobConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  int // minutes
	RefreshTokenExpiry int // hours
}

// MpesaConfig points at the STK push gateway proxy.
type MpesaConfig struct {
	BaseURL     string // gateway proxy base URL
	ShortCode   string // business paybill / till number
	Passkey     string // STK push passkey
	CallbackURL string // where the provider posts confirmations
}

// PaymentConfig tunes the confirmation reconciler.
type PaymentConfig struct {
	PollInterval  time.Duration // DB poll spacing
	GatewayStride int           // gateway query every Nth poll tick
	MaxAttempts   int           // poll attempts before giving up
	MinAmount     int64         // minimum chargeable amount in KES
}

type JobConfig struct {
	SweepBatchSize int // stale intents handled per sweep run
	SweepMinAge    time.Duration
}

// Load reads config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Sokoni API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "sokoni"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 25),
			MinConns: getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenExpiry:  getEnvInt("JWT_ACCESS_EXPIRY", 15),
			RefreshTokenExpiry: getEnvInt("JWT_REFRESH_EXPIRY", 72),
		},
		Mpesa: MpesaConfig{
			BaseURL:     getEnv("MPESA_BASE_URL", "https://gateway.sokoni.local"),
			ShortCode:   getEnv("MPESA_SHORT_CODE", ""),
			Passkey:     getEnv("MPESA_PASSKEY", ""),
			CallbackURL: getEnv("MPESA_CALLBACK_URL", "http://localhost:8080/api/v1/webhooks/mpesa"),
		},
		Payment: PaymentConfig{
			PollInterval:  getEnvDuration("PAYMENT_POLL_INTERVAL", 3*time.Second),
			GatewayStride: getEnvInt("PAYMENT_GATEWAY_STRIDE", 2),
			MaxAttempts:   getEnvInt("PAYMENT_MAX_ATTEMPTS", 40),
			MinAmount:     int64(getEnvInt("PAYMENT_MIN_AMOUNT", 1)),
		},
		Job: JobConfig{
			SweepBatchSize: getEnvInt("JOB_SWEEP_BATCH_SIZE", 100),
			SweepMinAge:    getEnvDuration("JOB_SWEEP_MIN_AGE", 3*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for sanity.
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.Mpesa.ShortCode == "" {
			fmt.Println("WARNING: MPESA_SHORT_CODE not set - STK push will not work")
		}
	}

	if c.Payment.PollInterval <= 0 {
		return fmt.Errorf("PAYMENT_POLL_INTERVAL must be positive")
	}
	if c.Payment.GatewayStride < 1 {
		return fmt.Errorf("PAYMENT_GATEWAY_STRIDE must be at least 1")
	}
	if c.Payment.MaxAttempts < 1 {
		return fmt.Errorf("PAYMENT_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
