package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domains/payment/gateway/billdesk"
)

// Config holds the whole application configuration.
// Populated from environment variables.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	BillDesk BillDeskConfig
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

// =====================================================
// BILLDESK CONFIGURATION
// =====================================================

type BillDeskConfig struct {
	MercID       string // Merchant ID issued by BillDesk
	ClientID     string // Basic auth client id for API calls
	ClientSecret string // Basic auth client secret
	EncSecret    string // Shared secret for payload encryption (A256GCM)
	EncKeyID     string // Key id carried in the JWE header
	SignSecret   string // Shared secret for envelope signing (HS256)
	SignKeyID    string // Key id carried in the JWS header
	BaseURL      string // BillDesk API base URL
	ReturnURL    string // Browser return endpoint (this backend)
	WebhookURL   string // Server-to-server callback endpoint (this backend)
	ResultURL    string // Storefront page the customer lands on
	ItemCode     string
	MaxAmount    string // Upper bound for a single payment, decimal string

	// LegacyOrderRecovery enables the last-resort most-recent-pending
	// lookup for gateway payloads that omit the order id
	LegacyOrderRecovery bool
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Storefront API"),
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("APP_PORT", "8080"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "storefront"),
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
		BillDesk: BillDeskConfig{
			MercID:              getEnv("BILLDESK_MERC_ID", ""),
			ClientID:            getEnv("BILLDESK_CLIENT_ID", ""),
			ClientSecret:        getEnv("BILLDESK_CLIENT_SECRET", ""),
			EncSecret:           getEnv("BILLDESK_ENC_SECRET", ""),
			EncKeyID:            getEnv("BILLDESK_ENC_KEY_ID", ""),
			SignSecret:          getEnv("BILLDESK_SIGN_SECRET", ""),
			SignKeyID:           getEnv("BILLDESK_SIGN_KEY_ID", ""),
			BaseURL:             getEnv("BILLDESK_BASE_URL", "https://uat1.billdesk.com/u2/payments/ve1_2"),
			ReturnURL:           getEnv("BILLDESK_RETURN_URL", "http://localhost:8080/api/v1/payments/billdesk/return"),
			WebhookURL:          getEnv("BILLDESK_WEBHOOK_URL", "http://localhost:8080/api/v1/payments/billdesk/webhook"),
			ResultURL:           getEnv("BILLDESK_RESULT_URL", "http://localhost:3000/checkout/result"),
			ItemCode:            getEnv("BILLDESK_ITEM_CODE", "DIRECT"),
			MaxAmount:           getEnv("BILLDESK_MAX_AMOUNT", "500000"),
			LegacyOrderRecovery: getEnvBool("BILLDESK_LEGACY_ORDER_RECOVERY", false),
		},
	}

	// Validate critical config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.App.Environment == "production" {
		if c.JWT.Secret == "your-secret-key-change-in-production" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD must be set in production")
		}
		if c.BillDesk.MercID == "" {
			fmt.Println("WARNING: BillDesk MercID not set - payments will not work")
		}
	}

	if _, err := decimal.NewFromString(c.BillDesk.MaxAmount); err != nil {
		return fmt.Errorf("invalid BILLDESK_MAX_AMOUNT: %w", err)
	}

	return nil
}

// BillDeskGatewayConfig builds the gateway client configuration
func (c *Config) BillDeskGatewayConfig() billdesk.Config {
	maxAmount, _ := decimal.NewFromString(c.BillDesk.MaxAmount)
	return billdesk.Config{
		MercID:              c.BillDesk.MercID,
		ClientID:            c.BillDesk.ClientID,
		ClientSecret:        c.BillDesk.ClientSecret,
		EncSecret:           c.BillDesk.EncSecret,
		EncKeyID:            c.BillDesk.EncKeyID,
		SignSecret:          c.BillDesk.SignSecret,
		SignKeyID:           c.BillDesk.SignKeyID,
		BaseURL:             c.BillDesk.BaseURL,
		ReturnURL:           c.BillDesk.ReturnURL,
		WebhookURL:          c.BillDesk.WebhookURL,
		ResultURL:           c.BillDesk.ResultURL,
		ItemCode:            c.BillDesk.ItemCode,
		MaxAmount:           maxAmount,
		LegacyOrderRecovery: c.BillDesk.LegacyOrderRecovery,
	}
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

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
