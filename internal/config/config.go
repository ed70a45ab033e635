package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is used when LLM_BASE_URL is not set
const DefaultBaseURL = "https://api.openai.com/v1"

// Config holds all application configuration
type Config struct {
	LLMAPIKey       string  `env:"LLM_API_KEY"`
	LLMBaseURL      string  `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel        string  `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTemperature  float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LLMMaxTokens    int     `env:"LLM_MAX_TOKENS" envDefault:"8000"`
	LLMRequestsPerS int     `env:"LLM_REQUESTS_PER_SEC" envDefault:"2"`
	LLMMaxRetries   int     `env:"LLM_MAX_RETRIES" envDefault:"0"`
	RequestTimeout  int     `env:"REQUEST_TIMEOUT" envDefault:"300"` // seconds
	ChartCheck      string  `env:"CHART_CHECK" envDefault:"correct"`
	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string  `env:"HTTP_ADDR" envDefault:":8080"`

	DB DBConfig

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramBotUsername string `env:"TELEGRAM_BOT_USERNAME"`

	PaymentRequired     bool   `env:"PAYMENT_REQUIRED" envDefault:"false"`
	StripeAPIKey        string `env:"STRIPE_API_KEY"`
	StripeReportPriceID string `env:"STRIPE_REPORT_PRICE_ID"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// DBConfig holds PostgreSQL connection parameters. An empty Host disables the report archive.
type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`
	DBName   string `env:"DB_NAME" envDefault:"lifekline"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Enabled reports whether a database is configured
func (c DBConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
	return FromEnv(), nil
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	var cfg Config

	cfg.LLMAPIKey = strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	cfg.LLMBaseURL = getEnvWithDefault("LLM_BASE_URL", DefaultBaseURL)
	cfg.LLMModel = getEnvWithDefault("LLM_MODEL", "gpt-4o-mini")
	cfg.LLMTemperature = getEnvFloatWithDefault("LLM_TEMPERATURE", 0.7)
	cfg.LLMMaxTokens = getEnvIntWithDefault("LLM_MAX_TOKENS", 8000)
	cfg.LLMRequestsPerS = getEnvIntWithDefault("LLM_REQUESTS_PER_SEC", 2)
	cfg.LLMMaxRetries = getEnvIntWithDefault("LLM_MAX_RETRIES", 0)
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 300)
	cfg.ChartCheck = getEnvWithDefault("CHART_CHECK", "correct")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")

	cfg.DB = DBConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "lifekline"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramBotUsername = os.Getenv("TELEGRAM_BOT_USERNAME")

	cfg.PaymentRequired = getEnvBoolWithDefault("PAYMENT_REQUIRED", false)
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	cfg.StripeReportPriceID = os.Getenv("STRIPE_REPORT_PRICE_ID")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")

	return &cfg
}

// Timeout returns RequestTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
