package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
		"LLM_REQUESTS_PER_SEC", "LLM_MAX_RETRIES", "REQUEST_TIMEOUT", "CHART_CHECK",
		"DB_HOST", "DB_PORT", "PAYMENT_REQUIRED",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "", cfg.LLMAPIKey)
	assert.Equal(t, DefaultBaseURL, cfg.LLMBaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, 0.7, cfg.LLMTemperature)
	assert.Equal(t, 8000, cfg.LLMMaxTokens)
	assert.Equal(t, 0, cfg.LLMMaxRetries)
	assert.Equal(t, 300*time.Second, cfg.Timeout())
	assert.Equal(t, "correct", cfg.ChartCheck)
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.False(t, cfg.DB.Enabled())
	assert.False(t, cfg.PaymentRequired)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "  sk-abc  ")
	t.Setenv("LLM_BASE_URL", "https://proxy.example.com/v1/")
	t.Setenv("LLM_MAX_TOKENS", "not-a-number")
	t.Setenv("LLM_MAX_RETRIES", "2")
	t.Setenv("REQUEST_TIMEOUT", "60")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("PAYMENT_REQUIRED", "yes")

	cfg := FromEnv()

	assert.Equal(t, "sk-abc", cfg.LLMAPIKey)
	assert.Equal(t, "https://proxy.example.com/v1/", cfg.LLMBaseURL)
	assert.Equal(t, 8000, cfg.LLMMaxTokens)
	assert.Equal(t, 2, cfg.LLMMaxRetries)
	assert.Equal(t, time.Minute, cfg.Timeout())
	assert.True(t, cfg.DB.Enabled())
	assert.True(t, cfg.PaymentRequired)
}
