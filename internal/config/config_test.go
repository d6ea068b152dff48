package config

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               "8080",
		DatabaseURL:        "postgres://localhost/monli",
		RedisAddr:          "localhost:6379",
		JWTSecret:          "0123456789abcdef",
		TokenTTL:           time.Hour,
		EventBroker:        "redis",
		RateLimitPerMinute: 60,
		RateLimitBurst:     10,
		BaseCurrency:       "IDR",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Port = "http" },
			wantErr: []string{"invalid port 'http'"},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = "70000" },
			wantErr: []string{"must be between 1 and 65535"},
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.JWTSecret = "" },
			wantErr: []string{"JWT_SECRET is required"},
		},
		{
			name:    "short secret",
			mutate:  func(c *Config) { c.JWTSecret = "short" },
			wantErr: []string{"at least 16 characters"},
		},
		{
			name:    "unknown broker",
			mutate:  func(c *Config) { c.EventBroker = "nats" },
			wantErr: []string{"invalid event broker 'nats'"},
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *Config) { c.EventBroker = "kafka"; c.KafkaBrokers = nil },
			wantErr: []string{"KAFKA_BROKERS cannot be empty"},
		},
		{
			name:    "amqp wrong scheme",
			mutate:  func(c *Config) { c.AMQPURL = "http://rabbit"; c.AMQPExchange = "x"; c.AMQPQueue = "q" },
			wantErr: []string{"invalid AMQP URL scheme 'http'"},
		},
		{
			name:    "negative gold price",
			mutate:  func(c *Config) { c.GoldPricePerGram = decimal.NewFromInt(-1) },
			wantErr: []string{"metal prices cannot be negative"},
		},
		{
			name: "errors are aggregated",
			mutate: func(c *Config) {
				c.Port = "0"
				c.BaseCurrency = "RUPIAH"
				c.LogLevel = "trace"
			},
			wantErr: []string{"between 1 and 65535", "invalid base currency", "invalid log level 'trace'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "configuration validation failed:"))
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "a-very-long-secret-value")
	t.Setenv("LEDGER_BLOCK_NEGATIVE_TRANSFERS", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("GOLD_PRICE_PER_GRAM", "1500000.50")
	t.Setenv("BALANCE_CACHE_TTL", "30s")
	t.Setenv("BASE_CURRENCY", "usd")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.BlockNegativeTransfers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.GoldPricePerGram.Equal(decimal.RequireFromString("1500000.5")))
	assert.Equal(t, 30*time.Second, cfg.BalanceCacheTTL)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFallsBackOnGarbage(t *testing.T) {
	t.Setenv("REDIS_DB", "three")
	t.Setenv("REPORT_CACHE_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, time.Hour, cfg.ReportCacheTTL)
	assert.True(t, cfg.BlockNegativeTransfers)
}
