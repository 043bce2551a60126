package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOW_STOCK_THRESHOLD", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Business.LowStockThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Business.IdempotencyTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PRODUCT_CACHE_TTL_SECONDS", "60")
	t.Setenv("LOW_STOCK_THRESHOLD", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Business.ProductCacheTTL)
	assert.Equal(t, 5, cfg.Business.LowStockThreshold)
}

func TestValidateRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	t.Setenv("ENV", "production")
	assert.Error(t, Load().Validate())

	t.Setenv("JWT_SECRET", "a-real-secret")
	assert.NoError(t, Load().Validate())

	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "")
	assert.NoError(t, Load().Validate())
}
