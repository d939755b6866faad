package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, PersistenceMemory, cfg.Persistence)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.StartOnline)
	assert.Zero(t, cfg.ProbeInterval())
	assert.Zero(t, cfg.CollectionTTLDuration(), "collections never expire unless configured")
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	t.Setenv("STOREFRONT_HTTP_PORT", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "invalid HTTP port")
}

func TestLoad_InvalidAPIURL(t *testing.T) {
	for _, raw := range []string{"localhost:3000", "ftp://cms.example.com", "http://"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("STOREFRONT_API_URL", raw)

			_, err := Load()
			assert.ErrorContains(t, err, "invalid storefront API URL")
		})
	}
}

func TestLoad_InvalidPersistence(t *testing.T) {
	t.Setenv("PERSISTENCE", "sqlite")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid persistence")
}

func TestLoad_InvalidSyncDelays(t *testing.T) {
	t.Setenv("SYNC_BASE_DELAY_MS", "5000")
	t.Setenv("SYNC_MAX_DELAY_MS", "1000")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid sync delays")
}

func TestLoad_InvalidBackoffFactor(t *testing.T) {
	t.Setenv("SYNC_BACKOFF_FACTOR", "0.5")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid sync backoff factor")
}

func TestLoad_NegativeCollectionTTL(t *testing.T) {
	t.Setenv("COLLECTION_TTL_HOURS", "-1")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid collection TTL")
}

func TestLoad_InvalidOTELSampleRate(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATE", "2.0")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid OTEL sample rate")
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestConfig_Derived(t *testing.T) {
	t.Setenv("SYNC_MAX_RETRIES", "5")
	t.Setenv("SYNC_BASE_DELAY_MS", "200")
	t.Setenv("SYNC_MAX_DELAY_MS", "2000")
	t.Setenv("SYNC_TIMEOUT_MS", "1500")
	t.Setenv("CB_TIMEOUT_SECONDS", "10")
	t.Setenv("POSTGRES_HOST", "pg.internal")
	t.Setenv("CONNECTIVITY_PROBE_SECONDS", "15")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("COLLECTION_TTL_HOURS", "48")

	cfg, err := Load()
	require.NoError(t, err)

	hc := cfg.HTTPClient()
	assert.Equal(t, 5, hc.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, hc.BaseDelay)
	assert.Equal(t, 2*time.Second, hc.MaxDelay)
	assert.Equal(t, 1500*time.Millisecond, hc.Timeout)
	assert.Equal(t, 2.0, hc.BackoffFactor)

	cb := cfg.CircuitBreaker()
	assert.Equal(t, "storefront-api", cb.Name)
	assert.Equal(t, 10*time.Second, cb.Timeout)

	pg := cfg.Postgres()
	assert.Equal(t, "pg.internal", pg.Host)
	assert.Contains(t, pg.DSN(), "@pg.internal:5432/storefront")

	assert.Equal(t, 15*time.Second, cfg.ProbeInterval())
	assert.Equal(t, 48*time.Hour, cfg.CollectionTTLDuration())

	tc := cfg.Tracing()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "storefront", tc.ServiceName)
	assert.Equal(t, "development", tc.Environment)
}
