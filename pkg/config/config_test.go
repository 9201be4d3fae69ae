package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 24*time.Hour, cfg.Catalog.VolatilityWindow)
	assert.Equal(t, 30*time.Second, cfg.Catalog.SubmissionTimeout)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, "cloudnet-product", cfg.Storage.ProductBucket)
	assert.Equal(t, "cloudnet-product-volatile", cfg.Storage.VolatileBucket)
	assert.Equal(t, 1, cfg.IndexQueue.Workers)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("VOLATILITY_WINDOW", "48h")
	t.Setenv("STORAGE_DRIVER", "GCS")
	t.Setenv("DOWNLOAD_BASE_URL", "https://cloudnet.example/api/download/")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Catalog.VolatilityWindow)
	assert.Equal(t, StorageDriverGCS, cfg.Storage.Driver)
	assert.Equal(t, "https://cloudnet.example/api/download", cfg.Download.BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("SUBMISSION_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Catalog.SubmissionTimeout)
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "ftp")

	_, err := Load()
	require.Error(t, err)
}
