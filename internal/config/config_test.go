package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicy(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		policy, err := LoadPolicy("", SurfaceStorefront)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultPricingPolicy(), policy)
	})

	t.Run("overrides per surface", func(t *testing.T) {
		path := writePolicy(t, `
storefront:
  free_delivery_threshold: 300000
satellite:
  delivery_fee: 0
  order_prefix: TG
`)

		storefront, err := LoadPolicy(path, SurfaceStorefront)
		require.NoError(t, err)
		assert.Equal(t, int64(300000), storefront.FreeDeliveryThreshold)
		assert.Equal(t, domain.DefaultPricingPolicy().DeliveryFee, storefront.DeliveryFee)
		assert.Equal(t, "VE", storefront.OrderPrefix)

		satellite, err := LoadPolicy(path, SurfaceSatellite)
		require.NoError(t, err)
		assert.Equal(t, int64(0), satellite.DeliveryFee)
		assert.Equal(t, "TG", satellite.OrderPrefix)
		assert.Equal(t, domain.DefaultPricingPolicy().FreeDeliveryThreshold, satellite.FreeDeliveryThreshold)
	})

	t.Run("rejects unknown sections", func(t *testing.T) {
		path := writePolicy(t, "admin:\n  delivery_fee: 1\n")
		_, err := LoadPolicy(path, SurfaceStorefront)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin")
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		path := writePolicy(t, "storefront:\n  delivery_fee: -5\n")
		_, err := LoadPolicy(path, SurfaceStorefront)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delivery_fee")
	})

	t.Run("reports a missing file", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"), SurfaceStorefront)
		require.Error(t, err)
	})
}

func TestLoadStorefront(t *testing.T) {
	t.Run("requires DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := LoadStorefront()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("reads settings", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/store")
		t.Setenv("PORT", "9000")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
		t.Setenv("POLICY_FILE", "")

		cfg, err := LoadStorefront()
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.HTTPAddr)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, domain.DefaultPricingPolicy(), cfg.Policy)
	})
}

func TestLoadSatellite(t *testing.T) {
	t.Run("applies interval defaults", func(t *testing.T) {
		t.Setenv("STOREFRONT_URL", "http://storefront:8080/")
		t.Setenv("SYNC_INTERVAL", "")
		t.Setenv("POLICY_FILE", "")

		cfg, err := LoadSatellite()
		require.NoError(t, err)
		assert.Equal(t, "http://storefront:8080", cfg.StorefrontURL)
		assert.Equal(t, 300*time.Second, cfg.SyncInterval)
		assert.Equal(t, 30*time.Second, cfg.PullTimeout)
		assert.Equal(t, 10*time.Second, cfg.PushTimeout)
		assert.Equal(t, time.Hour, cfg.CleanupInterval)
		assert.Equal(t, 100*time.Millisecond, cfg.BroadcastInterval)
		assert.Empty(t, cfg.KafkaBrokers)
	})

	t.Run("rejects malformed intervals", func(t *testing.T) {
		t.Setenv("STOREFRONT_URL", "http://storefront:8080")
		t.Setenv("SYNC_INTERVAL", "soon")

		_, err := LoadSatellite()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SYNC_INTERVAL")
	})

	t.Run("requires STOREFRONT_URL", func(t *testing.T) {
		t.Setenv("STOREFRONT_URL", "")
		_, err := LoadSatellite()
		require.Error(t, err)
	})
}
