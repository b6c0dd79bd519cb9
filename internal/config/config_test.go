// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

// -- Defaults Tests --

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Network.NavigationTimeout)
	assert.Equal(t, "https://www.vinted.com", cfg.Marketplace.BaseURL)
	assert.Equal(t, "/items/new", cfg.Marketplace.NewListingPath)
	assert.Equal(t, "/api/v2/brands", cfg.Marketplace.BrandEndpoint)
	assert.Equal(t, 20, cfg.Photos.MaxPhotos)
	assert.Equal(t, 2.0, cfg.Photos.DownloadRate)
}

func TestDefaultsProduceValidConfig(t *testing.T) {
	cfg := defaultConfig(t)
	assert.NoError(t, cfg.Validate(), "the default configuration must be runnable")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	base := defaultConfig(t)

	t.Run("InvalidBaseURL", func(t *testing.T) {
		cfg := base
		cfg.Marketplace.BaseURL = "not a url"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "marketplace.base_url")
	})

	t.Run("ListingPathWithoutSlash", func(t *testing.T) {
		cfg := base
		cfg.Marketplace.NewListingPath = "items/new"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "marketplace.new_listing_path")
	})

	t.Run("EmptyBrandEndpoint", func(t *testing.T) {
		cfg := base
		cfg.Marketplace.BrandEndpoint = ""
		assert.ErrorContains(t, cfg.Validate(), "marketplace.brand_endpoint")
	})

	t.Run("NoSuccessPatterns", func(t *testing.T) {
		cfg := base
		cfg.Marketplace.SuccessPatterns = nil
		assert.ErrorContains(t, cfg.Validate(), "marketplace.success_patterns")
	})

	t.Run("NonPositivePhotoCap", func(t *testing.T) {
		cfg := base
		cfg.Photos.MaxPhotos = 0
		assert.ErrorContains(t, cfg.Validate(), "photos.max_photos")
	})

	t.Run("NonPositiveTimeouts", func(t *testing.T) {
		cfg := base
		cfg.Network.NavigationTimeout = 0
		assert.ErrorContains(t, cfg.Validate(), "network.navigation_timeout")

		cfg = base
		cfg.Network.SignalTimeout = -time.Second
		assert.ErrorContains(t, cfg.Validate(), "network.signal_timeout")
	})
}

// -- File Loading Tests --

func TestConfigFromYAML(t *testing.T) {
	yaml := []byte(`
logger:
  level: debug
  format: json
browser:
  headless: false
marketplace:
  base_url: https://sandbox.vinted.test
photos:
  max_photos: 5
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "https://sandbox.vinted.test", cfg.Marketplace.BaseURL)
	assert.Equal(t, 5, cfg.Photos.MaxPhotos)

	// Untouched keys keep their defaults.
	assert.Equal(t, "/items/new", cfg.Marketplace.NewListingPath)
	assert.Equal(t, 45*time.Second, cfg.Network.NavigationTimeout)
}

// -- URL Helpers --

func TestNewListingURL(t *testing.T) {
	mc := MarketplaceConfig{BaseURL: "https://www.vinted.com/", NewListingPath: "/items/new"}
	assert.Equal(t, "https://www.vinted.com/items/new", mc.NewListingURL())

	mc.BaseURL = "https://www.vinted.com"
	assert.Equal(t, "https://www.vinted.com/items/new", mc.NewListingURL())
}
