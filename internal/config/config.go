// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Network     NetworkConfig     `mapstructure:"network" yaml:"network"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace" yaml:"marketplace"`
	Photos      PhotosConfig      `mapstructure:"photos" yaml:"photos"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`

	// Optional rotating log file. Empty disables file output.
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls the Chromium instance each attempt runs in.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	Args           []string      `mapstructure:"args" yaml:"args"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
}

// NetworkConfig bounds every wait the pipeline performs.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	SignalTimeout     time.Duration `mapstructure:"signal_timeout" yaml:"signal_timeout"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// MarketplaceConfig describes the target marketplace surface.
type MarketplaceConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// NewListingPath is the canonical URL segment of the listing-creation
	// page. It doubles as the page identity token the navigator re-checks
	// after every interaction.
	NewListingPath string `mapstructure:"new_listing_path" yaml:"new_listing_path"`

	// BrandEndpoint is the URL fragment of the brand-list fetch the page
	// issues after a category is selected; its arrival is the downstream
	// signal that the final taxonomy level was accepted.
	BrandEndpoint string `mapstructure:"brand_endpoint" yaml:"brand_endpoint"`

	// CatalogPath points at a versioned taxonomy catalog JSON. Empty loads
	// the embedded default catalog.
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`

	// SuccessPatterns are URL substrings that mark a completed submission
	// (listing-detail or catalog pages).
	SuccessPatterns []string `mapstructure:"success_patterns" yaml:"success_patterns"`
}

// PhotosConfig controls the photo ingestion subsystem.
type PhotosConfig struct {
	MaxPhotos       int           `mapstructure:"max_photos" yaml:"max_photos"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
	SettleWait      time.Duration `mapstructure:"settle_wait" yaml:"settle_wait"`
	DownloadRate    float64       `mapstructure:"download_rate" yaml:"download_rate"` // requests per second
	ScratchRoot     string        `mapstructure:"scratch_root" yaml:"scratch_root"`   // empty = os.TempDir
}

// SetDefaults registers every default value with viper. Call before
// viper.Unmarshal so partial config files still produce a runnable config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "relist")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.acquire_timeout", 60*time.Second)

	v.SetDefault("network.navigation_timeout", 45*time.Second)
	v.SetDefault("network.post_load_wait", 1500*time.Millisecond)
	v.SetDefault("network.signal_timeout", 10*time.Second)

	v.SetDefault("marketplace.base_url", "https://www.vinted.com")
	v.SetDefault("marketplace.new_listing_path", "/items/new")
	v.SetDefault("marketplace.brand_endpoint", "/api/v2/brands")
	v.SetDefault("marketplace.success_patterns", []string{"/items/", "/catalog"})

	v.SetDefault("photos.max_photos", 20)
	v.SetDefault("photos.download_timeout", 30*time.Second)
	v.SetDefault("photos.settle_wait", 2*time.Second)
	v.SetDefault("photos.download_rate", 2.0)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Marketplace.BaseURL); err != nil {
		return fmt.Errorf("marketplace.base_url is not a valid URL: %w", err)
	}
	if !strings.HasPrefix(c.Marketplace.NewListingPath, "/") {
		return fmt.Errorf("marketplace.new_listing_path must start with '/', got %q", c.Marketplace.NewListingPath)
	}
	if c.Marketplace.BrandEndpoint == "" {
		return fmt.Errorf("marketplace.brand_endpoint must not be empty")
	}
	if len(c.Marketplace.SuccessPatterns) == 0 {
		return fmt.Errorf("marketplace.success_patterns must contain at least one pattern")
	}
	if c.Photos.MaxPhotos <= 0 {
		return fmt.Errorf("photos.max_photos must be a positive integer")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be positive")
	}
	if c.Network.SignalTimeout <= 0 {
		return fmt.Errorf("network.signal_timeout must be positive")
	}
	return nil
}

// NewListingURL joins the base URL and the listing-creation path.
func (c *MarketplaceConfig) NewListingURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + c.NewListingPath
}
