// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/gplay-aso/internal/aso"
	"github.com/JakeFAU/gplay-aso/internal/cache"
	collyfetcher "github.com/JakeFAU/gplay-aso/internal/fetcher/colly"
	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	ASO     ASOConfig     `mapstructure:"aso"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the serve command's HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures storefront requests.
type HTTPConfig struct {
	Timeout           time.Duration     `mapstructure:"timeout"`
	Retries           int               `mapstructure:"retries"`
	RateLimitDelay    time.Duration     `mapstructure:"rate_limit_delay"`
	UserAgent         string            `mapstructure:"user_agent"`
	Impersonate       string            `mapstructure:"impersonate"`
	Proxy             string            `mapstructure:"proxy"`
	Proxies           map[string]string `mapstructure:"proxies"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
	Burst             int               `mapstructure:"burst"`
	BaseURL           string            `mapstructure:"base_url"`
	Language          string            `mapstructure:"language"`
	Country           string            `mapstructure:"country"`
}

// ASOConfig tunes the keyword report.
type ASOConfig struct {
	TopKeywords   int `mapstructure:"top_keywords"`
	MinWordLength int `mapstructure:"min_word_length"`
}

// CacheConfig sizes the in-process listing cache.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
	MaxSize int  `mapstructure:"max_size"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.rate_limit_delay", time.Second)
	v.SetDefault("http.user_agent", scraper.DefaultUserAgent)
	v.SetDefault("http.impersonate", scraper.DefaultImpersonate)
	v.SetDefault("http.proxy", "")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.base_url", "")
	v.SetDefault("http.language", "en")
	v.SetDefault("http.country", "us")
	v.SetDefault("aso.top_keywords", aso.DefaultTopKeywords)
	v.SetDefault("aso.min_word_length", aso.DefaultMinWordLength)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", cache.DefaultCapacity)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must be >= 0")
	}
	if c.HTTP.RateLimitDelay < 0 {
		return fmt.Errorf("http.rate_limit_delay must be >= 0")
	}
	if !collyfetcher.ValidImpersonation(c.HTTP.Impersonate) {
		return fmt.Errorf("http.impersonate %q must be empty or one of %s",
			c.HTTP.Impersonate, strings.Join(collyfetcher.Impersonations(), ", "))
	}
	if c.HTTP.Proxy != "" && len(c.HTTP.Proxies) > 0 {
		return fmt.Errorf("http.proxy and http.proxies: %w", scraper.ErrConflictingProxy)
	}
	if c.Cache.Enabled && c.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be > 0 when the cache is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// Scraper converts the loaded settings into the scraper's own config.
func (c Config) Scraper() scraper.Config {
	var proxies map[string]string
	if len(c.HTTP.Proxies) > 0 {
		proxies = make(map[string]string, len(c.HTTP.Proxies))
		for k, v := range c.HTTP.Proxies {
			proxies[k] = v
		}
	}
	return scraper.Config{
		Timeout:        c.HTTP.Timeout,
		Retries:        c.HTTP.Retries,
		RateLimitDelay: c.HTTP.RateLimitDelay,
		UserAgent:      c.HTTP.UserAgent,
		Impersonate:    c.HTTP.Impersonate,
		Proxy:          c.HTTP.Proxy,
		Proxies:        proxies,
		Language:       c.HTTP.Language,
		Country:        c.HTTP.Country,
		TopKeywords:    c.ASO.TopKeywords,
		MinWordLength:  c.ASO.MinWordLength,
		CacheEnabled:   c.Cache.Enabled,
		CacheMaxSize:   c.Cache.MaxSize,
	}
}
