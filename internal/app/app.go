// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/gplay-aso/internal/config"
	collyfetcher "github.com/JakeFAU/gplay-aso/internal/fetcher/colly"
	"github.com/JakeFAU/gplay-aso/internal/logging"
	"github.com/JakeFAU/gplay-aso/internal/metrics"
	"github.com/JakeFAU/gplay-aso/internal/parser"
	"github.com/JakeFAU/gplay-aso/internal/policy/ratelimit"
	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// App holds the configured scraper and the logger shared by every command.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	scraper *scraper.Scraper
	fetcher *collyfetcher.Fetcher
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	fetcher scraper.Fetcher
}

// WithLogger supplies a logger instead of building one from config.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFetcher replaces the colly fetcher, mainly for tests.
func WithFetcher(f scraper.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// New wires logger, fetcher, parser and scraper from cfg. It fails fast when
// any piece cannot be built.
func New(cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	metrics.Init()

	var owned *collyfetcher.Fetcher
	fetcher := o.fetcher
	if fetcher == nil {
		owned = newFetcher(cfg, logger)
		fetcher = owned
	}

	s, err := scraper.New(cfg.Scraper(), fetcher, parser.New(), scraper.WithLogger(logger.Named("scraper")))
	if err != nil {
		return nil, fmt.Errorf("init scraper: %w", err)
	}

	logger.Debug("application services initialized",
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Int("cache_max_size", cfg.Cache.MaxSize),
		zap.Float64("requests_per_second", cfg.HTTP.RequestsPerSecond),
		zap.String("impersonate", cfg.HTTP.Impersonate),
	)
	return &App{cfg: cfg, logger: logger, scraper: s, fetcher: owned}, nil
}

func newFetcher(cfg config.Config, logger *zap.Logger) *collyfetcher.Fetcher {
	fopts := []collyfetcher.Option{collyfetcher.WithLogger(logger.Named("fetcher"))}
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	if !limiter.Unlimited() {
		fopts = append(fopts, collyfetcher.WithPacer(limiter))
	}
	return collyfetcher.New(collyfetcher.Config{BaseURL: cfg.HTTP.BaseURL}, fopts...)
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Scraper returns the configured scraper.
func (a *App) Scraper() *scraper.Scraper {
	return a.scraper
}

// Close releases idle storefront connections and flushes buffered log entries.
func (a *App) Close() {
	if a.fetcher != nil {
		a.fetcher.CloseIdleConnections()
	}
	_ = a.logger.Sync()
}
