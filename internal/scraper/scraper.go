// Package scraper fetches one storefront listing, caches the parsed fields and
// attaches an ASO keyword report.
//
// Control flow for every entry point: validate the app id, consult the cache,
// and on a miss fetch and parse the page and store the fields. The report is
// recomputed from the fields on every call; only the fields are cached.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/gplay-aso/internal/aso"
	"github.com/JakeFAU/gplay-aso/internal/cache"
	"github.com/JakeFAU/gplay-aso/internal/metrics"
)

// Fields every parsed listing carries.
const (
	TitleField       = "title"
	DescriptionField = "description"
)

// DefaultUserAgent is a desktop Chrome user agent string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/139.0.0.0 Safari/537.36"

// DefaultImpersonate is the browser TLS fingerprint presented by default.
const DefaultImpersonate = "chrome"

// Config holds the scraper's immutable settings.
type Config struct {
	Timeout        time.Duration
	Retries        int
	RateLimitDelay time.Duration
	UserAgent      string
	Impersonate    string
	Proxy          string
	Proxies        map[string]string
	Language       string
	Country        string
	TopKeywords    int
	MinWordLength  int
	CacheEnabled   bool
	CacheMaxSize   int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		Retries:        3,
		RateLimitDelay: time.Second,
		UserAgent:      DefaultUserAgent,
		Impersonate:    DefaultImpersonate,
		Language:       "en",
		Country:        "us",
		TopKeywords:    aso.DefaultTopKeywords,
		MinWordLength:  aso.DefaultMinWordLength,
		CacheEnabled:   true,
		CacheMaxSize:   cache.DefaultCapacity,
	}
}

// Validate rejects settings the scraper cannot run with.
func (c Config) Validate() error {
	if c.Proxy != "" && len(c.Proxies) > 0 {
		return ErrConflictingProxy
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.Retries < 0 {
		return errors.New("retries must be >= 0")
	}
	if c.RateLimitDelay < 0 {
		return errors.New("rate limit delay must be >= 0")
	}
	if c.CacheEnabled && c.CacheMaxSize <= 0 {
		return errors.New("cache max size must be > 0 when caching is enabled")
	}
	return nil
}

// RequestConfig derives what is forwarded to the Fetcher. Only the proxy
// setting actually supplied is populated.
func (c Config) RequestConfig() RequestConfig {
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	rc := RequestConfig{
		Timeout:        c.Timeout,
		Headers:        http.Header{"User-Agent": {ua}},
		Retries:        c.Retries,
		RateLimitDelay: c.RateLimitDelay,
		Language:       c.Language,
		Country:        c.Country,
		Impersonate:    c.Impersonate,
	}
	switch {
	case c.Proxy != "":
		rc.Proxy = c.Proxy
	case len(c.Proxies) > 0:
		rc.Proxies = make(map[string]string, len(c.Proxies))
		for k, v := range c.Proxies {
			rc.Proxies[k] = v
		}
	}
	return rc
}

// Scraper is the entry point for Analyze, GetField and GetFields.
type Scraper struct {
	fetcher  Fetcher
	parser   PageParser
	cache    Cache
	analyzer ReportBuilder
	request  RequestConfig
	logger   *zap.Logger
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scraper) {
		if l != nil {
			s.logger = l
		}
	}
}

// New wires a Scraper. It fails when cfg is invalid or a collaborator is missing.
func New(cfg Config, fetcher Fetcher, parser PageParser, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scraper config: %w", err)
	}
	if fetcher == nil || parser == nil {
		return nil, errors.New("fetcher and parser are required")
	}
	s := &Scraper{
		fetcher:  fetcher,
		parser:   parser,
		analyzer: aso.New(aso.Settings{TopKeywords: cfg.TopKeywords, MinWordLength: cfg.MinWordLength}),
		request:  cfg.RequestConfig(),
		logger:   zap.NewNop(),
	}
	if cfg.CacheEnabled {
		s.cache = cache.New[string, AppData](cfg.CacheMaxSize,
			cache.WithEvictHook[string, AppData](func(string) {
				metrics.ObserveCache(metrics.CacheEviction)
			}),
		)
	} else {
		s.cache = cache.NewNoop[string, AppData]()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Analyze returns the listing fields merged with the ASO report under "aso".
func (s *Scraper) Analyze(ctx context.Context, appID string) (Result, error) {
	data, err := s.appData(ctx, appID)
	if err != nil {
		return nil, err
	}
	result := Result(data.Clone())
	result[ReportKey] = s.report(data)
	return result, nil
}

// GetField returns one listing field. "aso" resolves to the report.
func (s *Scraper) GetField(ctx context.Context, appID, name string) (any, error) {
	data, err := s.appData(ctx, appID)
	if err != nil {
		return nil, err
	}
	return s.project(appID, data, name)
}

// GetFields returns the requested fields in the order given.
func (s *Scraper) GetFields(ctx context.Context, appID string, names []string) (Fields, error) {
	data, err := s.appData(ctx, appID)
	if err != nil {
		return nil, err
	}
	out := make(Fields, 0, len(names))
	for _, name := range names {
		v, err := s.project(appID, data, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Field{Name: name, Value: v})
	}
	return out, nil
}

// CacheStats reports cache counters, or false when caching is disabled or
// the cache does not keep statistics.
func (s *Scraper) CacheStats() (cache.Stats, bool) {
	type statser interface{ Stats() cache.Stats }
	if c, ok := s.cache.(statser); ok {
		return c.Stats(), true
	}
	return cache.Stats{}, false
}

func (s *Scraper) project(appID string, data AppData, name string) (any, error) {
	if name == ReportKey {
		return s.report(data), nil
	}
	v, ok := data[name]
	if !ok {
		return nil, &FieldError{AppID: appID, Field: name}
	}
	return v, nil
}

func (s *Scraper) report(data AppData) aso.Report {
	return s.analyzer.Report(data.String(TitleField), data.String(DescriptionField))
}

func (s *Scraper) appData(ctx context.Context, appID string) (AppData, error) {
	data, err := s.loadAppData(ctx, appID)
	if err != nil {
		kind, _ := KindOf(err)
		metrics.ObserveAnalysis(string(kind))
		return nil, err
	}
	metrics.ObserveAnalysis("ok")
	return data, nil
}

func (s *Scraper) loadAppData(ctx context.Context, appID string) (AppData, error) {
	if err := ValidateAppID(appID); err != nil {
		return nil, err
	}
	if data, ok := s.cache.Get(appID); ok {
		metrics.ObserveCache(metrics.CacheHit)
		s.logger.Debug("app data cache hit", zap.String("app_id", appID))
		return data, nil
	}
	metrics.ObserveCache(metrics.CacheMiss)

	page, err := s.fetcher.Fetch(ctx, appID, s.request)
	if err != nil {
		s.logger.Warn("fetch failed", zap.String("app_id", appID), zap.Error(err))
		if _, ok := KindOf(err); !ok {
			err = NewNetwork(appID, err)
		}
		return nil, err
	}

	data, err := s.parser.Parse(page)
	if err != nil {
		s.logger.Warn("parse failed", zap.String("app_id", appID), zap.Error(err))
		if _, ok := KindOf(err); !ok {
			err = NewDataParsing(appID, "parse page", err)
		}
		return nil, err
	}

	s.cache.Put(appID, data)
	s.logger.Info("app data fetched",
		zap.String("app_id", appID),
		zap.String("title", data.String(TitleField)),
		zap.Int("fields", len(data)),
	)
	return data, nil
}
