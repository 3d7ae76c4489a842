// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/gplay-aso/internal/clock/system"
	"github.com/JakeFAU/gplay-aso/internal/metrics"
	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// DefaultBaseURL is the storefront detail endpoint.
const DefaultBaseURL = "https://play.google.com/store/apps/details"

const defaultTimeout = 30 * time.Second

// Sleeper blocks between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Pacer throttles outbound requests before they are sent.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls collector behavior.
type Config struct {
	BaseURL string
}

// Fetcher implements scraper.Fetcher using the Colly collector. Transports
// are pooled per proxy and impersonation setting and reused across calls.
type Fetcher struct {
	cfg     Config
	sleeper Sleeper
	pacer   Pacer
	logger  *zap.Logger

	mu         sync.Mutex
	transports map[string]*http.Transport
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleeper replaces the wall-clock sleeper used between retries.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) {
		f.sleeper = s
	}
}

// WithPacer throttles every attempt through p.
func WithPacer(p Pacer) Option {
	return func(f *Fetcher) {
		f.pacer = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// New builds a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	f := &Fetcher{
		cfg:        cfg,
		sleeper:    system.New(),
		logger:     zap.NewNop(),
		transports: make(map[string]*http.Transport),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// attemptResult is the outcome of a single GET.
type attemptResult struct {
	page       scraper.RawPage
	err        error
	retryAfter time.Duration
}

// Fetch retrieves the storefront page for appID, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, appID string, rc scraper.RequestConfig) (scraper.RawPage, error) {
	target, err := f.detailURL(appID, rc)
	if err != nil {
		return scraper.RawPage{}, scraper.NewNetwork(appID, err)
	}
	transport, err := f.transport(rc)
	if err != nil {
		return scraper.RawPage{}, scraper.NewNetwork(appID, err)
	}

	policy := newRetryPolicy(rc.Retries, rc.RateLimitDelay)
	logger := f.logger.With(zap.String("app_id", appID))

	var (
		lastErr     error
		rateLimited bool
		attempt     int
	)
	for attempt = 1; attempt <= policy.maxAttempts; attempt++ {
		if f.pacer != nil {
			if err := f.pacer.Wait(ctx, target); err != nil {
				return scraper.RawPage{}, scraper.NewNetwork(appID, err)
			}
		}

		start := time.Now()
		res := f.fetchOnce(ctx, transport, target, rc)
		res.page.AppID = appID
		decision := classify(res)
		metrics.ObserveFetch(decision.outcome, time.Since(start))

		switch decision.action {
		case actionDone:
			logger.Debug("storefront page fetched",
				zap.Int("attempt", attempt),
				zap.Int("status_code", res.page.StatusCode),
				zap.Int("bytes", len(res.page.Body)),
			)
			return res.page, nil
		case actionNotFound:
			logger.Info("storefront listing not found", zap.Int("status_code", res.page.StatusCode))
			return scraper.RawPage{}, scraper.NewAppNotFound(appID)
		case actionFail:
			logger.Warn("storefront fetch failed", zap.Int("attempt", attempt), zap.Error(decision.err))
			return scraper.RawPage{}, scraper.NewNetwork(appID, decision.err)
		}

		lastErr = decision.err
		rateLimited = decision.action == actionRateLimited
		if ctx.Err() != nil {
			return scraper.RawPage{}, scraper.NewNetwork(appID, ctx.Err())
		}
		if attempt == policy.maxAttempts {
			break
		}

		wait := policy.Backoff(rateLimited, res.retryAfter)
		if rateLimited {
			metrics.ObserveRateLimitWait()
		}
		logger.Warn("storefront fetch retrying",
			zap.Int("attempt", attempt),
			zap.Bool("rate_limited", rateLimited),
			zap.Duration("wait", wait),
			zap.Error(lastErr),
		)
		if err := f.sleeper.Sleep(ctx, wait); err != nil {
			return scraper.RawPage{}, scraper.NewNetwork(appID, err)
		}
	}

	if rateLimited {
		return scraper.RawPage{}, scraper.NewRateLimit(appID, policy.maxAttempts)
	}
	return scraper.RawPage{}, scraper.NewNetwork(appID, lastErr)
}

func (f *Fetcher) detailURL(appID string, rc scraper.RequestConfig) (string, error) {
	u, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("id", appID)
	if rc.Language != "" {
		q.Set("hl", rc.Language)
	}
	if rc.Country != "" {
		q.Set("gl", rc.Country)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CloseIdleConnections releases idle keep-alive connections held by every
// pooled transport.
func (f *Fetcher) CloseIdleConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transports {
		t.CloseIdleConnections()
	}
}

func (f *Fetcher) transport(rc scraper.RequestConfig) (*http.Transport, error) {
	key := transportKey(rc)
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.transports[key]; ok {
		return t, nil
	}
	t, err := newHTTPTransport(rc)
	if err != nil {
		return nil, err
	}
	f.transports[key] = t
	return t, nil
}

func transportKey(rc scraper.RequestConfig) string {
	schemes := make([]string, 0, len(rc.Proxies))
	for scheme, proxy := range rc.Proxies {
		schemes = append(schemes, strings.ToLower(scheme)+"="+proxy)
	}
	sort.Strings(schemes)
	return strings.Join([]string{rc.Proxy, strings.Join(schemes, ","), strings.ToLower(rc.Impersonate)}, "|")
}

func (f *Fetcher) buildCollector(ctx context.Context, transport http.RoundTripper, rc scraper.RequestConfig) *colly.Collector {
	collector := colly.NewCollector(colly.Async(false), colly.StdlibContext(ctx))
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.WithTransport(transport)
	if ua := rc.Headers.Get("User-Agent"); ua != "" {
		collector.UserAgent = ua
	}
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (f *Fetcher) fetchOnce(
	ctx context.Context,
	transport http.RoundTripper,
	target string,
	rc scraper.RequestConfig,
) attemptResult {
	collector := f.buildCollector(ctx, transport, rc)

	var result attemptResult
	collector.OnRequest(func(r *colly.Request) {
		copyHeaders(rc.Headers, r)
	})
	collector.OnResponse(func(r *colly.Response) {
		header := http.Header{}
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		result.page = scraper.RawPage{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       append([]byte(nil), r.Body...),
		}
		result.retryAfter = parseRetryAfter(header.Get("Retry-After"))
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		result.err = err
		if r != nil {
			result.page.StatusCode = r.StatusCode
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return attemptResult{err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if err != nil && result.err == nil {
			result.err = fmt.Errorf("colly visit failed: %w", err)
		}
		return result
	}
}

func copyHeaders(headers http.Header, r *colly.Request) {
	for key, values := range headers {
		if http.CanonicalHeaderKey(key) == "User-Agent" {
			continue
		}
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

// newHTTPTransport builds the pooled transport for one proxy and
// impersonation setting. Impersonation only applies to direct HTTPS
// connections; through a proxy the transport performs the TLS handshake itself.
func newHTTPTransport(rc scraper.RequestConfig) (*http.Transport, error) {
	proxy, err := proxyFunc(rc)
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	t := &http.Transport{
		Proxy:                 proxy,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if rc.Impersonate != "" {
		dialTLS, err := impersonatingDialer(rc.Impersonate, dialer.DialContext)
		if err != nil {
			return nil, err
		}
		t.DialTLSContext = dialTLS
		t.ForceAttemptHTTP2 = false
	}
	return t, nil
}
