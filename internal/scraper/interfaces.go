package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/JakeFAU/gplay-aso/internal/aso"
)

// Fetcher retrieves the raw storefront page for an app.
type Fetcher interface {
	Fetch(ctx context.Context, appID string, cfg RequestConfig) (RawPage, error)
}

// PageParser turns raw storefront markup into named fields.
type PageParser interface {
	Parse(page RawPage) (AppData, error)
}

// Cache memoizes parsed app data by app id.
type Cache interface {
	Get(key string) (AppData, bool)
	Put(key string, value AppData)
}

// ReportBuilder computes the ASO report for parsed fields.
type ReportBuilder interface {
	Report(title, description string) aso.Report
}

// RequestConfig is forwarded verbatim to the Fetcher on every call.
// At most one of Proxy and Proxies is set. Impersonate names the browser
// whose TLS fingerprint the fetcher presents; empty disables it.
type RequestConfig struct {
	Timeout        time.Duration
	Headers        http.Header
	Proxy          string
	Proxies        map[string]string
	Retries        int
	RateLimitDelay time.Duration
	Language       string
	Country        string
	Impersonate    string
}

// RawPage is one fetched storefront document.
type RawPage struct {
	AppID      string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// AppData maps field names to extracted values.
type AppData map[string]any

// Clone returns a shallow copy so callers cannot mutate cached data.
func (d AppData) Clone() AppData {
	out := make(AppData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns a string field or "" when absent or not a string.
func (d AppData) String(name string) string {
	s, _ := d[name].(string)
	return s
}

// Field is one projected value from GetFields.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Fields preserves the caller's requested order.
type Fields []Field

// Map returns the fields keyed by name.
func (f Fields) Map() map[string]any {
	out := make(map[string]any, len(f))
	for _, field := range f {
		out[field.Name] = field.Value
	}
	return out
}

// Result is the merged output of Analyze: parsed fields plus the "aso" report.
type Result map[string]any

// ReportKey is the Result key holding the ASO report.
const ReportKey = "aso"
