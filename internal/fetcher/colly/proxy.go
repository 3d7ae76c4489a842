package collyfetcher

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/gplay-aso/internal/scraper"
)

// proxyFunc resolves the request config's proxy settings into a transport
// Proxy function. With neither set, the environment decides.
func proxyFunc(rc scraper.RequestConfig) (func(*http.Request) (*url.URL, error), error) {
	switch {
	case rc.Proxy != "" && len(rc.Proxies) > 0:
		return nil, scraper.ErrConflictingProxy
	case rc.Proxy != "":
		u, err := parseProxyURL(rc.Proxy)
		if err != nil {
			return nil, err
		}
		return http.ProxyURL(u), nil
	case len(rc.Proxies) > 0:
		byScheme := make(map[string]*url.URL, len(rc.Proxies))
		for scheme, raw := range rc.Proxies {
			u, err := parseProxyURL(raw)
			if err != nil {
				return nil, err
			}
			byScheme[strings.ToLower(scheme)] = u
		}
		return func(req *http.Request) (*url.URL, error) {
			if u, ok := byScheme[req.URL.Scheme]; ok {
				return u, nil
			}
			if u, ok := byScheme["all"]; ok {
				return u, nil
			}
			return nil, nil
		}, nil
	default:
		return http.ProxyFromEnvironment, nil
	}
}

func parseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy url %q must include scheme and host", raw)
	}
	return u, nil
}
