package collyfetcher

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/gplay-aso/internal/metrics"
)

// MaxRetryAfter caps how long a server-provided Retry-After can stall a call.
const MaxRetryAfter = 30 * time.Second

type action int

const (
	actionDone action = iota
	actionNotFound
	actionRateLimited
	actionRetry
	actionFail
)

type decision struct {
	action  action
	outcome string
	err     error
}

// retryPolicy allows retries+1 attempts separated by a fixed delay.
type retryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

func newRetryPolicy(retries int, delay time.Duration) retryPolicy {
	if retries < 0 {
		retries = 0
	}
	if delay < 0 {
		delay = 0
	}
	return retryPolicy{maxAttempts: retries + 1, delay: delay}
}

// Backoff returns the wait before the next attempt. A throttled response may
// stretch it up to its Retry-After hint.
func (p retryPolicy) Backoff(rateLimited bool, retryAfter time.Duration) time.Duration {
	if rateLimited && retryAfter > p.delay {
		return min(retryAfter, MaxRetryAfter)
	}
	return p.delay
}

func classify(res attemptResult) decision {
	status := res.page.StatusCode
	switch {
	case status == http.StatusNotFound:
		return decision{action: actionNotFound, outcome: metrics.OutcomeNotFound}
	case status == http.StatusTooManyRequests,
		status == http.StatusServiceUnavailable && res.retryAfter > 0:
		return decision{
			action:  actionRateLimited,
			outcome: metrics.OutcomeRateLimited,
			err:     fmt.Errorf("throttled with status %d", status),
		}
	case res.err != nil:
		return decision{action: actionRetry, outcome: metrics.OutcomeError, err: res.err}
	case status >= 200 && status < 300:
		return decision{action: actionDone, outcome: metrics.OutcomeSuccess}
	case status == http.StatusRequestTimeout || status >= 500:
		return decision{action: actionRetry, outcome: metrics.OutcomeError, err: fmt.Errorf("unexpected status %d", status)}
	default:
		return decision{action: actionFail, outcome: metrics.OutcomeError, err: fmt.Errorf("unexpected status %d", status)}
	}
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
