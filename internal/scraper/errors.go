package scraper

import (
	"errors"
	"fmt"
)

// Kind tags a scraper failure so callers can branch on it.
type Kind string

// Error kinds surfaced by the scraper.
const (
	KindInvalidAppID Kind = "invalid_app_id"
	KindAppNotFound  Kind = "app_not_found"
	KindRateLimit    Kind = "rate_limit"
	KindNetwork      Kind = "network"
	KindDataParsing  Kind = "data_parsing"
)

// ErrScraper is matched by every *Error regardless of kind.
var ErrScraper = errors.New("gplay scraper error")

// Per-kind sentinels for errors.Is checks.
var (
	ErrInvalidAppID = errors.New("invalid app id")
	ErrAppNotFound  = errors.New("app not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrNetwork      = errors.New("network error")
	ErrDataParsing  = errors.New("data parsing error")
)

// ErrConflictingProxy is returned when both a single proxy and a proxy map are configured.
var ErrConflictingProxy = errors.New("proxy and proxies are mutually exclusive")

// ErrFieldNotFound is returned by GetField/GetFields for a field the page did not yield.
var ErrFieldNotFound = errors.New("field not found")

// Error is the single error type returned across the scraper boundary.
type Error struct {
	Kind  Kind
	AppID string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.AppID != "" {
		msg = fmt.Sprintf("%s (app %q)", msg, e.AppID)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrScraper and the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	if target == ErrScraper {
		return true
	}
	return kindSentinel(e.Kind) == target
}

func kindSentinel(k Kind) error {
	switch k {
	case KindInvalidAppID:
		return ErrInvalidAppID
	case KindAppNotFound:
		return ErrAppNotFound
	case KindRateLimit:
		return ErrRateLimited
	case KindNetwork:
		return ErrNetwork
	case KindDataParsing:
		return ErrDataParsing
	default:
		return nil
	}
}

// KindOf returns the kind of a scraper error found in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// NewInvalidAppID reports a malformed identifier.
func NewInvalidAppID(appID, msg string) *Error {
	return &Error{Kind: KindInvalidAppID, AppID: appID, Msg: msg}
}

// NewAppNotFound reports a missing storefront listing.
func NewAppNotFound(appID string) *Error {
	return &Error{Kind: KindAppNotFound, AppID: appID, Msg: "no storefront listing"}
}

// NewRateLimit reports throttling that outlasted every retry.
func NewRateLimit(appID string, attempts int) *Error {
	return &Error{
		Kind:  KindRateLimit,
		AppID: appID,
		Msg:   fmt.Sprintf("still rate limited after %d attempts", attempts),
	}
}

// NewNetwork wraps the last transport failure.
func NewNetwork(appID string, err error) *Error {
	return &Error{Kind: KindNetwork, AppID: appID, Msg: "fetch failed", Err: err}
}

// NewDataParsing reports page markup that no longer yields the expected fields.
func NewDataParsing(appID, msg string, err error) *Error {
	return &Error{Kind: KindDataParsing, AppID: appID, Msg: msg, Err: err}
}

// FieldError names the field that could not be resolved.
type FieldError struct {
	AppID string
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q not found for app %q", e.Field, e.AppID)
}

func (e *FieldError) Unwrap() error {
	return ErrFieldNotFound
}
