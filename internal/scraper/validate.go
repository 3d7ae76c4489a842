package scraper

import (
	"regexp"
	"strings"
)

// appIDPattern accepts reverse-domain package names: two or more dot-separated
// segments, each starting with a letter.
var appIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// ValidateAppID checks an app identifier before any cache or network access.
func ValidateAppID(appID string) error {
	if strings.TrimSpace(appID) == "" {
		return NewInvalidAppID(appID, "app id must not be empty")
	}
	if !appIDPattern.MatchString(appID) {
		return NewInvalidAppID(appID, "app id must be a package name like com.example.app")
	}
	return nil
}
