package config

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned for input that does not look like a web address.
var ErrInvalidURL = errors.New("invalid URL; enter an address such as https://example.com")

var urlPattern = regexp.MustCompile(`^https?://[\w\-.]+\.[a-zA-Z]{2,}`)

// NormalizeURL trims raw, prefixes https:// when no scheme is given and checks
// the result has a dotted host with an alphabetic top-level domain.
func NormalizeURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	if !urlPattern.MatchString(u) {
		return "", ErrInvalidURL
	}
	return u, nil
}
