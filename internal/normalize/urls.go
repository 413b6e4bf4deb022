package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// domainExpr recognizes bare domain tokens ("www.example.com.br") that may
// safely have a scheme prepended. Plain words do not match and are rejected
// rather than coerced.
var domainExpr = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}(?:/[^\s]*)?$`)

// NormalizeURL rewrites raw so it begins with http:// or https://. Bare
// domains get https:// prepended; tokens that are not URL-shaped error.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if strings.ContainsAny(raw, " \t") {
		return "", fmt.Errorf("url contains whitespace: %q", raw)
	}

	lowered := strings.ToLower(raw)
	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("malformed url %q", raw)
		}
		return raw, nil
	}
	if strings.Contains(raw, "://") {
		return "", fmt.Errorf("unsupported scheme in %q", raw)
	}
	if !domainExpr.MatchString(raw) {
		return "", fmt.Errorf("not url-shaped: %q", raw)
	}
	candidate := "https://" + raw
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") {
		return "", fmt.Errorf("not url-shaped: %q", raw)
	}
	return candidate, nil
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
