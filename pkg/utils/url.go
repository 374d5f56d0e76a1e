package utils

import (
	"regexp"
	"strings"
)

var (
	wwwPrefix    = regexp.MustCompile(`^(https?://)www\.`)
	schemePrefix = regexp.MustCompile(`^https?://`)
	pathSuffix   = regexp.MustCompile(`[/?#].*$`)
	portSuffix   = regexp.MustCompile(`:\d+$`)
)

// NormalizeURL lowercases, adds protocol if missing, removes common prefixes and trailing slash.
// Places results and logo suggestions format websites differently; compare them normalized.
func NormalizeURL(u string) string {
	n := strings.ToLower(strings.TrimSpace(u))
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, "http://") && !strings.HasPrefix(n, "https://") {
		n = "https://" + n
	}
	n = wwwPrefix.ReplaceAllString(n, "$1")
	return strings.TrimSuffix(n, "/")
}

// ExtractDomain returns just the host portion of a URL-like string, without port.
func ExtractDomain(u string) string {
	d := schemePrefix.ReplaceAllString(NormalizeURL(u), "")
	d = pathSuffix.ReplaceAllString(d, "")
	return portSuffix.ReplaceAllString(d, "")
}

// SameDomain reports whether two URL-like strings point at the same host.
func SameDomain(a, b string) bool {
	da, db := ExtractDomain(a), ExtractDomain(b)
	return da != "" && da == db
}
