package enrich

import (
	"net/url"
	"strings"
)

// DeriveHostname returns the lowercased, "www."-stripped hostname of rawURL,
// or "" if rawURL does not parse.
func DeriveHostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
