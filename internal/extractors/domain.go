package extractors

import (
	"net/url"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// registeredDomain returns the registrable domain (e.g. "example.com" for
// "a.b.example.com") of rawURL's host, replacing tldextract's registered-
// domain extraction. Falls back to the bare hostname if parsing fails.
func registeredDomain(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil || domain == "" {
		return host
	}
	return domain
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
