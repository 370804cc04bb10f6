package extractors

import (
	"math"
	"strings"
	"time"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/cookiebanner/scanner/internal/result"
)

// oneYear approximates "expires >= one year from now" per §4.4.
const oneYear = 365 * 24 * time.Hour

// CookieSync flags cookies that look like tracking identifiers and any
// outbound request that carries one, as a sync.
//
// Grounded on original_source/.../extractors/CookieSyncExtractor.py. The
// real, long-standing Go port of zxcvbn is used directly rather than a
// hand-rolled entropy estimator - see DESIGN.md.
type CookieSync struct{}

func (CookieSync) Name() string { return "cookie_syncs" }

func (CookieSync) Extract(ec *Context, res *result.Result) {
	var idCookies []result.Cookie
	for _, c := range res.Cookies {
		if isIDCookie(c, ec.Now) {
			idCookies = append(idCookies, c)
		}
	}
	res.IDCookies = idCookies
	res.IDCookieNum = len(idCookies)

	requests := ec.Page.Requests()
	var syncs []result.CookieSync
	for _, c := range idCookies {
		if len(c.Value) <= 10 {
			continue
		}
		score := zxcvbnLog10(c.Value)
		for _, req := range requests {
			if !strings.Contains(req.URL, c.Value) {
				continue
			}
			syncs = append(syncs, result.CookieSync{
				CookieValue: c.Value,
				SyncDomain:  hostOf(req.URL),
				SyncRequest: req.URL,
				Zxcvbn:      score,
			})
		}
	}
	res.CookieSyncs = syncs
	res.CookieSyncNum = len(syncs)
}

func isIDCookie(c result.Cookie, now time.Time) bool {
	if c.Value == "" {
		return false
	}
	if !c.Expires.IsZero() && !c.Expires.Before(now.Add(oneYear)) {
		return true
	}
	// The strength test compares the raw log10 guess count; the 1-coercion
	// below applies only to the score stored on the sync record.
	return rawZxcvbnLog10(c.Value) >= 9
}

func rawZxcvbnLog10(value string) float64 {
	match := zxcvbn.PasswordStrength(value, nil)
	return math.Log10(match.Guesses)
}

func zxcvbnLog10(value string) float64 {
	log10 := rawZxcvbnLog10(value)
	if math.IsInf(log10, 0) || math.IsNaN(log10) {
		return 1
	}
	return log10
}
