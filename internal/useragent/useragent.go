// Package useragent implements the random_user_agent scan option
// and the fallback "strip Headless" patch applied when
// rotation is disabled, grounded on
// original_source/.../user_agent_switching.py.
package useragent

import (
	"math/rand"
	"strings"
)

// pool is a small table of realistic desktop/mobile user-agent strings.
// Unlike the browser's own UA string, none of these advertise "Headless".
var pool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
}

// Random returns an entry picked uniformly from the pool.
func Random() string {
	return pool[rand.Intn(len(pool))]
}

// Patch strips the literal substring "Headless" from a browser-reported
// user-agent string when rotation is disabled, so the scan does not
// trivially announce itself as an automated headless client.
func Patch(ua string) string {
	return strings.ReplaceAll(ua, "Headless", "")
}

// Resolve picks the user-agent string for a scan per the random_user_agent
// option: a pooled string when enabled, otherwise the patched form of the
// browser-reported default.
func Resolve(randomUA bool, browserDefaultUA string) string {
	if randomUA {
		return Random()
	}
	return Patch(browserDefaultUA)
}
