// Package extractors implements the post-detection analyzers that enrich a
// scan result once at least one HTTP response has been observed: the
// tracker matcher, the identifier-cookie/sync analyzer, and the
// privacy-policy follower.
//
// Grounded on original_source/.../extractors/{TrackerExtractor,
// CookieSyncExtractor,PrivacyPolicyExtractor}.py.
package extractors

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
)

// Context carries the per-phase inputs every extractor needs: the
// request/response log for this phase, the bridge bound to the current
// tab (for the privacy-policy follower's click/extraction), the detected
// page language, and the current wall time (passed in, since scans must
// not call time.Now directly per the transformation's determinism rule for
// anything that could break a cached replay - here it simply keeps cookie
// expiry comparisons testable with fixed fixtures).
type Context struct {
	Page     *pagestate.State
	Bridge   *remoteobject.Bridge
	Language string
	Now      time.Time
	Log      zerolog.Logger
}

// Extractor is the uniform capability every post-detection analyzer
// implements.
type Extractor interface {
	Name() string
	Extract(ec *Context, res *result.Result)
}
