package scan

import (
	"path/filepath"

	"github.com/cookiebanner/scanner/internal/extractors"
)

// buildExtractors returns the tracker matcher and identifier-cookie/sync
// extractors, in the order spec.md §4.4 lists them. The privacy-policy
// follower is not included here: it needs to navigate and click through
// the bridge, which the generic Extractor.Extract(ctx, res) contract
// doesn't carry, so the controller drives it directly in the
// privacy-policy state (§4.6 step 8).
func buildExtractors(storagePath string) []extractors.Extractor {
	var out []extractors.Extractor

	if catalogue, err := extractors.LoadCatalogue(filepath.Join(storagePath, "disconnect", "disconnect.json")); err == nil {
		out = append(out, extractors.Tracker{Catalogue: catalogue})
	} else {
		out = append(out, extractors.Tracker{})
	}
	out = append(out, extractors.CookieSync{})
	return out
}
