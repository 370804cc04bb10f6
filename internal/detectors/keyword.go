package detectors

import (
	"strings"

	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// cookieXPath is a case-insensitive XPath search for the literal string
// "cookie" in text nodes, returning the parent element of each match
// directly (script/style parents are filtered out by the caller).
const cookieXPath = `//text()[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'cookie')]/parent::*`

const geomScript = `function(elem) {
	if (!elem) elem = this;
	var r = elem.getBoundingClientRect();
	return {x: r.left, y: r.top, width: elem.offsetWidth, height: elem.offsetHeight};
}`

const parentScript = `function(elem) { if (!elem) elem = this; return elem.parentElement; }`

// candidate is one keyword-search hit with enough geometry to apply the
// off-viewport/word-count rejection rules.
type candidate struct {
	nodeID    remoteobject.NodeID
	handle    remoteobject.Handle
	x, y      float64
	wordCount int
}

// searchAndGetCoordinates runs the cookie XPath search (bracketed by
// pausing and resuming script execution), rejects off-viewport and
// short-text candidates, and returns the surviving candidate with the
// highest word count. ok is false if no candidate survives.
//
// Grounded on notice.py's search_and_get_coordinates/search_for_string,
// shared by the naive and perceptive detectors (simple_perceptive.py reuses
// the same seed selection before its own contour walk).
func searchAndGetCoordinates(b *remoteobject.Bridge, width, height int) (candidate, bool) {
	b.SetScriptExecutionDisabled(true)
	nodeIDs := b.SearchXPath(cookieXPath)
	b.SetScriptExecutionDisabled(false)

	var best candidate
	found := false
	for _, id := range nodeIDs {
		handle := b.ResolveNode(id)
		if handle == "" || visibility.IsScriptOrStyleNode(b, handle) {
			continue
		}
		geom, ok := b.CallOnValue(handle, geomScript).(map[string]any)
		if !ok {
			continue
		}
		x := floatOf(geom["x"])
		y := floatOf(geom["y"])
		if (x == 0 && y == 0) || x >= float64(width) || y >= float64(height) {
			continue
		}
		text := visibility.TextOf(b, handle)
		// Single-space split, not a whitespace-run split: the rejection
		// boundary counts the way the source's text.split(' ') does.
		words := len(strings.Split(text, " "))
		if words < 4 {
			continue
		}
		if !found || words > best.wordCount {
			best = candidate{nodeID: id, handle: handle, x: x, y: y, wordCount: words}
			found = true
		}
	}
	return best, found
}

// parentOf returns a handle to elem's parentElement, or "" at the root / on
// failure.
func parentOf(b *remoteobject.Bridge, handle remoteobject.Handle) remoteobject.Handle {
	return b.CallOn(handle, parentScript)
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
