// Package visibility implements the recursive DOM visibility test used by
// every detector and by clickable discovery.
//
// Grounded on original_source/.../detectors/utils/node.py's is_node_visible
// (itself credited there to https://stackoverflow.com/a/41698614, adapted to
// recurse into child nodes so a zero-size fixed-position container whose
// content is visible still counts as visible) and get_node_name /
// is_script_or_style_node / get_text_of_node from the same file.
package visibility

import (
	"strings"

	"github.com/cookiebanner/scanner/internal/remoteobject"
)

// isVisibleScript is a direct port of node.py's isVisible. It returns either
// a boolean (not visible, including all descendants) or the DOM node that is
// actually visible — itself or the first visible descendant found by a
// pre-order walk.
const isVisibleScript = `function isVisible(elem) {
	function parseValue(value) {
		var parsedValue = parseInt(value);
		return isNaN(parsedValue) ? 0 : parsedValue;
	}

	if (!elem) elem = this;
	if (!(elem instanceof Element)) return false;
	var visible = true;
	var style = getComputedStyle(elem);

	if (style.display === 'none') return false;
	if (style.opacity < 0.1) return false;
	if (style.visibility !== 'visible') return false;

	if (elem.offsetWidth + elem.offsetHeight + elem.getBoundingClientRect().height +
		elem.getBoundingClientRect().width === 0) {
		visible = false;
	}
	if (elem.offsetWidth < 10 || elem.offsetHeight < 10) {
		visible = false;
	}
	var elemCenter = {
		x: elem.getBoundingClientRect().left + elem.offsetWidth / 2,
		y: elem.getBoundingClientRect().top + elem.offsetHeight / 2
	};
	if (elemCenter.x < 0) visible = false;
	if (elemCenter.x > (document.documentElement.clientWidth || window.innerWidth)) visible = false;
	if (elemCenter.y < 0) visible = false;
	if (elemCenter.y > (document.documentElement.clientHeight || window.innerHeight)) visible = false;

	if (visible) {
		var pointContainer = document.elementFromPoint(elemCenter.x, elemCenter.y);
		do {
			if (pointContainer === elem) return elem;
			if (!pointContainer) break;
		} while (pointContainer = pointContainer.parentNode);

		pointContainer = document.elementFromPoint(elemCenter.x, elemCenter.y - (parseValue(style.fontSize) / 2));
		do {
			if (pointContainer === elem) return elem;
			if (!pointContainer) break;
		} while (pointContainer = pointContainer.parentNode);
	}

	if (!visible) {
		var childrenCount = elem.childNodes.length;
		for (var i = 0; i < childrenCount; i++) {
			var isChildVisible = isVisible(elem.childNodes[i]);
			if (isChildVisible) return isChildVisible;
		}
	}

	return false;
}`

// nodeNameScript returns the lower-cased tag name of the bound element.
const nodeNameScript = `function(elem) { if (!elem) elem = this; return elem.localName ? elem.localName.toLowerCase() : null; }`

// textScript returns the rendered inner text of the bound element.
const textScript = `function(elem) { if (!elem) elem = this; return elem.innerText; }`

// Result is the outcome of a visibility test: either the node itself (or a
// visible descendant) is visible, or nothing is.
type Result struct {
	IsVisible bool
	// VisibleNode is the node actually found visible: the tested node
	// itself, or the first visible descendant, per node.py's fallback.
	// Zero if IsVisible is false.
	VisibleNode remoteobject.NodeID
}

// Check runs the recursive visibility test against the node bound by
// handle. The script never returns a bare `true`: it returns the visible
// element itself (an object, never a primitive) or `false`, so a Handle
// means "visible" regardless of whether the empty case came from an
// explicit false or from a failed/stale call — both are "not visible"
// under the bridge's neutral-default policy.
func Check(b *remoteobject.Bridge, handle remoteobject.Handle) Result {
	resultHandle := b.CallOn(handle, isVisibleScript)
	if resultHandle == "" {
		return Result{IsVisible: false}
	}
	nodeID := b.RequestNode(resultHandle)
	if nodeID == 0 {
		return Result{IsVisible: false}
	}
	return Result{IsVisible: true, VisibleNode: nodeID}
}

// NodeName returns the lower-cased tag name of the node bound by handle, or
// "" if it could not be determined.
func NodeName(b *remoteobject.Bridge, handle remoteobject.Handle) string {
	return stringOf(b.CallOnValue(handle, nodeNameScript))
}

// IsScriptOrStyleNode reports whether the node bound by handle is a <script>
// or <style> element — such nodes are excluded from banner-keyword and
// clickable scans.
func IsScriptOrStyleNode(b *remoteobject.Bridge, handle remoteobject.Handle) bool {
	name := strings.ToLower(NodeName(b, handle))
	return name == "script" || name == "style"
}

// TextOf returns the rendered inner text of the node bound by handle.
func TextOf(b *remoteobject.Bridge, handle remoteobject.Handle) string {
	return stringOf(b.CallOnValue(handle, textScript))
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
