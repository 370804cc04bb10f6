// Package clickable implements discovery and property extraction for
// interactive elements inside a detected banner.
//
// Grounded on original_source/.../detectors/utils/clickable.py. The DOM
// inspection itself is delegated to small JavaScript snippets evaluated in
// the page's context through the remote-object bridge — per the
// these snippets
// are opaque blobs of text whose behaviour is specified here, not by their
// textual form.
package clickable

import (
	"image"
	"image/color"

	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
)

// discoverScript finds every descendant of the bound element whose
// computed cursor style is "pointer", then reduces that set to "covering"
// elements by dropping any whose parent is also in the set.
const discoverScript = `function(elem) {
	function getAllClickables(elem) {
		const childElements = Array.from(elem.querySelectorAll('*'));
		return childElements.filter(function(element) {
			return getComputedStyle(element).cursor === 'pointer';
		});
	}
	function findCoveringNodes(nodes) {
		var coveringNodes = [];
		for (var i = 0; i < nodes.length; i++) {
			var node = nodes[i];
			if (nodes.indexOf(node.parentNode) === -1) {
				coveringNodes.push(node);
			}
		}
		return coveringNodes;
	}
	if (!elem) elem = this;
	return findCoveringNodes(getAllClickables(elem));
}`

// propertiesScript extracts the structural fields needed to classify and
// describe one clickable: localName, outerHTML, text, fontsize, geometry,
// href, and the type-inference/checked logic.
const propertiesScript = `function(elem) {
	if (!elem) elem = this;
	var computedStyle = getComputedStyle(elem);

	var clickable = {};
	clickable.localName = elem.localName;
	clickable.html = elem.outerHTML;
	clickable.text = elem.innerText;
	clickable.fontsize = parseFloat(computedStyle.fontSize) || 0;
	clickable.width = elem.offsetWidth;
	clickable.height = elem.offsetHeight;
	clickable.x = elem.getBoundingClientRect().left;
	clickable.y = elem.getBoundingClientRect().top;
	clickable.backgroundColor = computedStyle.backgroundColor;
	if (elem.firstElementChild != null && elem.firstElementChild.innerText) {
		clickable.backgroundColor = getComputedStyle(elem.firstElementChild).backgroundColor;
	}

	clickable.type = 'button';
	clickable.checked = false;
	if (clickable.localName === 'a') {
		clickable.href = elem.href;
	}
	if (clickable.href) {
		try {
			var url = new URL(clickable.href);
			clickable.type = (url.pathname.indexOf('/') !== -1 && url.pathname.length > 2) ? 'link' : 'button';
		} catch (e) {
			clickable.type = 'button';
		}
	}

	function checkedOf(node) {
		if (node.checked !== undefined || ('ariaChecked' in node && node.ariaChecked !== null)) {
			return !!(node.checked || node.ariaChecked);
		}
		return null;
	}

	if (elem.hasChildNodes()) {
		for (var i = 0; i < elem.childNodes.length; i++) {
			var node = elem.childNodes[i];
			var checked = checkedOf(node);
			if (checked !== null) {
				clickable.type = 'checkbox';
				clickable.checked = checked;
				break;
			}
		}
	}
	var selfChecked = checkedOf(elem);
	if (selfChecked !== null) {
		clickable.type = 'checkbox';
		clickable.checked = selfChecked;
	}
	if (clickable.type !== 'checkbox' && clickable.type !== 'link') {
		clickable.type = 'button';
	}
	return clickable;
}`

// clickScript invokes .click() on the bound element and returns true once
// the call has run without throwing.
const clickScript = `function(elem) { if (!elem) elem = this; elem.click(); return true; }`

// modalityScript implements the eight-probe modality test: four corner and four edge-midpoint viewport points, margin 5px;
// any probe that falls inside the banner rectangle is skipped; modal iff
// every remaining probe's elementFromPoint hit is the same element.
const modalityScript = `function(bannerX, bannerY, bannerWidth, bannerHeight) {
	var margin = 5;
	var viewportWidth = document.documentElement.clientWidth;
	var viewportHeight = document.documentElement.clientHeight;
	var vCenter = viewportHeight / 2;

	var positions = [
		{x: margin, y: margin},
		{x: margin, y: vCenter},
		{x: margin, y: viewportHeight - margin},
		{x: viewportWidth / 2, y: margin},
		{x: viewportWidth / 2, y: viewportHeight - margin},
		{x: viewportWidth - margin, y: margin},
		{x: viewportWidth - margin, y: vCenter},
		{x: viewportWidth - margin, y: viewportHeight - margin},
	];

	positions = positions.filter(function(p) {
		return !(p.x >= bannerX && p.x <= bannerX + bannerWidth &&
			p.y >= bannerY && p.y <= bannerY + bannerHeight);
	});
	if (positions.length === 0) return true;

	var previous = document.elementFromPoint(positions[0].x, positions[0].y);
	for (var i = 1; i < positions.length; i++) {
		var current = document.elementFromPoint(positions[i].x, positions[i].y);
		if (current !== previous) return false;
		previous = current;
	}
	return true;
}`

// IsModal runs the eight-probe modality test against the page's current
// viewport for a banner rectangle, per general.py's is_page_modal. The
// rectangle is tested as given; IsModal does no clamping of its own, and
// callers pass width/height already resolved to pixel values.
func IsModal(b *remoteobject.Bridge, documentHandle remoteobject.Handle, x, y, width, height float64) bool {
	return boolOf(b.CallOnValue(documentHandle, modalityScript, x, y, width, height))
}

// Discover finds every covering clickable element inside the node bound by
// handle and returns their node identifiers.
func Discover(b *remoteobject.Bridge, handle remoteobject.Handle) []remoteobject.NodeID {
	resultHandle := b.CallOn(handle, discoverScript)
	return b.ArrayToNodeIDs(resultHandle)
}

// Properties extracts full properties of the clickable bound by handle. A
// zero-value (invisible) Clickable is returned if the DOM inspection
// failed, mirroring the original's dict.fromkeys fallback.
func Properties(b *remoteobject.Bridge, nodeID remoteobject.NodeID, handle remoteobject.Handle, screenshot image.Image, visible bool) result.Clickable {
	propsHandle := b.CallOn(handle, propertiesScript)
	values := b.ObjectToValueMap(propsHandle)
	if len(values) == 0 {
		return result.Clickable{NodeID: int64(nodeID), IsVisible: false}
	}

	c := result.Clickable{
		LocalName: stringOf(values["localName"]),
		OuterHTML: stringOf(values["html"]),
		Text:      stringOf(values["text"]),
		FontSize:  floatOf(values["fontsize"]),
		Width:     floatOf(values["width"]),
		Height:    floatOf(values["height"]),
		X:         floatOf(values["x"]),
		Y:         floatOf(values["y"]),
		Href:      stringOf(values["href"]),
		Checked:   boolOf(values["checked"]),
		Type:      result.ClickableType(stringOf(values["type"])),
		NodeID:    int64(nodeID),
		IsVisible: visible,
	}

	if visible && screenshot != nil {
		c.BackgroundColor = SampleBackgroundColor(screenshot, int(c.X), int(c.Y), int(c.Width), int(c.Height))
	} else {
		c.BackgroundColor = "rgb(255,255,255)"
	}
	return c
}

// Click invokes .click() on the node bound by handle. Returns false
// (rather than an error) on failure, matching the bridge's neutral-default
// policy.
func Click(b *remoteobject.Bridge, handle remoteobject.Handle) bool {
	if handle == "" {
		return false
	}
	return boolOf(b.CallOnValue(handle, clickScript))
}

// SampleBackgroundColor samples the page screenshot on a 5-pixel grid
// inside the rectangle (x,y,w,h) and returns the most frequent RGB triple
// as a CSS rgb(...) string, defaulting to white when no point could be
// sampled.
func SampleBackgroundColor(img image.Image, x, y, w, h int) string {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	for i := x + 1; i < x+w-2; i += 5 {
		for j := y + 1; j < y+h-2; j += 5 {
			if i >= bounds.Max.X || j >= bounds.Max.Y {
				break
			}
			r, g, bl, _ := img.At(i, j).RGBA()
			c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8)}
			counts[c]++
		}
	}

	best := color.RGBA{255, 255, 255, 255}
	bestCount := 0
	for c, n := range counts {
		if n > bestCount {
			best = c
			bestCount = n
		}
	}
	return rgbString(best)
}

func rgbString(c color.RGBA) string {
	return "rgb(" + itoa(int(c.R)) + "," + itoa(int(c.G)) + "," + itoa(int(c.B)) + ")"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
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

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}
