// Package properties computes the descriptive fields attached to every
// detected banner: geometry, rendered text, inferred language, modality,
// and the list of clickables found inside it.
//
// Grounded on original_source/.../detectors/utils/notice.py's
// get_properties_of_cookie_notice, including its ordering (discover
// clickables and dedupe before resolving geometry, clamp "full" width/
// height to the configured viewport resolution as soon as geometry is
// read, before the modality test uses it, and fall back to a
// field-present-but-empty record on any DOM failure rather than dropping
// the banner).
package properties

import (
	"image"

	"github.com/RadhiFadlillah/whatlanggo"

	"github.com/cookiebanner/scanner/internal/clickable"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// geometryScript extracts markup, text, font size, and geometry, reporting
// "full" for a dimension that fills the viewport so the caller can clamp it
// to the configured screenshot resolution rather than the live viewport.
const geometryScript = `function(elem) {
	if (!elem) elem = this;
	var style = getComputedStyle(elem);

	var width = elem.offsetWidth;
	if (width >= document.documentElement.clientWidth) width = 'full';
	var height = elem.offsetHeight;
	if (height >= document.documentElement.clientHeight) height = 'full';

	return {
		html: elem.outerHTML,
		has_id: elem.hasAttribute('id'),
		has_class: elem.hasAttribute('class'),
		id: elem.getAttribute('id'),
		text: elem.innerText,
		fontsize: parseFloat(style.fontSize) || 0,
		width: width,
		height: height,
		x: elem.getBoundingClientRect().left,
		y: elem.getBoundingClientRect().top,
	};
}`

// Resolution is the configured screenshot viewport size, used to clamp a
// "full"-width/height banner dimension to a concrete pixel value.
type Resolution struct {
	Width  int
	Height int
}

// Of computes the full BannerProperty for the node bound by handle,
// matching get_properties_of_cookie_notice: a failed DOM call yields a
// zero-value BannerProperty still carrying NodeID, rather than an error.
func Of(b *remoteobject.Bridge, nodeID remoteobject.NodeID, handle remoteobject.Handle, documentHandle remoteobject.Handle, screenshot image.Image, res Resolution) result.BannerProperty {
	clickables := discoverClickables(b, handle, screenshot)

	values := b.ObjectToValueMap(b.CallOn(handle, geometryScript))
	if len(values) == 0 {
		return result.BannerProperty{NodeID: int64(nodeID)}
	}

	width := clampDimension(values["width"], res.Width)
	height := clampDimension(values["height"], res.Height)
	x := floatOf(values["x"])
	y := floatOf(values["y"])

	prop := result.BannerProperty{
		HTML:     stringOf(values["html"]),
		HasID:    boolOf(values["has_id"]),
		HasClass: boolOf(values["has_class"]),
		ID:       stringOf(values["id"]),
		Text:     stringOf(values["text"]),
		FontSize: floatOf(values["fontsize"]),
		Width:    width,
		Height:   height,
		X:        x,
		Y:        y,
		NodeID:   int64(nodeID),
	}

	prop.Language = detectLanguage(prop.Text)
	prop.IsModal = clickable.IsModal(b, documentHandle, x, y, floatOf(width), floatOf(height))
	prop.Clickables = clickables
	return prop
}

func discoverClickables(b *remoteobject.Bridge, handle remoteobject.Handle, screenshot image.Image) []result.Clickable {
	nodeIDs := clickable.Discover(b, handle)
	seen := make(map[remoteobject.NodeID]bool, len(nodeIDs))
	var out []result.Clickable
	for _, id := range nodeIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		childHandle := b.ResolveNode(id)
		vis := visibility.Check(b, childHandle)
		if !vis.IsVisible {
			continue
		}
		out = append(out, clickable.Properties(b, id, childHandle, screenshot, true))
	}
	return out
}

func detectLanguage(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Lang == -1 {
		return ""
	}
	return info.Lang.Iso6391()
}

func clampDimension(v any, resolution int) any {
	if s, ok := v.(string); ok && s == "full" {
		return float64(resolution)
	}
	return v
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
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
