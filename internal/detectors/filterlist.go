package detectors

import (
	"strings"

	"github.com/cookiebanner/scanner/internal/filterlist"
	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// FilterList matches a parsed cosmetic filter list against the page domain
// and reports every visible matched node. The two named results
// ("easylist-cookie", "i-dont-care-about-cookies") are two independent
// FilterList instances in the controller's detector list - see DESIGN.md's
// Open Question decision against the source's early-return short-circuit
// between them.
//
// Grounded on original_source/.../detectors/filter_list.py.
type FilterList struct {
	DetectorName string
	List         *filterlist.List
}

func (f FilterList) Name() string { return f.DetectorName }

func (f FilterList) Detect(dc *Context, res *result.Result) {
	selectors := f.List.ApplicableSelectors(dc.Domain)
	if len(selectors) == 0 {
		return
	}

	query := `function() {
		try {
			return Array.from(document.querySelectorAll(` + jsStringLiteral(strings.Join(selectors, ", ")) + `));
		} catch (e) {
			return [];
		}
	}`
	handle := dc.Bridge.Evaluate("(" + query + ")()")
	nodeIDs := dc.Bridge.ArrayToNodeIDs(handle)
	if len(nodeIDs) == 0 {
		return
	}

	screenshot, _ := dc.Screenshot()

	var banners []result.BannerProperty
	for _, id := range nodeIDs {
		nodeHandle := dc.Bridge.ResolveNode(id)
		if nodeHandle == "" {
			continue
		}
		if !visibility.Check(dc.Bridge, nodeHandle).IsVisible {
			continue
		}
		banners = append(banners, properties.Of(dc.Bridge, id, nodeHandle, dc.DocumentHandle, screenshot, dc.Resolution))
	}
	res.SetDetectorResult(f.DetectorName, banners)
}

// jsStringLiteral renders s as a single-quoted JavaScript string literal,
// escaping backslashes, quotes, and newlines - selectors come from a parsed
// filter list, not user input, but are still embedded into a script body
// textually.
func jsStringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
