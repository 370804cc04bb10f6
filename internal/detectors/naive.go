package detectors

import (
	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// Naive implements the keyword-search detector: find a "cookie" mention,
// then walk up the DOM until a parent exposes a button clickable.
//
// Grounded on original_source/.../detectors/naive.py.
type Naive struct{}

func (Naive) Name() string { return "naive" }

func (Naive) Detect(dc *Context, res *result.Result) {
	cand, ok := searchAndGetCoordinates(dc.Bridge, dc.Resolution.Width, dc.Resolution.Height)
	if !ok {
		return
	}

	screenshot, _ := dc.Screenshot()

	handle := cand.handle
	nodeID := cand.nodeID
	for {
		prop := properties.Of(dc.Bridge, nodeID, handle, dc.DocumentHandle, screenshot, dc.Resolution)
		if hasButton(prop.Clickables) || visibility.NodeName(dc.Bridge, handle) == "body" {
			res.SetDetectorResult(Naive{}.Name(), []result.BannerProperty{prop})
			return
		}

		parent := parentOf(dc.Bridge, handle)
		if parent == "" {
			res.SetDetectorResult(Naive{}.Name(), []result.BannerProperty{prop})
			return
		}
		parentNodeID := dc.Bridge.RequestNode(parent)
		if parentNodeID == 0 {
			res.SetDetectorResult(Naive{}.Name(), []result.BannerProperty{prop})
			return
		}
		handle, nodeID = parent, parentNodeID
	}
}

func hasButton(clickables []result.Clickable) bool {
	for _, c := range clickables {
		if c.Type == result.ClickableButton {
			return true
		}
	}
	return false
}
