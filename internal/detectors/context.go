// Package detectors implements the four interchangeable banner-detection
// strategies (filter-list, naive keyword, perceptive, classifier), each
// populating a named entry in a scan result.
//
// Grounded on original_source/.../detectors/{filter_list,naive,
// simple_perceptive,bert_classifier}.py.
package detectors

import (
	"image"

	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
)

// Context carries everything a detector needs from the scan controller: the
// bridge bound to the current tab, the document-level handle used for
// page-global scripts, the configured resolution, the scan URL's host (for
// filter-list applicability), and a lazily-invoked full-page screenshot
// func shared across detectors that need one.
type Context struct {
	Bridge         *remoteobject.Bridge
	DocumentHandle remoteobject.Handle
	Resolution     properties.Resolution
	Domain         string
	Language       string
	ShowResults    bool
	Log            zerolog.Logger

	// Screenshot captures (or returns a cached copy of) the current
	// full-page screenshot. Detectors that mutate the page (perceptive's
	// image removal) call it again to get a fresh one.
	Screenshot func() (image.Image, error)
}

// Detector is the uniform capability every banner-detection strategy
// implements: given a context and the shared result, append findings keyed
// by the detector's own name. Detect has no error return - per the design's
// detector-internal error policy, a detector that fails records nothing and
// the scan continues, so that policy cannot be bypassed by a caller
// forgetting to check an error.
type Detector interface {
	Name() string
	Detect(dc *Context, res *result.Result)
}
