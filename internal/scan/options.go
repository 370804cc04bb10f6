// Package scan implements the per-site scan controller: the eleven-state
// machine that owns one browser tab, drives navigation, runs the detector
// ensemble and extractors, and replays each clickable in the preferred
// banner.
//
// Grounded on original_source/.../pagescanner.py for the state sequencing
// and on the teacher's internal/capture/capture.go for the chromedp idiom
// (context-scoped tab acquisition, ListenTarget event dispatch,
// timeout-vs-hard-failure classification) - see DESIGN.md.
package scan

import "time"

// DetectorName identifies one of the four interchangeable banner-detection
// strategies by the same string used as its result key.
type DetectorName string

const (
	DetectorEasylistCookie      DetectorName = "easylist-cookie"
	DetectorIDontCareAboutCookies DetectorName = "i-dont-care-about-cookies"
	DetectorNaive               DetectorName = "naive"
	DetectorPerceptive          DetectorName = "perceptive"
	DetectorBert                DetectorName = "bert"
)

// Options is every scan-option field enumerated in spec.md §3. Defaults
// come from DefaultOptions below; internal/config layers a config file and
// environment overrides on top of them. This struct is a plain value the
// core takes as input, never importing viper itself.
type Options struct {
	Detectors map[DetectorName]bool `mapstructure:"detectors"`

	// DetectorPriorities is the ordered list of detector names; the first
	// enabled detector that produced a banner becomes preferred.
	DetectorPriorities []DetectorName `mapstructure:"detector_priorities"`

	DisableJavascript bool `mapstructure:"disable_javascript"`

	TakeScreenshots           bool `mapstructure:"take_screenshots"`
	TakeScreenshotsBannerOnly bool `mapstructure:"take_screenshots_banner_only"`
	PerceptiveShowResults     bool `mapstructure:"perceptive_show_results"`

	ResolutionWidth  int `mapstructure:"resolution_width"`
	ResolutionHeight int `mapstructure:"resolution_height"`

	ClickClickables      bool `mapstructure:"click_clickables"`
	ExtractPrivacyPolicy bool `mapstructure:"extract_privacy_policy"`

	Timeout       time.Duration `mapstructure:"timeout"`
	PageLoadDelay time.Duration `mapstructure:"page_load_delay"`

	RandomUserAgent bool `mapstructure:"random_user_agent"`

	// OldKwDetection is accepted and threaded through but has no
	// behavioural branch anywhere, matching the source - see
	// SPEC_FULL.md's Open Question decision 2.
	OldKwDetection bool `mapstructure:"old_kw_detection"`

	SaveLogs bool `mapstructure:"save_logs"`

	StoragePath string `mapstructure:"storage_path"`

	ClassifierHost string `mapstructure:"classifier_host"`
}

// DefaultOptions returns the baseline configuration every field of which
// internal/config may override.
func DefaultOptions() Options {
	return Options{
		Detectors: map[DetectorName]bool{
			DetectorEasylistCookie:        true,
			DetectorIDontCareAboutCookies: true,
			DetectorNaive:                 true,
			DetectorPerceptive:            true,
			DetectorBert:                  false,
		},
		DetectorPriorities: []DetectorName{
			DetectorEasylistCookie,
			DetectorIDontCareAboutCookies,
			DetectorNaive,
			DetectorPerceptive,
			DetectorBert,
		},
		TakeScreenshots:      true,
		ResolutionWidth:      1920,
		ResolutionHeight:     1080,
		ClickClickables:      true,
		ExtractPrivacyPolicy: true,
		Timeout:              30 * time.Second,
		PageLoadDelay:        5 * time.Second,
		StoragePath:          "storage",
		ClassifierHost:       "127.0.0.1:9999",
	}
}

// Input is the scan job entry point's input, per §6 ("scan_site(result,
// meta) -> content").
type Input struct {
	SiteURL string
}

// Meta carries the two fields the controller consumes from the external
// job queue: which worker is running this scan, and whether this is the
// first attempt (governs retry-vs-terminal classification).
type Meta struct {
	WorkerID   int
	IsFirstTry bool
}
