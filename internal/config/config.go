// Package config binds scan.Options from defaults, an optional config file,
// and environment variables via viper. The core (internal/scan) never
// imports viper itself - it takes a plain Options value - so this package
// is the only place the ambient config stack and the domain model meet.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cookiebanner/scanner/internal/scan"
)

// envPrefix namespaces environment-variable overrides, e.g.
// COOKIESCAN_TIMEOUT, COOKIESCAN_DETECTORS_NAIVE.
const envPrefix = "cookiescan"

// Load builds a viper instance seeded with scan.DefaultOptions, optionally
// merges a config file at path (ignored if path is empty), applies
// environment overrides, and unmarshals the result into a scan.Options.
//
// Grounded on the ambient-stack requirement (the teacher reads flags
// straight into its capture.Options; no config-file layer exists there)
// - the viper-then-unmarshal idiom follows the viper usage seen elsewhere
// in the retrieved pack (see DESIGN.md).
func Load(path string) (scan.Options, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return scan.Options{}, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}
	return unmarshal(v)
}

// New returns a viper instance seeded with scan.DefaultOptions and wired
// for COOKIESCAN_-prefixed environment overrides, without reading any
// config file. Load builds its own instance with New, so settings made on
// an instance returned here do not reach Load.
func New() *viper.Viper {
	v := viper.New()

	defaults := scan.DefaultOptions()
	v.SetDefault("detectors", map[string]bool{
		string(scan.DetectorEasylistCookie):        defaults.Detectors[scan.DetectorEasylistCookie],
		string(scan.DetectorIDontCareAboutCookies): defaults.Detectors[scan.DetectorIDontCareAboutCookies],
		string(scan.DetectorNaive):                 defaults.Detectors[scan.DetectorNaive],
		string(scan.DetectorPerceptive):             defaults.Detectors[scan.DetectorPerceptive],
		string(scan.DetectorBert):                   defaults.Detectors[scan.DetectorBert],
	})
	names := make([]string, len(defaults.DetectorPriorities))
	for i, n := range defaults.DetectorPriorities {
		names[i] = string(n)
	}
	v.SetDefault("detector_priorities", names)
	v.SetDefault("disable_javascript", defaults.DisableJavascript)
	v.SetDefault("take_screenshots", defaults.TakeScreenshots)
	v.SetDefault("take_screenshots_banner_only", defaults.TakeScreenshotsBannerOnly)
	v.SetDefault("perceptive_show_results", defaults.PerceptiveShowResults)
	v.SetDefault("resolution_width", defaults.ResolutionWidth)
	v.SetDefault("resolution_height", defaults.ResolutionHeight)
	v.SetDefault("click_clickables", defaults.ClickClickables)
	v.SetDefault("extract_privacy_policy", defaults.ExtractPrivacyPolicy)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("page_load_delay", defaults.PageLoadDelay)
	v.SetDefault("random_user_agent", defaults.RandomUserAgent)
	v.SetDefault("old_kw_detection", defaults.OldKwDetection)
	v.SetDefault("save_logs", defaults.SaveLogs)
	v.SetDefault("storage_path", defaults.StoragePath)
	v.SetDefault("classifier_host", defaults.ClassifierHost)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func unmarshal(v *viper.Viper) (scan.Options, error) {
	var opts scan.Options
	if err := v.Unmarshal(&opts); err != nil {
		return scan.Options{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	// detector_priorities must preserve the order the source supplied -
	// viper's map decoding for `detectors` is fine (key-addressed), but
	// AutomaticEnv cannot override a slice element by index, which is an
	// accepted limitation of the env layer for this one field.
	return opts, nil
}
