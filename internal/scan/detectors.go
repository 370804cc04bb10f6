package scan

import (
	"os"
	"path/filepath"

	"github.com/cookiebanner/scanner/internal/detectors"
	"github.com/cookiebanner/scanner/internal/filterlist"
)

// configurationOrder is the fixed order detectors run in during the detect
// state, independent of detector_priorities (§4.6 step 5: "for each enabled
// detector, in configuration order (not priority order)").
var configurationOrder = []DetectorName{
	DetectorEasylistCookie,
	DetectorIDontCareAboutCookies,
	DetectorNaive,
	DetectorPerceptive,
	DetectorBert,
}

// buildDetectors returns the enabled detectors from opts, in configuration
// order, loading any on-disk dependencies (filter lists) they need. A
// filter list that fails to load is skipped rather than failing the scan,
// per the detector-internal error policy (§7): a missing/corrupt list
// simply yields zero selectors, which the filter-list detector already
// treats as "nothing matched".
func buildDetectors(opts Options) []detectors.Detector {
	var out []detectors.Detector
	for _, name := range configurationOrder {
		if !opts.Detectors[name] {
			continue
		}
		switch name {
		case DetectorEasylistCookie:
			if list, ok := loadFilterList(opts.StoragePath, "easylist-cookie.txt"); ok {
				out = append(out, detectors.FilterList{DetectorName: string(DetectorEasylistCookie), List: list})
			}
		case DetectorIDontCareAboutCookies:
			if list, ok := loadFilterList(opts.StoragePath, "i-dont-care-about-cookies.txt"); ok {
				out = append(out, detectors.FilterList{DetectorName: string(DetectorIDontCareAboutCookies), List: list})
			}
		case DetectorNaive:
			out = append(out, detectors.Naive{})
		case DetectorPerceptive:
			out = append(out, detectors.Perceptive{})
		case DetectorBert:
			out = append(out, detectors.Classifier{Host: opts.ClassifierHost})
		}
	}
	return out
}

func loadFilterList(storagePath, filename string) (*filterlist.List, bool) {
	path := filepath.Join(storagePath, "cookie_lists", filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	list, err := filterlist.Parse(f)
	if err != nil {
		return nil, false
	}
	return list, true
}
