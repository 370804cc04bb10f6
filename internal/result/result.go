// Package result defines the output record produced by a single site scan:
// per-detector banner findings, extractor output, per-click replay
// sub-records, and the binary-attachment side channel, plus the invariants
// that hold across them.
package result

import (
	"encoding/json"
	"strconv"
	"time"
)

// ChromeError classifies the terminal transport/browser condition a scan
// ended in. The zero value ("") means the scan reached a normal outcome.
type ChromeError string

const (
	ErrNone                        ChromeError = ""
	ErrTimeout                     ChromeError = "timeout"
	ErrStartupProblem              ChromeError = "startup-problem"
	ErrNotReachable                ChromeError = "not-reachable"
	ErrDNSNotResolved              ChromeError = "dns-not-resolved"
	ErrWebsocketExceptionInteract  ChromeError = "websocket-exception-interaction"
	ErrWebsocketExceptionNoInteract ChromeError = "websocket-exception-no-interaction"
	ErrBannerGone                  ChromeError = "banner_gone"
)

// BannerProperty describes one detected banner node: its markup, rendered
// text, geometry, inferred language, modality, and interactive children.
type BannerProperty struct {
	HTML       string      `json:"html"`
	HasID      bool        `json:"has_id"`
	HasClass   bool        `json:"has_class"`
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	FontSize   float64     `json:"fontsize"`
	Width      interface{} `json:"width"` // pixels; a viewport-filling "full" is replaced by the configured resolution
	Height     interface{} `json:"height"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Language   string      `json:"language"`
	IsModal    bool        `json:"is_page_modal"`
	NodeID     int64       `json:"node_id"`
	Clickables []Clickable `json:"clickables"`
}

// ClickableType enumerates the inferred interaction kind of a clickable.
type ClickableType string

const (
	ClickableButton   ClickableType = "button"
	ClickableLink     ClickableType = "link"
	ClickableCheckbox ClickableType = "checkbox"
)

// Clickable describes one discovered interactive element within a banner.
// TotalTrackerNum and SSIM are populated only after click-replay runs for
// this clickable.
type Clickable struct {
	LocalName       string        `json:"localName"`
	OuterHTML       string        `json:"outerHTML"`
	Text            string        `json:"text"`
	FontSize        float64       `json:"fontsize"`
	Width           float64       `json:"width"`
	Height          float64       `json:"height"`
	X               float64       `json:"x"`
	Y               float64       `json:"y"`
	Href            string        `json:"href"`
	Checked         bool          `json:"checked"`
	Type            ClickableType `json:"type"`
	BackgroundColor string        `json:"backgroundColor"`
	Role            string        `json:"role"`
	IsVisible       bool          `json:"is_visible"`
	NodeID          int64         `json:"node_id"`

	SSIM            *float64 `json:"ssim,omitempty"`
	TotalTrackerNum int      `json:"total_tracker_num,omitempty"`
}

// TrackerMatch is one hit against the tracker catalogue.
type TrackerMatch struct {
	URL        string `json:"url"`
	Category   string `json:"category"`
	Company    string `json:"company"`
	CompanyURL string `json:"company_url"`
	Domain     string `json:"domain"`
}

// CookieSync records an outbound request observed to carry an
// identifier-cookie value in its URL.
type CookieSync struct {
	CookieValue string  `json:"cookie_value"`
	SyncDomain  string  `json:"sync_domain"`
	SyncRequest string  `json:"sync_request"`
	Zxcvbn      float64 `json:"zxcvbn"`
}

// PrivacyPolicy is the extractor output produced when a privacy-policy
// clickable was located and followed.
type PrivacyPolicy struct {
	BodyHTML  string `json:"body_html"`
	BodyText  string `json:"body_text"`
	WordCount int    `json:"word_count"`
}

// Result is the per-site scan record: per-detector banner lists, the
// selected preferred detector, extractor output, analytics booleans, and
// per-click sub-records. Per-click sub-records are modelled as a map keyed
// by the stringified node identifier of the clickable that was activated,
// each holding its own nested Result — see the Clicks field.
type Result struct {
	SiteURL  string `json:"site_url"`
	WorkerID int    `json:"worker_id"`

	// Detectors maps detector name -> banner findings; a detector absent
	// from this map produced zero banners (it is never present with an
	// empty slice).
	Detectors          map[string][]BannerProperty `json:"-"`
	CookieNoticeCount  map[string]int              `json:"cookie_notice_count,omitempty"`
	PreferredDetector  string                      `json:"preferred_detector,omitempty"`
	Language           string                      `json:"language,omitempty"`

	Cookies      []Cookie       `json:"cookies,omitempty"`
	IDCookies    []Cookie       `json:"id_cookies,omitempty"`
	IDCookieNum  int            `json:"id_cookies_num"`
	CookieSyncs  []CookieSync   `json:"cookie_syncs,omitempty"`
	CookieSyncNum int           `json:"cookie_syncs_num"`
	Disconnect   []TrackerMatch `json:"disconnect,omitempty"`
	DisconnectNum int           `json:"disconnect_num"`

	PrivacyPolicy *PrivacyPolicy `json:"privacy_policy,omitempty"`

	// PrivacyPolicyRequestLog holds the URL of every request issued
	// between the privacy-policy click and the end of body extraction.
	PrivacyPolicyRequestLog []string `json:"privacy_policy_request_log,omitempty"`

	TotalTrackerNum int `json:"total_tracker_num"`

	ChromeError ChromeError `json:"chrome_error"`
	Reachable   bool        `json:"reachable"`

	TrackingBeforeAnyAction    bool `json:"TRACKING_BEFORE_ANY_ACTION"`
	ButtonsHaveDifferentColor  bool `json:"BUTTONS_HAVE_DIFFERENT_COLOR"`
	BannerPresentWithoutTrack  bool `json:"BANNER_PRESENT_WITHOUT_TRACKING"`
	SameSSIM                   bool `json:"SAME_SSIM"`
	SameSSIMButtons            []string `json:"SAME_SSIM_BUTTONS,omitempty"`

	// Clicks holds one nested Result per clicked clickable, keyed by the
	// stringified node identifier of that clickable as it appeared in the
	// preferred banner during the initial scan. Populated only when
	// click-replay ran and moved the un-replayed scan into InitialResult.
	Clicks map[string]*Result `json:"-"`

	// InitialResult holds the pre-replay scan once click-replay begins; see
	// a move-then-insert swap. Nil until replay
	// starts.
	InitialResult *Result `json:"initial_result,omitempty"`

	// Files is the binary-attachment side channel, keyed by filename.
	Files map[string][]byte `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Cookie is a captured browser cookie, trimmed to the fields the
// identifier-cookie detector and baseline capture need.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
}

// New returns a freshly initialised, empty Result for siteURL scanned by
// workerID.
func New(siteURL string, workerID int) *Result {
	return &Result{
		SiteURL:           siteURL,
		WorkerID:          workerID,
		Detectors:         make(map[string][]BannerProperty),
		CookieNoticeCount: make(map[string]int),
		Clicks:            make(map[string]*Result),
		Files:             make(map[string][]byte),
		CreatedAt:         time.Now(),
	}
}

// SetDetectorResult records the banners found by detector name, keeping
// CookieNoticeCount in lock-step: "
// cookie_notice_count[d] equals the length of result[d] for any detector d
// present." A detector that found nothing is omitted entirely rather than
// recorded with a zero count.
func (r *Result) SetDetectorResult(name string, banners []BannerProperty) {
	if len(banners) == 0 {
		return
	}
	r.Detectors[name] = banners
	r.CookieNoticeCount[name] = len(banners)
}

// BeginReplay copies the current (pre-replay) scan into InitialResult and
// gives r a fresh, empty Clicks map. The other top-level fields are not
// cleared: they keep their pre-replay values alongside InitialResult.
func (r *Result) BeginReplay() {
	snapshot := *r
	snapshot.InitialResult = nil
	snapshot.Clicks = nil
	r.InitialResult = &snapshot
	r.Clicks = make(map[string]*Result)
}

// AttachFile stores a binary artefact (typically a screenshot) under name.
func (r *Result) AttachFile(name string, data []byte) {
	if r.Files == nil {
		r.Files = make(map[string][]byte)
	}
	r.Files[name] = data
}

// resultAlias breaks the recursion a direct json.Marshal(*Result) would
// hit through MarshalJSON below.
type resultAlias Result

// MarshalJSON flattens Detectors and Clicks into the top-level mapping
// alongside the fixed fields, per §3: "a mapping with ordered updates" -
// every detector name and every replayed clickable's stringified node
// identifier is a first-class key of the same result object, not a nested
// field. NodeID-keyed entries are written after detector entries so a
// clickable's sub-result would only ever collide with a detector name, and
// no detector is ever named by a bare integer.
func (r *Result) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal((*resultAlias)(r))
	if err != nil {
		return nil, err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}

	for name, banners := range r.Detectors {
		raw, err := json.Marshal(banners)
		if err != nil {
			return nil, err
		}
		m[name] = raw
	}
	for nodeID, click := range r.Clicks {
		raw, err := json.Marshal(click)
		if err != nil {
			return nil, err
		}
		m[nodeID] = raw
	}

	return json.Marshal(m)
}

// NodeIDKey renders a node identifier as the string key used for
// Result.Clicks and its JSON-serialised form.
func NodeIDKey(nodeID int64) string {
	return strconv.FormatInt(nodeID, 10)
}
