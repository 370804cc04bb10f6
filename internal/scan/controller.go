package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"time"

	"github.com/RadhiFadlillah/whatlanggo"
	"github.com/disintegration/imaging"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/detectors"
	"github.com/cookiebanner/scanner/internal/extractors"
	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/scanerr"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// Site runs the full scan of one site on w: setup, navigate, wait, baseline
// capture, detect, extract, priority-select, privacy-policy, click-replay,
// post-analysis, teardown (§4.6). It always returns a non-nil *result.Result
// — a terminal browser condition is recorded on the result's ChromeError
// field, not surfaced only through the error return. The error return
// carries a *scanerr.Error exclusively for conditions the caller (an
// external job queue, out of scope here) must classify with
// scanerr.Retryable before deciding to run the scan again.
//
// Grounded on original_source/.../pagescanner.py's scan method.
func Site(ctx context.Context, w *browser.Worker, in Input, opts Options, meta Meta, log zerolog.Logger) (*result.Result, error) {
	res := result.New(in.SiteURL, meta.WorkerID)
	log = log.With().Str("site_url", in.SiteURL).Int("worker_id", meta.WorkerID).Logger()

	pg := pagestate.New()
	tabCtx, cancelTab := w.NewTab()

	t, err := setupTab(tabCtx, cancelTab, opts, pg)
	if err != nil {
		cancelTab()
		return res, classify(res, scanerr.StartupProblem, err, meta, false)
	}

	navErr := navigateAndWait(t.ctx, in.SiteURL, opts)
	if navErr != nil {
		teardownTab(t, t.javascriptEnabled)
		code := classifyNavigationError(navErr)
		return res, classify(res, code, navErr, meta, false)
	}

	baselineShot, baselinePNG := captureScreenshot(t.ctx)
	res.Cookies = convertCookies(getAllCookies(t.ctx))
	res.Language = detectPageLanguage(t.bridge)

	if !pg.HasResponses() {
		teardownTab(t, t.javascriptEnabled)
		code := classifyUnreachable(pg)
		return res, classify(res, code, fmt.Errorf("no responses observed for %s", in.SiteURL), meta, false)
	}
	res.Reachable = true

	if opts.TakeScreenshots {
		res.AttachFile(screenshotName(in.SiteURL, "initial_page_load"), baselinePNG)
	}

	runDetectAndExtract(t, pg, opts, scanHostOf(in.SiteURL), res, log)

	res.TotalTrackerNum = res.DisconnectNum + res.CookieSyncNum
	res.TrackingBeforeAnyAction = res.TotalTrackerNum > 0
	if res.TrackingBeforeAnyAction {
		log.Info().Msg("trackers loaded without any user action")
	}

	preferred := selectPreferredDetector(res, opts.DetectorPriorities)
	res.PreferredDetector = preferred
	if preferred == "" || len(res.Detectors[preferred]) == 0 {
		log.Info().Msg("no cookie banner detected")
		teardownTab(t, t.javascriptEnabled)
		return res, nil
	}
	log.Info().Str("detector", preferred).Msg("preferred detector selected")

	if opts.TakeScreenshotsBannerOnly && baselineShot != nil {
		if png := cropBannerPNG(baselineShot, res.Detectors[preferred][0]); png != nil {
			res.AttachFile(screenshotName(in.SiteURL, "banner_only"), png)
		}
	}

	pg.Reset()

	if opts.ExtractPrivacyPolicy {
		runPrivacyPolicyState(t, opts, res, log)
		pg.Reset()
	}

	if opts.ClickClickables {
		if err := runClickReplay(ctx, w, t, opts, res, preferred, baselineShot, meta, log); err != nil {
			return res, err
		}
	} else {
		teardownTab(t, t.javascriptEnabled)
	}

	applyPostAnalysis(res, preferred)
	log.Info().Msg("page scan finished")
	return res, nil
}

// navigateAndWait drives the navigation and the fixed post-load settle
// delay, bounded by opts.Timeout. A context-deadline during navigation is
// reported to the caller as-is; classifyNavigationError turns it into the
// right ChromeError code.
func navigateAndWait(tabCtx context.Context, siteURL string, opts Options) error {
	navCtx, cancel := context.WithTimeout(tabCtx, opts.Timeout)
	defer cancel()
	if err := chromedp.Run(navCtx, chromedp.Navigate(siteURL)); err != nil {
		return err
	}
	waitCtx, cancelWait := context.WithTimeout(tabCtx, opts.Timeout)
	defer cancelWait()
	return chromedp.Run(waitCtx, chromedp.Sleep(opts.PageLoadDelay))
}

// classify decides whether code should be recorded on res now or merely
// signalled to the caller, per §4.6 step 2 / §7: on first try, a condition
// scanerr.Retryable accepts raises a retry signal without touching the
// result at all; otherwise (a later try, or a condition that is never
// retryable regardless of try count, such as banner_gone) it is recorded
// on res.ChromeError and the scan ends with reachable=false. The returned
// error always carries code so the caller can still classify it even when
// nothing was recorded on res.
func classify(res *result.Result, code scanerr.Code, cause error, meta Meta, postInteraction bool) error {
	if !scanerr.Retryable(code, meta.IsFirstTry, postInteraction) {
		res.ChromeError = code
		res.Reachable = false
	}
	return scanerr.New(code, cause)
}

// classifyNavigationError splits a navigation-phase failure into the
// source's TimeoutException/websocket-exception pair: a context deadline
// is always reported as "timeout" regardless of what was captured before
// it, while any other transport failure before the first interaction is
// websocket-exception-no-interaction.
func classifyNavigationError(navErr error) result.ChromeError {
	if errors.Is(navErr, context.DeadlineExceeded) {
		return result.ErrTimeout
	}
	return result.ErrWebsocketExceptionNoInteract
}

// classifyUnreachable distinguishes a DNS failure from an otherwise
// unreachable host using the first recorded failed request, per
// the DNSNotResolvedError/NotReachableError split after a response-less
// navigation.
func classifyUnreachable(pg *pagestate.State) result.ChromeError {
	failed := pg.FailedRequests()
	if len(failed) > 0 && failed[0].ErrorText == "net::ERR_NAME_NOT_RESOLVED" {
		return result.ErrDNSNotResolved
	}
	return result.ErrNotReachable
}

// scanHostOf returns the scan URL's full host, the value filter-list
// domain options are tested against — the source strips only the scheme,
// so a subdomain-scoped rule still applies when scanning that subdomain.
func scanHostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func registeredDomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil || domain == "" {
		return host
	}
	return domain
}

// detectPageLanguage runs the language detector over the document body's
// rendered text, per detect_language's use of the whole page rather than a
// single banner's text.
func detectPageLanguage(b *remoteobject.Bridge) string {
	text := visibility.TextOf(b, b.DocumentElement())
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if info.Lang == whatlanggo.Und {
		return ""
	}
	return info.Lang.Iso6391()
}

// captureScreenshot takes a full-page PNG screenshot of the current tab and
// decodes it for SSIM/background-color sampling use, returning both the
// decoded image and the raw bytes (the latter for attaching to the result).
func captureScreenshot(tabCtx context.Context) (image.Image, []byte) {
	var buf []byte
	if err := chromedp.Run(tabCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, nil
	}
	img, _, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, buf
	}
	return img, buf
}

// cropBannerPNG crops the full-page screenshot down to the banner's
// bounding rectangle and re-encodes it, for the banner-only screenshot
// variant. Returns nil if the rectangle is degenerate or falls outside the
// captured image.
func cropBannerPNG(shot image.Image, banner result.BannerProperty) []byte {
	w := int(bannerDim(banner.Width))
	h := int(bannerDim(banner.Height))
	if w <= 0 || h <= 0 {
		return nil
	}
	rect := image.Rect(int(banner.X), int(banner.Y), int(banner.X)+w, int(banner.Y)+h)
	rect = rect.Intersect(shot.Bounds())
	if rect.Empty() {
		return nil
	}

	cropped := imaging.Crop(shot, rect)
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil
	}
	return buf.Bytes()
}

func bannerDim(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func screenshotName(siteURL, stage string) string {
	host := registeredDomainOf(siteURL)
	if host == "" {
		host = "site"
	}
	return host + "_" + stage + ".png"
}

// convertCookies converts the browser's cookie jar into the result's
// trimmed Cookie shape, per _get_all_cookies. A session cookie (Expires ==
// -1) is recorded with the zero time rather than a sentinel.
func convertCookies(cookies []*network.Cookie) []result.Cookie {
	out := make([]result.Cookie, 0, len(cookies))
	for _, c := range cookies {
		rc := result.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			rc.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		out = append(out, rc)
	}
	return out
}

// selectPreferredDetector walks priorities in order and returns the first
// detector name that produced at least one banner, per _get_by_priority.
func selectPreferredDetector(res *result.Result, priorities []DetectorName) string {
	for _, name := range priorities {
		if len(res.Detectors[string(name)]) > 0 {
			return string(name)
		}
	}
	return ""
}

// runDetectAndExtract builds the enabled detectors and extractors and runs
// them once, passively, against the logs already captured by the
// navigation - this never drives further navigation or clicks, per
// _extract_information.
func runDetectAndExtract(t *tab, pg *pagestate.State, opts Options, host string, res *result.Result, log zerolog.Logger) {
	documentHandle := t.bridge.DocumentElement()
	resolution := properties.Resolution{Width: opts.ResolutionWidth, Height: opts.ResolutionHeight}

	var cachedShot image.Image
	dc := &detectors.Context{
		Bridge:         t.bridge,
		DocumentHandle: documentHandle,
		Resolution:     resolution,
		Domain:         host,
		Language:       res.Language,
		ShowResults:    opts.PerceptiveShowResults,
		Log:            log,
		Screenshot: func() (image.Image, error) {
			if cachedShot == nil {
				cachedShot, _ = captureScreenshot(t.ctx)
			}
			if cachedShot == nil {
				return nil, fmt.Errorf("scan: screenshot unavailable")
			}
			return cachedShot, nil
		},
	}
	for _, d := range buildDetectors(opts) {
		d.Detect(dc, res)
	}

	ec := &extractors.Context{
		Page:     pg,
		Bridge:   t.bridge,
		Language: res.Language,
		Now:      time.Now(),
		Log:      log,
	}
	for _, e := range buildExtractors(opts.StoragePath) {
		e.Extract(ec, res)
	}
}
