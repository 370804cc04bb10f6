package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/cookiebanner/scanner/internal/browser"
	"github.com/cookiebanner/scanner/internal/clickable"
	"github.com/cookiebanner/scanner/internal/detectors"
	"github.com/cookiebanner/scanner/internal/extractors"
	"github.com/cookiebanner/scanner/internal/imgcompare"
	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/scanerr"
)

// runPrivacyPolicyState looks up the preferred banner's privacy-policy
// clickable, follows it, and records the resulting body text and word
// count on res, per §4.6 step 8. Any failure along the way (no wording
// list for the detected language, no matching clickable, navigation
// failure) simply leaves res.PrivacyPolicy nil - this state never turns
// into a scan failure.
//
// Grounded on original_source/.../extractors/PrivacyPolicyExtractor.py's
// extract_information.
func runPrivacyPolicyState(t *tab, opts Options, res *result.Result, log zerolog.Logger) {
	banner, ok := preferredBanner(res)
	if !ok {
		return
	}

	keywords, ok := extractors.LoadWording(filepath.Join(opts.StoragePath, "privacy_wording.json"), res.Language)
	if !ok {
		return
	}

	target, ok := extractors.FindPrivacyPolicyClickable(banner, keywords)
	if !ok {
		return
	}

	if !extractors.ClickPrivacyPolicy(t.bridge, remoteobject.NodeID(target.NodeID)) {
		return
	}
	if err := waitForSettle(t.ctx, opts.PageLoadDelay); err != nil {
		return
	}

	policy, err := extractors.ExtractBody(t.bridge)
	if err != nil {
		log.Info().Err(err).Msg("could not extract privacy policy body")
		return
	}
	res.PrivacyPolicy = &policy

	for _, req := range t.page.Requests() {
		res.PrivacyPolicyRequestLog = append(res.PrivacyPolicyRequestLog, req.URL)
	}

	markPrivacyPolicyClickable(res, target.NodeID)

	if opts.TakeScreenshots {
		if _, png := captureScreenshot(t.ctx); png != nil {
			res.AttachFile(screenshotName(res.SiteURL, "privacy_policy"), png)
		}
	}
}

// markPrivacyPolicyClickable records role = "privacy policy" on the
// followed clickable wherever it appears in the preferred banner.
func markPrivacyPolicyClickable(res *result.Result, nodeID int64) {
	banners := res.Detectors[res.PreferredDetector]
	if len(banners) == 0 {
		return
	}
	for i := range banners[0].Clickables {
		if banners[0].Clickables[i].NodeID == nodeID {
			banners[0].Clickables[i].Role = "privacy policy"
			return
		}
	}
}

// preferredBanner returns the single banner (the source's
// fetch_single_element) that the preferred detector produced.
func preferredBanner(res *result.Result) (result.BannerProperty, bool) {
	banners := res.Detectors[res.PreferredDetector]
	if len(banners) == 0 {
		return result.BannerProperty{}, false
	}
	return banners[0], true
}

// runClickReplay replays every button clickable discovered in the
// preferred banner, each on a freshly reloaded tab, per §4.6 step 9. It
// snapshots the pre-replay scan into res.InitialResult via BeginReplay and
// files one per-button sub-record under res.Clicks. A banner that the
// preferred detector no longer finds on the reloaded tab, before that
// button is clicked (chrome_error = banner_gone), ends the loop and the
// scan immediately, matching the source's early return.
//
// Grounded on original_source/.../pagescanner.py's click_clickables block.
func runClickReplay(ctx context.Context, w *browser.Worker, t *tab, opts Options, res *result.Result, preferred string, baselineShot image.Image, meta Meta, log zerolog.Logger) error {
	if _, ok := preferredBanner(res); !ok {
		teardownTab(t, t.javascriptEnabled)
		return nil
	}

	clearBrowser(t.ctx, requestedURLsOf(t))
	teardownTab(t, t.javascriptEnabled)

	res.BeginReplay()
	res.SiteURL = res.InitialResult.SiteURL
	res.Language = res.InitialResult.Language

	banner := &res.InitialResult.Detectors[preferred][0]
	buttonIdx := make([]int, 0, len(banner.Clickables))
	for i, c := range banner.Clickables {
		if c.Type == result.ClickableButton {
			buttonIdx = append(buttonIdx, i)
		}
	}

	// interacted flips once the first button has actually been clicked;
	// from then on a transport crash is websocket-exception-interaction and
	// never retryable, because browser-side state is already mutated (§7).
	interacted := false

	for _, idx := range buttonIdx {
		button := banner.Clickables[idx]

		pg := pagestate.New()
		tabCtx, cancelTab := w.NewTab()
		nt, err := setupTab(tabCtx, cancelTab, opts, pg)
		if err != nil {
			cancelTab()
			return classify(res, websocketCode(interacted), err, meta, interacted)
		}

		replayOpts := opts
		replayOpts.TakeScreenshots = false
		replayOpts.TakeScreenshotsBannerOnly = false

		if navErr := navigateAndWait(nt.ctx, res.SiteURL, replayOpts); navErr != nil {
			teardownTab(nt, nt.javascriptEnabled)
			if errors.Is(navErr, context.DeadlineExceeded) {
				continue
			}
			return classify(res, websocketCode(interacted), navErr, meta, interacted)
		}

		sub := result.New(res.SiteURL, res.WorkerID)
		sub.Language = res.Language

		runSingleDetector(nt, preferred, replayOpts, scanHostOf(res.SiteURL), sub, log)

		reloadedBanner, ok := preferredBanner(sub)
		if !ok {
			teardownTab(nt, nt.javascriptEnabled)
			return classify(res, scanerr.BannerGone, fmt.Errorf("banner disappeared after interacting"), meta, true)
		}
		reloadedClickable, ok := findByText(reloadedBanner.Clickables, button.Text)
		if !ok {
			teardownTab(nt, nt.javascriptEnabled)
			continue
		}

		log.Info().Str("button", button.Text).Msg("clicking button")
		handle := nt.bridge.ResolveNode(remoteobject.NodeID(reloadedClickable.NodeID))
		clickAndWait(nt, handle, opts.PageLoadDelay)
		interacted = true

		sub.Cookies = convertCookies(getAllCookies(nt.ctx))
		ec := &extractors.Context{Page: pg, Bridge: nt.bridge, Language: sub.Language, Now: time.Now(), Log: log}
		for _, e := range buildExtractors(opts.StoragePath) {
			e.Extract(ec, sub)
		}
		sub.TotalTrackerNum = sub.DisconnectNum + sub.CookieSyncNum
		res.InitialResult.TotalTrackerNum += sub.TotalTrackerNum

		ssimShot, ssimPNG := captureScreenshot(nt.ctx)
		fileName := sanitizeFileName(button.Text)
		res.InitialResult.AttachFile(fileName+".png", ssimPNG)
		if baselineShot != nil && ssimShot != nil {
			score := imgcompare.Compare(baselineShot, ssimShot)
			banner.Clickables[idx].SSIM = &score
		}
		banner.Clickables[idx].TotalTrackerNum = sub.TotalTrackerNum

		res.Clicks[result.NodeIDKey(button.NodeID)] = sub

		clearBrowser(nt.ctx, requestedURLsOf(nt))
		teardownTab(nt, nt.javascriptEnabled)
	}

	return nil
}

// websocketCode picks the transport-crash classification by whether any
// button has been clicked yet (§7).
func websocketCode(interacted bool) scanerr.Code {
	if interacted {
		return scanerr.WebsocketExceptionInteract
	}
	return scanerr.WebsocketNoInteract
}

// runSingleDetector runs only the preferred detector (by configuration
// name) against a freshly loaded tab, per _load_detector_modules - the
// reduced detector set click-replay uses so each reload only re-verifies
// the one banner strategy that already won, rather than the full ensemble.
func runSingleDetector(nt *tab, preferred string, opts Options, host string, sub *result.Result, log zerolog.Logger) {
	single := opts
	single.Detectors = map[DetectorName]bool{DetectorName(preferred): true}
	documentHandle := nt.bridge.DocumentElement()
	resolution := properties.Resolution{Width: opts.ResolutionWidth, Height: opts.ResolutionHeight}

	var cachedShot image.Image
	dc := &detectors.Context{
		Bridge:         nt.bridge,
		DocumentHandle: documentHandle,
		Resolution:     resolution,
		Domain:         host,
		Language:       sub.Language,
		ShowResults:    opts.PerceptiveShowResults,
		Log:            log,
		Screenshot: func() (image.Image, error) {
			if cachedShot == nil {
				cachedShot, _ = captureScreenshot(nt.ctx)
			}
			if cachedShot == nil {
				return nil, fmt.Errorf("scan: screenshot unavailable")
			}
			return cachedShot, nil
		},
	}
	for _, d := range buildDetectors(single) {
		d.Detect(dc, sub)
	}
}

// applyPostAnalysis computes BUTTONS_HAVE_DIFFERENT_COLOR,
// BANNER_PRESENT_WITHOUT_TRACKING, SAME_SSIM and SAME_SSIM_BUTTONS on
// whichever record is now "final": res.InitialResult if replay ran, or res
// itself otherwise. Both branches of the source are structurally
// identical except for which record they read and write, so this is a
// single helper operating on a chosen target.
func applyPostAnalysis(res *result.Result, preferred string) {
	target := res
	if res.InitialResult != nil {
		target = res.InitialResult
	}

	if target.TotalTrackerNum == 0 && len(target.CookieNoticeCount) > 0 {
		target.BannerPresentWithoutTrack = true
	}

	banner, ok := preferredBanner(target)
	if !ok {
		return
	}
	buttons := filterByType(banner.Clickables, result.ClickableButton)
	if len(buttons) == 0 {
		return
	}

	first := buttons[0].BackgroundColor
	for _, b := range buttons {
		if b.BackgroundColor != first {
			target.ButtonsHaveDifferentColor = true
		}
	}

	same := clickablesWithSameSSIM(buttons)
	if len(same) > 0 {
		target.SameSSIM = true
		target.SameSSIMButtons = same
	}
}

func filterByType(clickables []result.Clickable, kind result.ClickableType) []result.Clickable {
	var out []result.Clickable
	for _, c := range clickables {
		if c.Type == kind {
			out = append(out, c)
		}
	}
	return out
}

// findByText returns the first clickable in clickables whose text matches
// text exactly, per get_by_text.
func findByText(clickables []result.Clickable, text string) (result.Clickable, bool) {
	for _, c := range clickables {
		if c.Text == text {
			return c, true
		}
	}
	return result.Clickable{}, false
}

// clickablesWithSameSSIM returns the text of every button whose SSIM score
// is exactly equal to another button's, per get_clickables_with_same_ssim
// - two buttons that produce pixel-identical results after being clicked
// are themselves indistinguishable in effect (e.g. both "accept" and
// "reject" silently doing nothing).
func clickablesWithSameSSIM(buttons []result.Clickable) []string {
	seen := make(map[float64][]string)
	for _, b := range buttons {
		if b.SSIM == nil {
			continue
		}
		seen[*b.SSIM] = append(seen[*b.SSIM], b.Text)
	}
	var flagged []string
	for _, names := range seen {
		if len(names) > 1 {
			flagged = append(flagged, names...)
		}
	}
	return flagged
}

func sanitizeFileName(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "button"
	}
	return b.String()
}

// requestedURLsOf returns the URLs seen on t's page log, used by
// clearBrowser to derive the first-level domains to clear storage for.
func requestedURLsOf(t *tab) []string {
	reqs := t.page.Requests()
	urls := make([]string, len(reqs))
	for i, r := range reqs {
		urls[i] = r.URL
	}
	return urls
}

func waitForSettle(tabCtx context.Context, delay time.Duration) error {
	return chromedp.Run(tabCtx, chromedp.Sleep(delay))
}

func clickAndWait(nt *tab, handle remoteobject.Handle, delay time.Duration) {
	clickable.Click(nt.bridge, handle)
	_ = waitForSettle(nt.ctx, delay)
}
