package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/browser"
	cdpdebugger "github.com/chromedp/cdproto/debugger"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/security"
	cdpstorage "github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/weppos/publicsuffix-go/publicsuffix"

	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/useragent"
)

// onNewDocumentScript is installed via Page.addScriptToEvaluateOnNewDocument
// before every navigation. Its single statement sits at a fixed line so the
// debugger can set a just-in-time breakpoint there (§4.6 step 1) — the hook
// advanced log extractors would use to pull call-site arguments on pause.
// No such extractor is wired up in this core; the breakpoint is armed and
// resumed immediately, per the state machine in design notes, but nothing
// currently reads the paused call frames.
const onNewDocumentScript = `
// Instrumentation hook: attaching the debugger's breakpoint here lets a
// future log extractor inspect call-site arguments without the page ever
// observing a pause.
(function() {
  window.__cookiescanMarker = true;
})();
`

// onNewDocumentBreakpointLine is the zero-based line of that statement
// within onNewDocumentScript (the script opens with a newline).
const onNewDocumentBreakpointLine = 5

// tab bundles everything the controller needs to drive one navigation: the
// chromedp tab context, the bridge bound to it, the page-state log, and the
// event-flag state machine.
type tab struct {
	ctx    context.Context
	cancel context.CancelFunc

	bridge  *remoteobject.Bridge
	signals *signals
	page    *pagestate.State

	javascriptEnabled bool
}

// setupTab wires up the required CDP domains (Network, Security, DOM,
// Page, Emulation, Debugger) on a tab context already created by
// (*browser.Worker).NewTab, installs the event listeners, and returns the
// ready tab. Mirrors pagescanner.py's _setup_tab.
func setupTab(tabCtx context.Context, cancelTab context.CancelFunc, opts Options, page *pagestate.State) (*tab, error) {
	t := &tab{
		ctx:               tabCtx,
		cancel:            cancelTab,
		bridge:            remoteobject.New(tabCtx),
		signals:           newSignals(),
		page:              page,
		javascriptEnabled: !opts.DisableJavascript,
	}

	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		return nil, fmt.Errorf("scan: failed to attach to tab: %w", err)
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			page.OnRequest(ev)
		case *network.EventResponseReceived:
			page.OnResponse(ev)
		case *network.EventLoadingFailed:
			page.OnFailure(ev)
		case *security.EventSecurityStateChanged:
			page.OnSecurityStateChanged(ev)
		case *page.EventLoadEventFired:
			t.signals.setPageLoaded()
		case *page.EventFrameScheduledNavigation:
			t.signals.setDocumentWillChange(ev.Delay)
		case *page.EventFrameClearedScheduledNavigation:
			t.signals.clearDocumentWillChange()
		case *cdpdebugger.EventScriptParsed:
			if !t.signals.isDebuggerAttached() {
				var breakpointID cdpdebugger.BreakpointID
				_ = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
					id, _, err := cdpdebugger.SetBreakpoint(&cdpdebugger.Location{
						ScriptID:   ev.ScriptID,
						LineNumber: int64(onNewDocumentBreakpointLine),
					}).Do(ctx)
					breakpointID = id
					return err
				}))
				t.signals.setDebuggerAttached(string(breakpointID))
				if t.signals.isDebuggerPaused() {
					_ = chromedp.Run(tabCtx, cdpdebugger.Resume())
				}
			}
		case *cdpdebugger.EventPaused:
			t.signals.setDebuggerPaused()
			if t.signals.isDebuggerAttached() {
				_ = chromedp.Run(tabCtx, cdpdebugger.Resume())
			}
		case *cdpdebugger.EventResumed:
			t.signals.clearDebuggerPaused()
		}
	})

	actions := []chromedp.Action{
		network.Enable(),
		security.Enable(),
		security.SetIgnoreCertificateErrors(true),
		dom.Enable(),
		page.Enable(),
	}
	if !t.javascriptEnabled {
		actions = append(actions, emulation.SetScriptExecutionDisabled(true))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancelTab()
		return nil, fmt.Errorf("scan: failed to enable CDP domains: %w", err)
	}

	headless, err := isHeadless(tabCtx)
	if err == nil && headless {
		width, height := int64(opts.ResolutionWidth), int64(opts.ResolutionHeight)
		if width == 0 {
			width = 1920
		}
		if height == 0 {
			height = 1080
		}
		_ = chromedp.Run(tabCtx, emulation.SetDeviceMetricsOverride(width, height, 0, false))
	}

	ua := resolveUserAgent(tabCtx, opts.RandomUserAgent)
	_ = chromedp.Run(tabCtx, network.SetUserAgentOverride(ua))

	source := strings.ReplaceAll(onNewDocumentScript, "__extra_scripts__", "")
	_ = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	}))

	if t.javascriptEnabled {
		if err := chromedp.Run(tabCtx,
			cdpdebugger.Enable(),
			cdpdebugger.Pause(),
		); err != nil {
			cancelTab()
			return nil, fmt.Errorf("scan: failed to enable debugger: %w", err)
		}
	}

	return t, nil
}

// teardownTab disables the domains enabled by setupTab (debugger, network,
// security, page) and stops the tab, per §4.6 step 11. The worker's
// browser process itself is left running — only this scoped tab is closed.
func teardownTab(t *tab, javascriptEnabled bool) {
	if t == nil {
		return
	}
	defer t.cancel()
	_ = chromedp.Run(t.ctx, page.Disable())
	if javascriptEnabled {
		_ = chromedp.Run(t.ctx, cdpdebugger.Disable())
	}
	_ = chromedp.Run(t.ctx, network.Disable())
	_ = chromedp.Run(t.ctx, security.Disable())
}

// isHeadless reports whether window.chrome is absent, per the source's
// Headless Chrome detection heuristic
// (https://antoinevastel.com/bot%20detection/2018/01/17/detect-chrome-headless-v2.html#Chrome%20(New)).
func isHeadless(ctx context.Context) (bool, error) {
	var headless bool
	err := chromedp.Run(ctx, chromedp.Evaluate(`!window.chrome`, &headless))
	return headless, err
}

// resolveUserAgent picks the user-agent string for this tab: a rotated
// string when enabled, or the browser's own reported default with
// "Headless" stripped.
func resolveUserAgent(ctx context.Context, randomUA bool) string {
	if randomUA {
		return useragent.Random()
	}
	var browserUA string
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, _, ua, _, err := browser.GetVersion().Do(ctx)
		browserUA = ua
		return err
	}))
	return useragent.Patch(browserUA)
}

// getAllCookies returns every cookie visible to the tab's current page, per
// _get_all_cookies.
func getAllCookies(ctx context.Context) []*network.Cookie {
	var cookies []*network.Cookie
	_ = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetAllCookies().Do(ctx)
		return err
	}))
	return cookies
}

// clearBrowser clears cache, cookies, local storage, and origin-scoped
// storage for every first-level domain that was requested during the
// previous phase, per _clear_browser. Used between click-replay
// iterations so each button's replay starts from a clean slate.
func clearBrowser(ctx context.Context, requestedURLs []string) {
	_ = chromedp.Run(ctx,
		network.ClearBrowserCache(),
		network.ClearBrowserCookies(),
	)
	_ = chromedp.Run(ctx, chromedp.Evaluate(`localStorage.clear()`, nil))

	domains := make(map[string]struct{})
	for _, u := range requestedURLs {
		if d, err := publicsuffix.Domain(hostOnly(u)); err == nil && d != "" {
			domains[d] = struct{}{}
		}
	}
	for d := range domains {
		_ = chromedp.Run(ctx, cdpstorage.ClearDataForOrigin("."+d, "all"))
	}
}

func hostOnly(rawURL string) string {
	// publicsuffix.Domain expects a bare host, not a full URL; strip any
	// scheme, path/query/fragment, userinfo and port by hand, so a value
	// without a scheme (such as "example.com") also yields its host.
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rawURL = rawURL[i+3:]
	}
	if i := strings.IndexAny(rawURL, "/?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	if i := strings.Index(rawURL, "@"); i >= 0 {
		rawURL = rawURL[i+1:]
	}
	if i := strings.LastIndex(rawURL, ":"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}
