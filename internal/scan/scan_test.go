package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"

	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/scanerr"
)

func TestSelectPreferredDetectorFollowsPriorityOrder(t *testing.T) {
	res := result.New("https://example.com", 0)
	res.SetDetectorResult("easylist-cookie", []result.BannerProperty{{NodeID: 1}})
	res.SetDetectorResult("naive", []result.BannerProperty{{NodeID: 2}})

	priorities := []DetectorName{DetectorPerceptive, DetectorNaive, DetectorEasylistCookie}
	assert.Equal(t, "naive", selectPreferredDetector(res, priorities))
}

func TestSelectPreferredDetectorEmptyWhenNothingFound(t *testing.T) {
	res := result.New("https://example.com", 0)
	assert.Empty(t, selectPreferredDetector(res, DefaultOptions().DetectorPriorities))
}

func TestClassifyNavigationError(t *testing.T) {
	assert.Equal(t, result.ErrTimeout, classifyNavigationError(context.DeadlineExceeded))
	assert.Equal(t, result.ErrWebsocketExceptionNoInteract, classifyNavigationError(errors.New("websocket: close 1006")))
}

func TestClassifyUnreachableDetectsDNSFailure(t *testing.T) {
	pg := pagestate.New()
	assert.Equal(t, result.ErrNotReachable, classifyUnreachable(pg))

	pg.OnFailure(&network.EventLoadingFailed{RequestID: "r1", ErrorText: "net::ERR_NAME_NOT_RESOLVED"})
	assert.Equal(t, result.ErrDNSNotResolved, classifyUnreachable(pg))
}

func TestClassifyRecordsTerminalErrorOnLaterTries(t *testing.T) {
	res := result.New("https://example.com", 0)
	err := classify(res, scanerr.Timeout, errors.New("deadline"), Meta{IsFirstTry: false}, false)

	var serr *scanerr.Error
	assert.ErrorAs(t, err, &serr)
	assert.Equal(t, result.ErrTimeout, res.ChromeError)
	assert.False(t, res.Reachable)
}

func TestClassifyLeavesResultUntouchedOnRetryableFirstTry(t *testing.T) {
	res := result.New("https://example.com", 0)
	_ = classify(res, scanerr.Timeout, errors.New("deadline"), Meta{IsFirstTry: true}, false)
	assert.Equal(t, result.ErrNone, res.ChromeError)
}

func TestWebsocketCode(t *testing.T) {
	assert.Equal(t, scanerr.WebsocketNoInteract, websocketCode(false))
	assert.Equal(t, scanerr.WebsocketExceptionInteract, websocketCode(true))
}

func TestFindByTextMatchesExactly(t *testing.T) {
	clickables := []result.Clickable{{Text: "Accept all"}, {Text: "Reject"}}
	c, ok := findByText(clickables, "Reject")
	assert.True(t, ok)
	assert.Equal(t, "Reject", c.Text)

	_, ok = findByText(clickables, "reject")
	assert.False(t, ok)
}

func TestClickablesWithSameSSIM(t *testing.T) {
	one, alsoOne, other := 1.0, 1.0, 0.42
	buttons := []result.Clickable{
		{Text: "Accept", SSIM: &one},
		{Text: "Reject", SSIM: &alsoOne},
		{Text: "Settings", SSIM: &other},
		{Text: "Unclicked"},
	}
	same := clickablesWithSameSSIM(buttons)
	assert.ElementsMatch(t, []string{"Accept", "Reject"}, same)
}

func TestApplyPostAnalysisButtonColors(t *testing.T) {
	res := result.New("https://example.com", 0)
	res.SetDetectorResult("naive", []result.BannerProperty{{
		Clickables: []result.Clickable{
			{Type: result.ClickableButton, BackgroundColor: "rgb(0,128,0)"},
			{Type: result.ClickableButton, BackgroundColor: "rgb(200,200,200)"},
			{Type: result.ClickableLink, BackgroundColor: "rgb(1,1,1)"},
		},
	}})
	res.PreferredDetector = "naive"

	applyPostAnalysis(res, "naive")
	assert.True(t, res.ButtonsHaveDifferentColor)
	assert.True(t, res.BannerPresentWithoutTrack)
	assert.False(t, res.SameSSIM)
}

func TestApplyPostAnalysisTargetsInitialResultAfterReplay(t *testing.T) {
	res := result.New("https://example.com", 0)
	score := 1.0
	res.SetDetectorResult("naive", []result.BannerProperty{{
		Clickables: []result.Clickable{
			{Text: "Accept", Type: result.ClickableButton, SSIM: &score},
			{Text: "Reject", Type: result.ClickableButton, SSIM: &score},
		},
	}})
	res.PreferredDetector = "naive"
	res.BeginReplay()

	applyPostAnalysis(res, "naive")
	assert.True(t, res.InitialResult.SameSSIM)
	assert.ElementsMatch(t, []string{"Accept", "Reject"}, res.InitialResult.SameSSIMButtons)
	assert.False(t, res.SameSSIM)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "Accept_all_cookies", sanitizeFileName("Accept all cookies"))
	assert.Equal(t, "button", sanitizeFileName("???"))
}

func TestHostOnly(t *testing.T) {
	assert.Equal(t, "example.com", hostOnly("https://example.com/path?q=1"))
	assert.Equal(t, "example.com", hostOnly("https://user@example.com:8443/x"))
	assert.Equal(t, "example.com", hostOnly("example.com"))
}

func TestDefaultOptionsEnableAllButBert(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.Detectors[DetectorEasylistCookie])
	assert.True(t, opts.Detectors[DetectorNaive])
	assert.False(t, opts.Detectors[DetectorBert])
	assert.Len(t, opts.DetectorPriorities, 5)
}
