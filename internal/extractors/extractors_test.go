package extractors

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"

	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/result"
)

func newFakePage(url string) *pagestate.State {
	p := pagestate.New()
	p.OnRequest(&network.EventRequestWillBeSent{
		RequestID: network.RequestID("r1"),
		FrameID:   network.FrameID("f1"),
		Request:   &network.Request{URL: url, Method: "GET"},
		Type:      network.ResourceTypeXHR,
	})
	return p
}

func TestIsIDCookieLongExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := result.Cookie{Value: "v", Expires: now.Add(400 * 24 * time.Hour)}
	assert.True(t, isIDCookie(c, now))
}

func TestIsIDCookieShortExpiryLowEntropyIsNotID(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := result.Cookie{Value: "abcdef1234567890abcdef", Expires: now.Add(2 * 24 * time.Hour)}
	assert.False(t, isIDCookie(c, now))
}

func TestIsIDCookieEmptyValueNeverID(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := result.Cookie{Value: "", Expires: now.Add(2 * 365 * 24 * time.Hour)}
	assert.False(t, isIDCookie(c, now))
}

func TestCookieSyncRequiresValueLengthOverTen(t *testing.T) {
	res := &result.Result{
		Cookies: []result.Cookie{{Value: "short", Expires: time.Now().Add(2 * oneYear)}},
	}
	page := newFakePage("https://tracker.example/pix?u=short")
	ec := &Context{Page: page, Now: time.Now()}
	CookieSync{}.Extract(ec, res)
	assert.Equal(t, 1, res.IDCookieNum)
	assert.Empty(t, res.CookieSyncs)
}

func TestCookieSyncMatchesLongValueSubstring(t *testing.T) {
	now := time.Now()
	res := &result.Result{
		Cookies: []result.Cookie{{Value: "abcdef1234567890abcdef", Expires: now.Add(2 * oneYear)}},
	}
	page := newFakePage("https://tracker.example/pix?u=abcdef1234567890abcdef")
	ec := &Context{Page: page, Now: now}
	CookieSync{}.Extract(ec, res)
	assert.Equal(t, 1, len(res.CookieSyncs))
	assert.Equal(t, "abcdef1234567890abcdef", res.CookieSyncs[0].CookieValue)
}

func TestFindPrivacyPolicyClickableMatchesKeyword(t *testing.T) {
	banner := result.BannerProperty{Clickables: []result.Clickable{
		{Text: "Accept"},
		{Text: "Read our Privacy Policy"},
	}}
	c, ok := FindPrivacyPolicyClickable(banner, []string{"privacy policy"})
	assert.True(t, ok)
	assert.Equal(t, "Read our Privacy Policy", c.Text)
}

func TestFindPrivacyPolicyClickableNoMatch(t *testing.T) {
	banner := result.BannerProperty{Clickables: []result.Clickable{{Text: "Accept"}}}
	_, ok := FindPrivacyPolicyClickable(banner, []string{"privacy policy"})
	assert.False(t, ok)
}
