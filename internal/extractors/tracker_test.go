package extractors

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiebanner/scanner/internal/pagestate"
	"github.com/cookiebanner/scanner/internal/result"
)

func addRequest(p *pagestate.State, id, url string) {
	p.OnRequest(&network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		FrameID:   network.FrameID("f1"),
		Request:   &network.Request{URL: url, Method: "GET"},
		Type:      network.ResourceTypeXHR,
	})
}

func testCatalogue() *Catalogue {
	return &Catalogue{Categories: map[string][]Entity{
		"Advertising": {
			{"AdCo": {"https://adco.example": {"AdCo": {"adtracker.example"}}}},
		},
		"Analytics": {
			{"MetricsCo": {"https://metricsco.example": {"MetricsCo": {"analytics.example"}}}},
		},
	}}
}

func TestTrackerMatchesCatalogueDomain(t *testing.T) {
	res := &result.Result{}
	page := newFakePage("https://site.example/pix?u=adtracker.example")
	Tracker{Catalogue: testCatalogue()}.Extract(&Context{Page: page, Now: time.Now()}, res)

	require.Len(t, res.Disconnect, 1)
	assert.Equal(t, "Advertising", res.Disconnect[0].Category)
	assert.Equal(t, "AdCo", res.Disconnect[0].Company)
	assert.Equal(t, "adtracker.example", res.Disconnect[0].Domain)
	assert.Equal(t, 1, res.DisconnectNum)
}

func TestTrackerEmitsAtMostOneEntryPerRequest(t *testing.T) {
	// A URL containing two catalogue domains still yields a single match:
	// the first entry in sorted catalogue order.
	res := &result.Result{}
	page := newFakePage("https://site.example/sync?a=adtracker.example&b=analytics.example")
	Tracker{Catalogue: testCatalogue()}.Extract(&Context{Page: page, Now: time.Now()}, res)

	require.Len(t, res.Disconnect, 1)
	assert.Equal(t, "adtracker.example", res.Disconnect[0].Domain)
}

func TestTrackerIsOrderPreservingAcrossRuns(t *testing.T) {
	page := newFakePage("https://site.example/a?u=adtracker.example")
	addRequest(page, "r2", "https://site.example/b?u=analytics.example")

	first := &result.Result{}
	Tracker{Catalogue: testCatalogue()}.Extract(&Context{Page: page, Now: time.Now()}, first)
	second := &result.Result{}
	Tracker{Catalogue: testCatalogue()}.Extract(&Context{Page: page, Now: time.Now()}, second)

	assert.Equal(t, first.Disconnect, second.Disconnect)
	require.Len(t, first.Disconnect, 2)
	assert.Equal(t, "adtracker.example", first.Disconnect[0].Domain)
	assert.Equal(t, "analytics.example", first.Disconnect[1].Domain)
}

func TestTrackerSuppressesSameSiteMatches(t *testing.T) {
	res := &result.Result{}
	page := newFakePage("https://sub.adtracker.example/own-request")
	Tracker{Catalogue: testCatalogue()}.Extract(&Context{Page: page, Now: time.Now()}, res)
	assert.Empty(t, res.Disconnect)
}

func TestTrackerIgnoresTrivialShortDomains(t *testing.T) {
	res := &result.Result{}
	page := newFakePage("https://site.example/t?d=x.co")

	catalogue := &Catalogue{Categories: map[string][]Entity{
		"Advertising": {
			{"AdCo": {"https://adco.example": {"AdCo": {"x.co"}}}},
		},
	}}
	Tracker{Catalogue: catalogue}.Extract(&Context{Page: page, Now: time.Now()}, res)
	assert.Empty(t, res.Disconnect)
}
