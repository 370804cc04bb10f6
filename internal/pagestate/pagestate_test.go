package pagestate

import (
	"strings"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(id, frame, url string, typ network.ResourceType) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		FrameID:   network.FrameID(frame),
		Request:   &network.Request{URL: url, Method: "GET"},
		Type:      typ,
	}
}

func response(id string, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Response:  &network.Response{Status: status, Headers: network.Headers{"Content-Type": "text/html"}},
	}
}

func TestFirstObservedFrameBecomesPrimary(t *testing.T) {
	s := New()
	s.OnRequest(request("r1", "frame-a", "https://example.com/", network.ResourceTypeDocument))
	s.OnRequest(request("r2", "frame-b", "https://ads.example/doc", network.ResourceTypeDocument))

	assert.Equal(t, "frame-a", s.FrameID())
	docs := s.DocumentRequests()
	require.Len(t, docs, 1)
	assert.Equal(t, "https://example.com/", docs[0].URL)
}

func TestRedirectResponseIsRecordedUnderSameRequestID(t *testing.T) {
	s := New()
	s.OnRequest(request("r1", "f", "https://example.com/", network.ResourceTypeDocument))

	redirected := request("r1", "f", "https://example.com/final", network.ResourceTypeDocument)
	redirected.RedirectResponse = &network.Response{Status: 301, Headers: network.Headers{"Location": "/final"}}
	s.OnRequest(redirected)
	s.OnResponse(response("r1", 200))

	chain := s.ResponseChainFor("r1")
	require.Len(t, chain, 2)
	assert.Equal(t, int64(301), chain[0].Status)
	assert.Equal(t, int64(200), chain[1].Status)

	final := s.FinalResponseFor("r1")
	require.NotNil(t, final)
	assert.Equal(t, chain[len(chain)-1].Status, final.Status)
}

func TestRedirectLegIsNotADocumentRequest(t *testing.T) {
	s := New()
	s.OnRequest(request("r1", "f", "https://example.com/", network.ResourceTypeDocument))

	redirected := request("r1", "f", "https://example.com/final", network.ResourceTypeDocument)
	redirected.RedirectResponse = &network.Response{Status: 302}
	s.OnRequest(redirected)

	assert.Len(t, s.DocumentRequests(), 1)
	assert.Len(t, s.Requests(), 2)
}

func TestResetClearsAllLogsAndFrameID(t *testing.T) {
	s := New()
	s.OnRequest(request("r1", "f", "https://example.com/", network.ResourceTypeDocument))
	s.OnResponse(response("r1", 200))
	s.OnFailure(&network.EventLoadingFailed{RequestID: "r2", ErrorText: "net::ERR_FAILED"})

	s.Reset()

	assert.Empty(t, s.Requests())
	assert.Empty(t, s.DocumentRequests())
	assert.Empty(t, s.FailedRequests())
	assert.False(t, s.HasResponses())
	assert.Empty(t, s.FrameID())
	assert.Nil(t, s.ResponseChainFor("r1"))
}

func TestFinalResponseOfCurrentDocument(t *testing.T) {
	s := New()
	assert.Nil(t, s.FinalResponseOfCurrentDocument())

	s.OnRequest(request("r1", "f", "https://example.com/", network.ResourceTypeDocument))
	s.OnResponse(response("r1", 200))
	s.OnRequest(request("r2", "f", "https://example.com/next", network.ResourceTypeDocument))
	s.OnResponse(response("r2", 404))

	final := s.FinalResponseOfCurrentDocument()
	require.NotNil(t, final)
	assert.Equal(t, int64(404), final.Status)
}

func TestPostDataIsTruncated(t *testing.T) {
	s := New()
	ev := request("r1", "f", "https://example.com/", network.ResourceTypeXHR)
	ev.Request.PostData = strings.Repeat("x", maxPostDataBytes+100)
	s.OnRequest(ev)

	reqs := s.Requests()
	require.Len(t, reqs, 1)
	assert.Len(t, reqs[0].PostData, maxPostDataBytes)
}

func TestLowerCasedHeaderMap(t *testing.T) {
	s := New()
	s.OnRequest(request("r1", "f", "https://example.com/", network.ResourceTypeDocument))
	s.OnResponse(response("r1", 200))

	final := s.FinalResponseFor("r1")
	require.NotNil(t, final)
	assert.Equal(t, "text/html", final.HeadersLower["content-type"])
}
