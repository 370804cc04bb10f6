// Package pagestate is the in-memory record of one navigation's network
// activity: requests, responses, failures and security-state
// transitions, indexed by request identifier, with an explicit reset for
// tab reuse between scan phases.
//
// Grounded on original_source/.../page.py for the exact method set and
// reset semantics, and on the teacher's internal/capture/events.go
// mutex-guarded correlation-by-RequestID store for the concurrency shape
// (events arrive on the chromedp listener goroutine; reads happen between
// protocol calls on the scan goroutine).
package pagestate

import (
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/security"
)

// Request is one recorded requestWillBeSent event, with the post-data body
// truncated to 64 KiB.
type Request struct {
	RequestID    network.RequestID
	FrameID      string
	Method       string
	URL          string
	Headers      network.Headers
	PostData     string
	WallTime     time.Time
	ResourceType network.ResourceType
	IsRedirect   bool
}

const maxPostDataBytes = 64 * 1024

// Response is one recorded responseReceived event.
type Response struct {
	RequestID   network.RequestID
	Status      int64
	StatusText  string
	Headers     network.Headers
	HeadersLower map[string]string
	MimeType    string
	Protocol    string
	Timing      *network.ResourceTiming
}

// FailedRequest is one recorded loadingFailed event.
type FailedRequest struct {
	RequestID     network.RequestID
	ErrorText     string
	Canceled      bool
	BlockedReason string
}

// SecurityEvent is one recorded securityStateChanged event.
type SecurityEvent struct {
	State        security.State
	Explanations []*security.StateExplanation
}

// State is the per-tab network/security log. It is written exclusively by
// CDP event callbacks (on the transport's reader goroutine) and read
// exclusively between protocol calls — the mutex exists to
// make that safe under race detection, not because concurrent readers and
// writers are otherwise expected.
type State struct {
	mu sync.Mutex

	requestLog         []Request
	documentRequestLog []Request
	failedRequestLog   []FailedRequest
	responseLog        []Response
	securityLog        []SecurityEvent

	frameID        string
	responseLookup map[network.RequestID][]Response
}

// New returns a freshly reset State.
func New() *State {
	s := &State{}
	s.reset()
	return s
}

// OnRequest records a requestWillBeSent event. The first observed frame id
// becomes the tab's primary frame; thereafter any Document-typed request in
// that frame that does not itself carry a redirectResponse is additionally
// recorded as a document (navigation-boundary) request. If the event
// carries a redirectResponse, the redirect is also recorded as a completed
// response under the same request id.
func (s *State) OnRequest(ev *network.EventRequestWillBeSent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frameID == "" {
		s.frameID = string(ev.FrameID)
	}

	var wallTime time.Time
	if ev.WallTime != nil {
		wallTime = ev.WallTime.Time()
	}

	req := Request{
		RequestID:    ev.RequestID,
		FrameID:      string(ev.FrameID),
		Method:       ev.Request.Method,
		URL:          ev.Request.URL,
		Headers:      ev.Request.Headers,
		PostData:     truncatePostData(ev.Request.PostData),
		WallTime:     wallTime,
		ResourceType: ev.Type,
		IsRedirect:   ev.RedirectResponse != nil,
	}

	documentChanged := ev.Type == network.ResourceTypeDocument &&
		string(ev.FrameID) == s.frameID &&
		ev.RedirectResponse == nil
	if documentChanged {
		s.documentRequestLog = append(s.documentRequestLog, req)
	}

	s.requestLog = append(s.requestLog, req)

	if ev.RedirectResponse != nil {
		s.addResponseLocked(Response{
			RequestID:    ev.RequestID,
			Status:       ev.RedirectResponse.Status,
			StatusText:   ev.RedirectResponse.StatusText,
			Headers:      ev.RedirectResponse.Headers,
			HeadersLower: lowerHeaders(ev.RedirectResponse.Headers),
			MimeType:     ev.RedirectResponse.MimeType,
			Protocol:     ev.RedirectResponse.Protocol,
		})
	}
}

func truncatePostData(data string) string {
	if len(data) <= maxPostDataBytes {
		return data
	}
	return data[:maxPostDataBytes]
}

// OnResponse records a responseReceived event.
func (s *State) OnResponse(ev *network.EventResponseReceived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addResponseLocked(Response{
		RequestID:    ev.RequestID,
		Status:       ev.Response.Status,
		StatusText:   ev.Response.StatusText,
		Headers:      ev.Response.Headers,
		HeadersLower: lowerHeaders(ev.Response.Headers),
		MimeType:     ev.Response.MimeType,
		Protocol:     ev.Response.Protocol,
		Timing:       ev.Response.Timing,
	})
}

func (s *State) addResponseLocked(r Response) {
	s.responseLog = append(s.responseLog, r)
	if s.responseLookup == nil {
		s.responseLookup = make(map[network.RequestID][]Response)
	}
	s.responseLookup[r.RequestID] = append(s.responseLookup[r.RequestID], r)
}

func lowerHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range map[string]any(h) {
		if s, ok := v.(string); ok {
			out[strings.ToLower(k)] = s
		}
	}
	return out
}

// OnFailure records a loadingFailed event.
func (s *State) OnFailure(ev *network.EventLoadingFailed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedRequestLog = append(s.failedRequestLog, FailedRequest{
		RequestID: ev.RequestID,
		ErrorText: ev.ErrorText,
		Canceled:  ev.Canceled,
	})
}

// OnSecurityStateChanged records a securityStateChanged event.
func (s *State) OnSecurityStateChanged(ev *security.EventSecurityStateChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.securityLog = append(s.securityLog, SecurityEvent{
		State:        ev.SecurityState,
		Explanations: ev.Explanations,
	})
}

// Reset clears all four logs and the frame-id field, keeping the tab, per
// the reset operation, leaving the tab itself untouched ("Page-
// state reset leaves all four logs empty and the frame-id field unset").
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *State) reset() {
	s.requestLog = nil
	s.documentRequestLog = nil
	s.failedRequestLog = nil
	s.responseLog = nil
	s.securityLog = nil
	s.frameID = ""
	s.responseLookup = make(map[network.RequestID][]Response)
}

// Requests returns a snapshot of the request log in arrival order.
func (s *State) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requestLog))
	copy(out, s.requestLog)
	return out
}

// DocumentRequests returns a snapshot of the document-request log, a
// causal prefix of the main frame's navigations.
func (s *State) DocumentRequests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.documentRequestLog))
	copy(out, s.documentRequestLog)
	return out
}

// HasResponses reports whether any response has been recorded, the signal
// _setup_tab's caller uses to decide whether the site was reachable at
// all.
func (s *State) HasResponses() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responseLog) > 0
}

// FailedRequests returns a snapshot of the loadingFailed log in arrival
// order.
func (s *State) FailedRequests() []FailedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FailedRequest, len(s.failedRequestLog))
	copy(out, s.failedRequestLog)
	return out
}

// FrameID returns the primary frame id observed so far, or "" if unset.
func (s *State) FrameID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameID
}

// ResponseChainFor returns all responses recorded for requestID, in
// arrival order (including any redirect legs), or nil if none were seen.
func (s *State) ResponseChainFor(requestID network.RequestID) []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain, ok := s.responseLookup[requestID]
	if !ok {
		return nil
	}
	out := make([]Response, len(chain))
	copy(out, chain)
	return out
}

// FinalResponseFor returns the last response recorded for requestID, or
// nil if none were seen. Equals the last element of
// ResponseChainFor(id).
func (s *State) FinalResponseFor(requestID network.RequestID) *Response {
	chain := s.ResponseChainFor(requestID)
	if len(chain) == 0 {
		return nil
	}
	r := chain[len(chain)-1]
	return &r
}

// FinalResponseOfCurrentDocument returns the final response for the most
// recently recorded document request, or nil if no document request has
// been observed.
func (s *State) FinalResponseOfCurrentDocument() *Response {
	s.mu.Lock()
	docs := s.documentRequestLog
	s.mu.Unlock()
	if len(docs) == 0 {
		return nil
	}
	return s.FinalResponseFor(docs[len(docs)-1].RequestID)
}
