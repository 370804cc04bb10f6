// Package remoteobject is the semantic layer over the browser debugging
// protocol: it converts between DOM node identifiers, remote-object
// handles, and plain value trees, and runs small instrumentation scripts
// on the detectors' and extractors' behalf.
//
// Every operation that can fail due to stale handles, cross-origin
// restrictions or transport errors returns a neutral default (nil, an
// empty slice, an empty map) instead of propagating the failure — this
// policy is what lets detectors and extractors be written linearly.
package remoteobject

import (
	"context"
	"encoding/json"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/mailru/easyjson"
)

// Handle is an opaque remote-object reference, valid only while its
// JavaScript execution-context scope lives.
type Handle = runtime.RemoteObjectID

// NodeID is a short-lived integer handle to a DOM element on a tab.
type NodeID = cdp.NodeID

// PropertyKind tags the shape of a named attribute returned by
// PropertiesOf, so callers can decide how to interpret a value.
type PropertyKind int

const (
	KindNull PropertyKind = iota
	KindPrimitive
	KindArray
	KindObject
)

// Property is one named attribute of a remote object, tagged with its kind
// so callers can decide whether to drill down (arrays are expanded
// automatically by ObjectToValueMap; deeper object graphs are not).
type Property struct {
	Name  string
	Kind  PropertyKind
	Value any    // set when Kind == KindPrimitive
	Array []any  // set when Kind == KindArray
}

// Bridge binds the remote-object operations to one tab's execution
// context.
type Bridge struct {
	ctx context.Context
}

// New binds a Bridge to tabCtx, a chromedp browser-tab context.
func New(tabCtx context.Context) *Bridge {
	return &Bridge{ctx: tabCtx}
}

// ResolveNode returns the remote-object handle for a node identifier, or
// the zero Handle if the id is stale. Never returns an error.
func (b *Bridge) ResolveNode(nodeID NodeID) Handle {
	var obj *runtime.RemoteObject
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var resolveErr error
		obj, resolveErr = dom.ResolveNode().WithNodeID(nodeID).Do(ctx)
		return resolveErr
	}))
	if err != nil || obj == nil {
		return ""
	}
	return obj.ObjectID
}

// RequestNode returns the node identifier backing a remote-object handle,
// or 0 if the handle is stale or empty.
func (b *Bridge) RequestNode(handle Handle) NodeID {
	if handle == "" {
		return 0
	}
	var nodeID cdp.NodeID
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var requestErr error
		nodeID, requestErr = dom.RequestNode(handle).Do(ctx)
		return requestErr
	}))
	if err != nil {
		return 0
	}
	return nodeID
}

// Evaluate runs a script expression in the page's global scope and returns
// a handle to the resulting object, or the zero Handle on failure.
func (b *Bridge) Evaluate(script string) Handle {
	var res *runtime.RemoteObject
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var evalErr error
		res, _, evalErr = runtime.Evaluate(script).WithReturnByValue(false).Do(ctx)
		return evalErr
	}))
	if err != nil || res == nil {
		return ""
	}
	return res.ObjectID
}

// CallOn invokes functionBody with `this` bound to handle's object,
// returning a handle to the result, or the zero Handle on failure.
func (b *Bridge) CallOn(handle Handle, functionBody string, args ...any) Handle {
	if handle == "" {
		return ""
	}
	var callArgs []*runtime.CallArgument
	for _, a := range args {
		callArgs = append(callArgs, &runtime.CallArgument{Value: easyjson.RawMessage(marshalArg(a))})
	}

	var res *runtime.RemoteObject
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var callErr error
		res, _, callErr = runtime.CallFunctionOn(functionBody).
			WithObjectID(handle).
			WithArguments(callArgs).
			WithReturnByValue(false).
			Do(ctx)
		return callErr
	}))
	if err != nil || res == nil {
		return ""
	}
	return res.ObjectID
}

// CallOnValue invokes functionBody with `this` bound to handle's object and
// returns the result by value (primitives and plain JSON-serialisable
// structures only — not usable for results that must stay as live object
// references, which should go through CallOn instead). Returns nil on any
// failure, per the bridge's neutral-default policy.
func (b *Bridge) CallOnValue(handle Handle, functionBody string, args ...any) any {
	if handle == "" {
		return nil
	}
	var callArgs []*runtime.CallArgument
	for _, a := range args {
		callArgs = append(callArgs, &runtime.CallArgument{Value: easyjson.RawMessage(marshalArg(a))})
	}

	var res *runtime.RemoteObject
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var callErr error
		res, _, callErr = runtime.CallFunctionOn(functionBody).
			WithObjectID(handle).
			WithArguments(callArgs).
			WithReturnByValue(true).
			Do(ctx)
		return callErr
	}))
	if err != nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(res.Value, &v); err != nil {
		return nil
	}
	return v
}

// PropertiesOf returns the own, enumerable properties of handle's object,
// each tagged primitive/array/object/null. An empty slice is returned
// (never nil-with-error) on a stale handle or transport failure.
func (b *Bridge) PropertiesOf(handle Handle) []Property {
	if handle == "" {
		return nil
	}
	var props []*runtime.PropertyDescriptor
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var getErr error
		props, _, _, _, getErr = runtime.GetProperties(handle).WithOwnProperties(true).Do(ctx)
		return getErr
	}))
	if err != nil {
		return nil
	}

	out := make([]Property, 0, len(props))
	for _, p := range props {
		out = append(out, classify(p))
	}
	return out
}

// classify reproduces the exact (and exactly preserved) operator-precedence
// shape of the original's is_remote_attribute_a_primitive/-an_array
// helpers: `attribute.enumerable and value.type != "object" or
// value.subtype == "null"` — the "or null-subtype" branch does not require
// enumerable, which is almost certainly unintentional in the source but is
// implemented as written, preserving rather than silently fixing the
// source's ambiguous behaviour.
func classify(p *runtime.PropertyDescriptor) Property {
	prop := Property{Name: p.Name}
	if p.Value == nil {
		prop.Kind = KindNull
		return prop
	}

	isPrimitive := (p.Enumerable && p.Value.Type != runtime.TypeObject) || p.Value.Subtype == "null"
	isArray := p.Enumerable && p.Value.Type == runtime.TypeObject && p.Value.Subtype == runtime.SubtypeArray

	switch {
	case isArray:
		prop.Kind = KindArray
	case isPrimitive:
		prop.Kind = KindPrimitive
		var v any
		if len(p.Value.Value) > 0 && json.Unmarshal(p.Value.Value, &v) == nil {
			prop.Value = v
		}
	case p.Value.Type == runtime.TypeObject:
		prop.Kind = KindObject
	default:
		prop.Kind = KindNull
	}
	return prop
}

// ArrayToValueList returns the enumerable element values of an array
// handle, in property order. Empty (not nil-with-error) if handle is stale
// or not an array.
func (b *Bridge) ArrayToValueList(handle Handle) []any {
	props := b.PropertiesOf(handle)
	out := make([]any, 0, len(props))
	for _, p := range props {
		if p.Kind == KindPrimitive {
			out = append(out, p.Value)
		}
	}
	return out
}

// ArrayToNodeIDs converts an array-of-elements handle to node identifiers,
// silently dropping entries whose element has since gone stale.
func (b *Bridge) ArrayToNodeIDs(handle Handle) []NodeID {
	if handle == "" {
		return nil
	}
	var props []*runtime.PropertyDescriptor
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var getErr error
		props, _, _, _, getErr = runtime.GetProperties(handle).WithOwnProperties(true).Do(ctx)
		return getErr
	}))
	if err != nil {
		return nil
	}

	var nodeIDs []NodeID
	for _, p := range props {
		if !p.Enumerable || p.Value == nil || p.Value.ObjectID == "" {
			continue
		}
		if id := b.RequestNode(p.Value.ObjectID); id != 0 {
			nodeIDs = append(nodeIDs, id)
		}
	}
	return nodeIDs
}

// ObjectToValueMap converts an object handle into a plain map: primitive
// properties are copied by value; nested arrays are recursively converted
// to []any; deeper object graphs are not traversed (per the "cyclic
// deeper graphs are rarely needed and easy to add later).
func (b *Bridge) ObjectToValueMap(handle Handle) map[string]any {
	out := make(map[string]any)
	if handle == "" {
		return out
	}
	var props []*runtime.PropertyDescriptor
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var getErr error
		props, _, _, _, getErr = runtime.GetProperties(handle).WithOwnProperties(true).Do(ctx)
		return getErr
	}))
	if err != nil {
		return out
	}

	for _, p := range props {
		cl := classify(p)
		switch cl.Kind {
		case KindPrimitive:
			out[p.Name] = cl.Value
		case KindArray:
			out[p.Name] = b.ArrayToValueList(p.Value.ObjectID)
		}
	}
	return out
}

// DocumentElement returns a handle to the page's document.documentElement,
// used as the `this` binding for scripts (such as the modality test) that
// only need page-global context, not a specific node.
func (b *Bridge) DocumentElement() Handle {
	return b.Evaluate("document.documentElement")
}

// SearchXPath runs an XPath query against the page's DOM via DOM.performSearch
// and returns the matching node identifiers. Script execution is not touched
// by this call; callers that need the naive detector's "freeze the page
// while searching" behaviour should bracket it with
// SetScriptExecutionDisabled themselves.
func (b *Bridge) SearchXPath(query string) []NodeID {
	var searchID string
	var count int64
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		id, n, searchErr := dom.PerformSearch(query).WithIncludeUserAgentShadowDOM(false).Do(ctx)
		searchID, count = id, n
		return searchErr
	}))
	if err != nil || count == 0 {
		return nil
	}
	defer chromedp.Run(b.ctx, dom.DiscardSearchResults(searchID))

	var ids []NodeID
	err = chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var getErr error
		ids, getErr = dom.GetSearchResults(searchID, 0, count).Do(ctx)
		return getErr
	}))
	if err != nil {
		return nil
	}
	return ids
}

// NodeForLocation hit-tests viewport coordinates (x,y) and returns the node
// identifier of the topmost element there, or 0 if nothing was hit.
func (b *Bridge) NodeForLocation(x, y int64) NodeID {
	var nodeID cdp.NodeID
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, id, locErr := dom.GetNodeForLocation(x, y).WithIncludeUserAgentShadowDOM(false).Do(ctx)
		nodeID = id
		return locErr
	}))
	if err != nil {
		return 0
	}
	return nodeID
}

// SetScriptExecutionDisabled pauses (disabled=true) or resumes (false)
// JavaScript execution on the page - used to bracket an XPath search so
// in-page scripts cannot mutate the DOM while candidate nodes are being
// walked.
func (b *Bridge) SetScriptExecutionDisabled(disabled bool) {
	chromedp.Run(b.ctx, emulation.SetScriptExecutionDisabled(disabled))
}

func marshalArg(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
