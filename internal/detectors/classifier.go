package detectors

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// classifierTimeout bounds every classify HTTP round trip; no other
// operation in this detector times out (the DOM calls go through the
// bridge's normal neutral-default policy).
const classifierTimeout = 10 * time.Second

const candidatesScript = `function() {
	function isVisible(elem) {
		var style = getComputedStyle(elem);
		if (style.display === 'none' || style.visibility !== 'visible') return false;
		return elem.offsetWidth > 0 && elem.offsetHeight > 0;
	}
	var all = Array.from(document.body.querySelectorAll('*'));
	var zIndexed = all.filter(function(e) {
		return isVisible(e) && parseInt(getComputedStyle(e).zIndex) > 0;
	});

	var children = Array.from(document.body.children).filter(isVisible);
	var firstThree = children.slice(0, 3);
	var lastThree = children.slice(Math.max(children.length - 3, 0));

	var seen = [];
	var out = [];
	function add(e) {
		if (seen.indexOf(e) === -1) { seen.push(e); out.push(e); }
	}
	zIndexed.forEach(add);
	firstThree.forEach(add);
	lastThree.forEach(add);
	return out;
}`

// Classifier submits candidate elements to an external HTTP classifier and
// accepts the first one classified positive.
//
// Grounded on original_source/.../detectors/bert_classifier.py. The POST
// body here follows spec.md's explicit `{lang, text}` wire shape (§6)
// rather than the Python source's apparent bug of submitting the whole
// candidate record as the "text" field.
type Classifier struct {
	Host string // defaults to 127.0.0.1:9999
}

func (Classifier) Name() string { return "bert" }

type classifyRequest struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

type classifyResponse struct {
	IsConsentBanner int `json:"is_consent_banner"`
}

func (c Classifier) Detect(dc *Context, res *result.Result) {
	host := c.Host
	if host == "" {
		host = "127.0.0.1:9999"
	}

	handle := dc.Bridge.Evaluate("(" + candidatesScript + ")()")
	nodeIDs := dc.Bridge.ArrayToNodeIDs(handle)
	if len(nodeIDs) == 0 {
		return
	}

	client := &http.Client{Timeout: classifierTimeout}
	screenshot, _ := dc.Screenshot()

	lang := dc.Language
	if lang == "" {
		lang = "en"
	}

	for _, id := range nodeIDs {
		elemHandle := dc.Bridge.ResolveNode(id)
		if elemHandle == "" {
			continue
		}
		text := visibility.TextOf(dc.Bridge, elemHandle)
		if strings.TrimSpace(text) == "" {
			continue
		}

		positive, ok := c.classify(client, host, lang, text)
		if !ok {
			// Unreachable classifier: record nothing and stop entirely,
			// per §4.3.4 ("never fails the scan").
			return
		}
		if !positive {
			continue
		}

		prop := properties.Of(dc.Bridge, id, elemHandle, dc.DocumentHandle, screenshot, dc.Resolution)
		res.SetDetectorResult(c.Name(), []result.BannerProperty{prop})
		return
	}
}

func (c Classifier) classify(client *http.Client, host, lang, text string) (positive bool, reachable bool) {
	body, err := json.Marshal(classifyRequest{Lang: lang, Text: text})
	if err != nil {
		return false, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), classifierTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+host+"/", bytes.NewReader(body))
	if err != nil {
		return false, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()

	var cr classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return false, false
	}
	return cr.IsConsentBanner == 1, true
}
