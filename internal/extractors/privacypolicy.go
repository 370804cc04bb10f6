package extractors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cookiebanner/scanner/internal/clickable"
	"github.com/cookiebanner/scanner/internal/remoteobject"
	"github.com/cookiebanner/scanner/internal/result"
)

// wordingEntry is one entry of privacy_wording.json: a language's keyword
// list, keyed by "country" even though the lookup key is a detected
// language code - preserved mismatch, see SPEC_FULL.md Open Question 3.
type wordingEntry struct {
	Country string   `json:"country"`
	Words   []string `json:"words"`
}

// LoadWording reads privacy_wording.json and returns the keyword list for
// languageCode, looked up against each entry's (misleadingly named)
// "country" field. Returns nil, false if no entry matches.
func LoadWording(path, languageCode string) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entries []wordingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	for _, e := range entries {
		if e.Country == languageCode {
			return e.Words, true
		}
	}
	return nil, false
}

// FindPrivacyPolicyClickable returns the first clickable in banner whose
// lower-cased text contains any of keywords.
//
// Grounded on original_source/.../extractors/PrivacyPolicyExtractor.py's
// search_through_clickables.
func FindPrivacyPolicyClickable(banner result.BannerProperty, keywords []string) (result.Clickable, bool) {
	for _, c := range banner.Clickables {
		text := strings.ToLower(c.Text)
		for _, kw := range keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return c, true
			}
		}
	}
	return result.Clickable{}, false
}

// ClickPrivacyPolicy invokes the matched clickable's click handler through
// the same node-click path §4.6 uses for replay.
func ClickPrivacyPolicy(b *remoteobject.Bridge, nodeID remoteobject.NodeID) bool {
	handle := b.ResolveNode(nodeID)
	if handle == "" {
		return false
	}
	return clickable.Click(b, handle)
}

const bodyScript = `function() { return {html: document.body.outerHTML, text: document.body.innerText}; }`

// ExtractBody reads the current page's body markup and inner text via
// goquery (for the word-count derivation) after following a privacy-policy
// link, per extract-text-from-body.
func ExtractBody(b *remoteobject.Bridge) (result.PrivacyPolicy, error) {
	documentHandle := b.DocumentElement()
	values, ok := b.CallOnValue(documentHandle, bodyScript).(map[string]any)
	if !ok {
		return result.PrivacyPolicy{}, fmt.Errorf("extractors: could not read document body")
	}
	html, _ := values["html"].(string)
	text, _ := values["text"].(string)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return result.PrivacyPolicy{BodyHTML: html, BodyText: text, WordCount: len(strings.Fields(text))}, nil
	}
	innerText := doc.Text()
	if strings.TrimSpace(innerText) == "" {
		innerText = text
	}

	return result.PrivacyPolicy{
		BodyHTML:  html,
		BodyText:  text,
		WordCount: len(strings.Fields(innerText)),
	}, nil
}
