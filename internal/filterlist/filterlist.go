// Package filterlist parses AdblockPlus-style cosmetic filter lists and
// computes per-domain rule applicability.
//
// Grounded on original_source/.../detectors/filter_list.py, which parses
// the upstream lists with the Python `abp` package and keeps only CSS-type
// cosmetic rules (entries of the form `[domains]##selector`), discarding
// URL-pattern blocking rules, comments, and list metadata. No adblock/
// cosmetic-filter-list parser appears anywhere in the reference corpus
// (see DESIGN.md), so this narrow, spec-exact text format is parsed
// directly against bufio/strings rather than forcing an unrelated
// general-purpose parser to fit this behaviour.
package filterlist

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Rule is one parsed cosmetic filter rule.
type Rule struct {
	// Domains holds the rule's domain option list, if any. An empty slice
	// means the rule has no domain option and is globally applicable.
	Domains []domainOption
	// Selector is the CSS selector to hide on applicable pages.
	Selector string
}

type domainOption struct {
	domain      string
	applicable  bool // false for a "~domain" exclusion entry
}

// List is a parsed filter list, ready for domain-applicability queries.
type List struct {
	rules []Rule
}

// Parse reads an AdblockPlus-format filter list, keeping only CSS cosmetic
// hide rules (lines containing "##" with no exception marker "#@#") and
// discarding comments (`!`), list metadata (`[...]`) and URL-pattern
// blocking rules.
func Parse(r io.Reader) (*List, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	l := &List{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
			continue
		}
		if strings.Contains(line, "#@#") {
			// Exception ("don't hide") rule; not a positive CSS match.
			continue
		}
		idx := strings.Index(line, "##")
		if idx < 0 {
			// Not a cosmetic rule (e.g. a URL-pattern blocking rule); the
			// original keeps only selector.type == 'css'.
			continue
		}

		domainPart := line[:idx]
		selector := line[idx+2:]
		if selector == "" {
			continue
		}

		var domains []domainOption
		if domainPart != "" {
			for _, tok := range strings.Split(domainPart, ",") {
				tok = strings.TrimSpace(tok)
				if tok == "" {
					continue
				}
				if strings.HasPrefix(tok, "~") {
					domains = append(domains, domainOption{domain: tok[1:], applicable: false})
				} else {
					domains = append(domains, domainOption{domain: tok, applicable: true})
				}
			}
		}

		l.rules = append(l.rules, Rule{Domains: domains, Selector: selector})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("filterlist: scan failed: %w", err)
	}
	return l, nil
}

// ApplicableSelectors returns the CSS selectors of every rule applicable to
// domain, per the domain-applicability algorithm:
//   - no domain option → applicable to every domain;
//   - domain option present, but every entry is an exclusion (~domain) →
//     treated as globally applicable (a
//     rule with only exclusion domain options is treated as globally
//     applicable");
//   - otherwise applicable iff one of the non-exclusion domain entries is
//     an unanchored substring of domain. This substring test is
//     deliberately unanchored, preserving the source's `opt_domain in
//     domain` check rather than requiring a host-suffix match — see
//     SPEC_FULL.md's Open Question 1.
func (l *List) ApplicableSelectors(domain string) []string {
	var out []string
	for _, rule := range l.rules {
		if isApplicable(rule, domain) {
			out = append(out, rule.Selector)
		}
	}
	return out
}

func isApplicable(rule Rule, domain string) bool {
	if len(rule.Domains) == 0 {
		return true
	}

	var inclusions []domainOption
	for _, d := range rule.Domains {
		if d.applicable {
			inclusions = append(inclusions, d)
		}
	}
	if len(inclusions) == 0 {
		return true
	}

	for _, d := range inclusions {
		if strings.Contains(domain, d.domain) {
			return true
		}
	}
	return false
}
