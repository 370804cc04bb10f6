package filterlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, text string) *List {
	t.Helper()
	l, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	return l
}

func TestParseKeepsOnlyCosmeticRules(t *testing.T) {
	l := parse(t, `! comment line
[Adblock Plus 2.0]
||tracker.example^
example.com###cookie-banner
##.generic-consent
example.com#@#.excepted
`)
	assert.Len(t, l.rules, 2)
}

func TestNoDomainOptionAppliesEverywhere(t *testing.T) {
	l := parse(t, "##.cookie-notice\n")
	assert.Equal(t, []string{".cookie-notice"}, l.ApplicableSelectors("anything.example"))
}

func TestDomainOptionMatchesBySubstring(t *testing.T) {
	l := parse(t, "example.com###banner\n")
	// The substring test is deliberately unanchored.
	assert.Len(t, l.ApplicableSelectors("sub.example.com"), 1)
	assert.Len(t, l.ApplicableSelectors("notexample.com.evil"), 1)
	assert.Empty(t, l.ApplicableSelectors("other.org"))
}

func TestExclusionOnlyRuleIsGloballyApplicable(t *testing.T) {
	l := parse(t, "~excluded.example###banner\n")
	assert.Len(t, l.ApplicableSelectors("anything.example"), 1)
	assert.Len(t, l.ApplicableSelectors("excluded.example"), 1)
}

func TestMixedInclusionsAndExclusions(t *testing.T) {
	l := parse(t, "one.example,~two.example###banner\n")
	assert.Len(t, l.ApplicableSelectors("one.example"), 1)
	assert.Empty(t, l.ApplicableSelectors("three.example"))
}

func TestEmptySelectorIsDiscarded(t *testing.T) {
	l := parse(t, "example.com##\n")
	assert.Empty(t, l.rules)
}
