package useragent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchStripsHeadlessMarker(t *testing.T) {
	patched := Patch("Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/124.0.0.0 Safari/537.36")
	assert.NotContains(t, patched, "Headless")
	assert.Contains(t, patched, "Chrome/124.0.0.0")
}

func TestRandomDrawsFromPool(t *testing.T) {
	ua := Random()
	assert.Contains(t, pool, ua)
	assert.NotContains(t, ua, "Headless")
}

func TestResolve(t *testing.T) {
	assert.Contains(t, pool, Resolve(true, "ignored"))
	assert.False(t, strings.Contains(Resolve(false, "FooHeadlessBar"), "Headless"))
}
