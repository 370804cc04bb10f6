package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugifyStripsSchemeAndPath(t *testing.T) {
	assert.Equal(t, "example_com", slugify("https://example.com/some/path?x=1"))
	assert.Equal(t, "sub_example_co_uk", slugify("http://sub.example.co.uk"))
	assert.Equal(t, "site", slugify(""))
}

func TestForScanWithSaveLogsDisabledReturnsNoopCleanup(t *testing.T) {
	logger, cleanup := ForScan(New("info"), "https://example.com", false)
	defer cleanup()
	assert.NotNil(t, cleanup)
	logger.Info().Msg("no-op path")
}
