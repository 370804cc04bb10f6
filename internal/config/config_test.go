package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiebanner/scanner/internal/scan"
)

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	opts, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 5*time.Second, opts.PageLoadDelay)
	assert.Equal(t, "storage", opts.StoragePath)
	assert.True(t, opts.Detectors[scan.DetectorNaive])
	assert.False(t, opts.Detectors[scan.DetectorBert])
	require.Len(t, opts.DetectorPriorities, 5)
	assert.Equal(t, scan.DetectorEasylistCookie, opts.DetectorPriorities[0])
}

func TestEnvOverrideWinsOverDefault(t *testing.T) {
	t.Setenv("COOKIESCAN_STORAGE_PATH", "/tmp/cookiescan-storage")
	opts, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cookiescan-storage", opts.StoragePath)
}
