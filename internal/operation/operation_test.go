package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookiebanner/scanner/internal/result"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore()

	op, err := store.Create("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, op.Status)

	require.NoError(t, store.MarkRunning(op.ID))
	running, err := store.Get(op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, running.Status)

	res := result.New("https://example.com", 0)
	res.Reachable = true
	res.PreferredDetector = "easylist-cookie"
	res.TotalTrackerNum = 3

	require.NoError(t, store.MarkComplete(op.ID, res, []Artefact{{Name: "result"}}))
	done, err := store.Get(op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, done.Status)
	assert.True(t, done.Reachable)
	assert.Equal(t, "easylist-cookie", done.PreferredDetector)
	assert.Equal(t, 3, done.TotalTrackerNum)
	assert.Len(t, done.Artefacts, 1)
}

func TestMemoryStoreGetUnknownIDFails(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get("does-not-exist")
	assert.Error(t, err)
}

func TestMemoryStoreMarkFailedRecordsError(t *testing.T) {
	store := NewMemoryStore()
	op, err := store.Create("https://example.com")
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(op.ID, assert.AnError))
	failed, err := store.Get(op.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.NotEmpty(t, failed.Error)
}
