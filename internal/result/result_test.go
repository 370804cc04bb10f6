package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDetectorResultKeepsCountInLockStep(t *testing.T) {
	r := New("https://example.com", 0)
	r.SetDetectorResult("naive", []BannerProperty{{HTML: "<div>"}, {HTML: "<span>"}})
	assert.Equal(t, 2, r.CookieNoticeCount["naive"])
	assert.Len(t, r.Detectors["naive"], r.CookieNoticeCount["naive"])

	r.SetDetectorResult("perceptive", nil)
	_, present := r.Detectors["perceptive"]
	assert.False(t, present, "a detector that found nothing must be omitted, not recorded with a zero count")
}

func TestMarshalJSONFlattensDetectorsAndClicksToTopLevel(t *testing.T) {
	r := New("https://example.com", 0)
	r.SetDetectorResult("easylist-cookie", []BannerProperty{{HTML: "<div id=\"cn\">"}})
	r.Clicks[NodeIDKey(42)] = New("https://example.com", 0)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Contains(t, m, "easylist-cookie")
	assert.Contains(t, m, "42")
	assert.Contains(t, m, "site_url")
	assert.Contains(t, m, "cookie_notice_count")
}

func TestBeginReplayMovesResultWithoutDuplicatingClicks(t *testing.T) {
	r := New("https://example.com", 0)
	r.SetDetectorResult("naive", []BannerProperty{{HTML: "<div>"}})
	r.BeginReplay()

	require.NotNil(t, r.InitialResult)
	assert.Equal(t, "https://example.com", r.InitialResult.SiteURL)
	assert.Nil(t, r.InitialResult.InitialResult)
	assert.Nil(t, r.InitialResult.Clicks)
	assert.NotNil(t, r.Clicks)
	assert.Empty(t, r.Clicks)
}
