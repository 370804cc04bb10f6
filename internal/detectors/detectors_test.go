package detectors

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cookiebanner/scanner/internal/result"
)

func TestHasButton(t *testing.T) {
	assert.True(t, hasButton([]result.Clickable{{Type: result.ClickableLink}, {Type: result.ClickableButton}}))
	assert.False(t, hasButton([]result.Clickable{{Type: result.ClickableLink}, {Type: result.ClickableCheckbox}}))
	assert.False(t, hasButton(nil))
}

func TestJSStringLiteralEscaping(t *testing.T) {
	assert.Equal(t, `'a\'b'`, jsStringLiteral(`a'b`))
	assert.Equal(t, `'a\\b'`, jsStringLiteral(`a\b`))
}

func TestOtsuThresholdSeparatesTwoClusters(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			v := uint8(20)
			if x >= 5 {
				v = 220
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	th := otsuThreshold(img)
	assert.Greater(t, th, uint8(20))
	assert.LessOrEqual(t, th, uint8(220))
}

func TestFloodFillComponentsFindsBoundingBoxes(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 2; y < 5; y++ {
		for x := 2; x < 6; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	comps := floodFillComponents(img, 128)
	if assert.Len(t, comps, 1) {
		assert.Equal(t, image.Rect(2, 2, 6, 5), comps[0].bbox)
	}
}

func TestSmallestContainingPicksSmallestBoxContainingPoint(t *testing.T) {
	big := component{bbox: image.Rect(0, 0, 100, 100)}
	small := component{bbox: image.Rect(10, 10, 20, 20)}
	best, ok := smallestContaining([]component{big, small}, 15, 15)
	assert.True(t, ok)
	assert.Equal(t, small.bbox, best.bbox)

	_, ok = smallestContaining([]component{big, small}, 500, 500)
	assert.False(t, ok)
}
