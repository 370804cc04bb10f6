package imgcompare

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCompareIdenticalImagesScoreOne(t *testing.T) {
	a := solid(20, 20, color.RGBA{100, 150, 200, 255})
	b := solid(20, 20, color.RGBA{100, 150, 200, 255})
	assert.InDelta(t, 1.0, Compare(a, b), 1e-9)
}

func TestCompareDifferentImagesScoreLessThanOne(t *testing.T) {
	a := solid(20, 20, color.RGBA{0, 0, 0, 255})
	b := solid(20, 20, color.RGBA{255, 255, 255, 255})
	assert.Less(t, Compare(a, b), 1.0)
}

func TestCompareTruncatesToSmallerCommonDimensions(t *testing.T) {
	a := solid(30, 10, color.RGBA{10, 10, 10, 255})
	b := solid(20, 20, color.RGBA{10, 10, 10, 255})
	// Should not panic despite mismatched dimensions, and should score as
	// identical over the common 20x10 region.
	assert.InDelta(t, 1.0, Compare(a, b), 1e-9)
}
