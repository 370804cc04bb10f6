package clickable

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestSampleBackgroundColorPicksMostFrequent(t *testing.T) {
	img := solid(100, 100, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	// A thin stripe of another colour should not win.
	for x := 0; x < 100; x++ {
		img.SetRGBA(x, 50, color.RGBA{R: 200, G: 200, B: 200, A: 255})
	}
	assert.Equal(t, "rgb(10,20,30)", SampleBackgroundColor(img, 0, 0, 100, 100))
}

func TestSampleBackgroundColorDefaultsToWhiteOutsideImage(t *testing.T) {
	img := solid(10, 10, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Equal(t, "rgb(255,255,255)", SampleBackgroundColor(img, 500, 500, 50, 50))
}

func TestSampleBackgroundColorZeroSizeRect(t *testing.T) {
	img := solid(10, 10, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	assert.Equal(t, "rgb(255,255,255)", SampleBackgroundColor(img, 5, 5, 0, 0))
}

func TestRGBString(t *testing.T) {
	assert.Equal(t, "rgb(0,128,255)", rgbString(color.RGBA{R: 0, G: 128, B: 255}))
}
