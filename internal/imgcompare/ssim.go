// Package imgcompare computes structural similarity between two
// screenshots, used to judge whether a clickable's click visibly changed
// the page.
//
// Grounded on original_source/.../detectors/utils/ssim.py. No SSIM
// implementation appears anywhere in the reference corpus, so this is
// implemented directly against stdlib image/color rather than forcing an
// unrelated library to fit a narrow, well-specified algorithm - see
// DESIGN.md.
package imgcompare

import (
	"image"
	"image/color"
)

// c1/c2 are the standard SSIM stabilising constants for 8-bit images
// (k1=0.01, k2=0.03, L=255), matching skimage's defaults.
const (
	c1 = (0.01 * 255) * (0.01 * 255)
	c2 = (0.03 * 255) * (0.03 * 255)
)

// Compare returns the structural similarity between a and b, after
// truncating both to their smaller common width and height. Grayscale
// conversion uses ITU-R BT.601 luma weights, matching OpenCV's BGR2GRAY.
//
// The original's width-truncation branch reads as intending to truncate
// both images to their smaller common width/height (it compares
// shape[1] but only ever slices down, never up); that evident intent is
// what is implemented here, not the literal single-axis slicing.
func Compare(a, b image.Image) float64 {
	ga, gb := truncateToCommon(toGray(a), toGray(b))
	return ssim(ga, gb)
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			if lum < 0 {
				lum = 0
			}
			if lum > 255 {
				lum = 255
			}
			gray.SetGray(x, y, color.Gray{Y: uint8(lum)})
		}
	}
	return gray
}

func truncateToCommon(a, b *image.Gray) (*image.Gray, *image.Gray) {
	w := minInt(a.Bounds().Dx(), b.Bounds().Dx())
	h := minInt(a.Bounds().Dy(), b.Bounds().Dy())
	return cropGray(a, w, h), cropGray(b, w, h)
}

func cropGray(img *image.Gray, w, h int) *image.Gray {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetGray(x, y, img.GrayAt(img.Bounds().Min.X+x, img.Bounds().Min.Y+y))
		}
	}
	return out
}

// ssim computes a single global structural-similarity score over the full
// image (rather than a windowed/sliding average), which is sufficient for
// the whole-banner before/after comparison this package exists for.
func ssim(a, b *image.Gray) float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	n := float64(w * h)
	if n == 0 {
		return 0
	}

	var sumA, sumB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sumA += float64(a.GrayAt(x, y).Y)
			sumB += float64(b.GrayAt(x, y).Y)
		}
	}
	meanA, meanB := sumA/n, sumB/n

	var varA, varB, covAB float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			da := float64(a.GrayAt(x, y).Y) - meanA
			db := float64(b.GrayAt(x, y).Y) - meanB
			varA += da * da
			varB += db * db
			covAB += da * db
		}
	}
	if n > 1 {
		varA /= n - 1
		varB /= n - 1
		covAB /= n - 1
	} else {
		varA, varB, covAB = 0, 0, 0
	}

	numerator := (2*meanA*meanB + c1) * (2*covAB + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
