package detectors

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/cookiebanner/scanner/internal/properties"
	"github.com/cookiebanner/scanner/internal/result"
	"github.com/cookiebanner/scanner/internal/visibility"
)

// Perceptive implements the image-based detector: seed a coordinate from
// the keyword search, mask the screenshot against the seed colour, find the
// smallest connected component containing the seed, hit-test it back to a
// DOM node, then walk up while the parent's geometry stays within the
// contour's bounds.
//
// Grounded on original_source/.../detectors/simple_perceptive.py. No
// computer-vision library appears in the reference corpus, so contour
// finding is a hand-rolled flood-fill connected-components pass - see
// DESIGN.md.
type Perceptive struct{}

func (Perceptive) Name() string { return "perceptive" }

const removeImagesScript = `Array.from(document.images).forEach(function(img) { img.remove(); });`

func (Perceptive) Detect(dc *Context, res *result.Result) {
	cand, ok := searchAndGetCoordinates(dc.Bridge, dc.Resolution.Width, dc.Resolution.Height)
	if !ok {
		return
	}

	dc.Bridge.Evaluate(removeImagesScript)

	shot, err := dc.Screenshot()
	if err != nil || shot == nil {
		return
	}

	bordered := addBlackBorder(shot, 1)
	seedX, seedY := int(cand.x)+1, int(cand.y)+1
	bounds := bordered.Bounds()
	if seedX < bounds.Min.X || seedX >= bounds.Max.X || seedY < bounds.Min.Y || seedY >= bounds.Max.Y {
		return
	}
	seedColor := colorAt(bordered, seedX, seedY)

	masked := xorMaskGray(bordered, seedColor)
	threshold := otsuThreshold(masked)
	components := floodFillComponents(masked, threshold)

	best, found := smallestContaining(components, seedX, seedY)
	if !found {
		return
	}

	if dc.ShowResults {
		if diag := contourDiagnosticPNG(bordered, best.bbox); diag != nil {
			res.AttachFile("perceptive_contour.png", diag)
		}
	}

	// Map the bordered-image coordinates back to real page coordinates by
	// undoing the 1px border padding.
	hitX := int64(best.first.X - 1)
	hitY := int64(best.first.Y - 1)
	nodeID := dc.Bridge.NodeForLocation(hitX, hitY)
	if nodeID == 0 {
		return
	}
	handle := dc.Bridge.ResolveNode(nodeID)
	if handle == "" {
		return
	}

	contourArea := best.bbox.Dx() * best.bbox.Dy()
	contourMinX, contourMinY := best.bbox.Min.X-1, best.bbox.Min.Y-1
	contourMaxX, contourMaxY := best.bbox.Max.X-1, best.bbox.Max.Y-1

	screenshot, _ := dc.Screenshot()
	currentArea := 0
	for {
		geom, ok := dc.Bridge.CallOnValue(handle, geomScript).(map[string]any)
		if !ok {
			break
		}
		w, h := floatOf(geom["width"]), floatOf(geom["height"])
		area := int(w * h)

		if visibility.NodeName(dc.Bridge, handle) == "body" {
			break
		}

		parent := parentOf(dc.Bridge, handle)
		if parent == "" {
			break
		}
		pgeom, ok := dc.Bridge.CallOnValue(parent, geomScript).(map[string]any)
		if !ok {
			break
		}
		px, py := floatOf(pgeom["x"]), floatOf(pgeom["y"])
		pw, ph := floatOf(pgeom["width"]), floatOf(pgeom["height"])
		parentArea := int(pw * ph)

		fitsWithinContour := int(px) >= contourMinX-1 && int(py) >= contourMinY-1 &&
			int(px+pw) <= contourMaxX+1 && int(py+ph) <= contourMaxY+1
		growsMonotonically := parentArea >= currentArea && parentArea <= contourArea

		if !fitsWithinContour || !growsMonotonically {
			break
		}

		currentArea = area
		handle = parent
		nodeID = dc.Bridge.RequestNode(parent)
	}

	prop := properties.Of(dc.Bridge, nodeID, handle, dc.DocumentHandle, screenshot, dc.Resolution)
	res.SetDetectorResult(Perceptive{}.Name(), []result.BannerProperty{prop})
}

// contourDiagnosticPNG outlines the chosen contour's bounding box in red
// on a copy of the bordered screenshot, for the perceptive_show_results
// diagnostic.
func contourDiagnosticPNG(img *image.RGBA, bbox image.Rectangle) []byte {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)

	red := color.RGBA{R: 255, A: 255}
	for x := bbox.Min.X; x < bbox.Max.X; x++ {
		out.SetRGBA(x, bbox.Min.Y, red)
		out.SetRGBA(x, bbox.Max.Y-1, red)
	}
	for y := bbox.Min.Y; y < bbox.Max.Y; y++ {
		out.SetRGBA(bbox.Min.X, y, red)
		out.SetRGBA(bbox.Max.X-1, y, red)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil
	}
	return buf.Bytes()
}

func addBlackBorder(img image.Image, px int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*px, b.Dy()+2*px))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(px, px, px+b.Dx(), px+b.Dy()), img, b.Min, draw.Src)
	return out
}

func colorAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}

// xorMaskGray XORs every pixel's channels with seed's channels, then
// converts the result to greyscale luminance.
func xorMaskGray(img image.Image, seed color.RGBA) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rr := uint8(r>>8) ^ seed.R
			gg := uint8(g>>8) ^ seed.G
			bb := uint8(b>>8) ^ seed.B
			lum := 0.299*float64(rr) + 0.587*float64(gg) + 0.114*float64(bb)
			out.SetGray(x, y, color.Gray{Y: uint8(lum)})
		}
	}
	return out
}

// otsuThreshold computes Otsu's binary threshold over a greyscale image's
// histogram and returns the lowest grey level of the upper class, so that
// pixels >= the returned value are the foreground floodFillComponents
// collects.
func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	bounds := img.Bounds()
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
			total++
		}
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var sumB, wB float64
	var maxVar float64
	threshold := uint8(0)
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		betweenVar := wB * wF * (mB - mF) * (mB - mF)
		if betweenVar > maxVar {
			maxVar = betweenVar
			threshold = uint8(t + 1)
		}
	}
	return threshold
}

// component is one 4-connected foreground region found by floodFillComponents.
type component struct {
	bbox  image.Rectangle
	first image.Point // first (top-left-most, raster order) pixel visited
}

// floodFillComponents labels 4-connected foreground (>= threshold) regions
// in mask, returning their bounding boxes - equivalent to external-contour
// bounding rectangles for the binary mask this detector produces.
func floodFillComponents(mask *image.Gray, threshold uint8) []component {
	bounds := mask.Bounds()
	visited := make([][]bool, bounds.Dy())
	for i := range visited {
		visited[i] = make([]bool, bounds.Dx())
	}
	isFg := func(x, y int) bool {
		return mask.GrayAt(x, y).Y >= threshold
	}

	var comps []component
	var stack []image.Point
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			vi, vj := y-bounds.Min.Y, x-bounds.Min.X
			if visited[vi][vj] || !isFg(x, y) {
				continue
			}
			comp := component{bbox: image.Rect(x, y, x+1, y+1), first: image.Point{X: x, Y: y}}
			stack = append(stack[:0], image.Point{X: x, Y: y})
			visited[vi][vj] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if p.X < comp.bbox.Min.X {
					comp.bbox.Min.X = p.X
				}
				if p.Y < comp.bbox.Min.Y {
					comp.bbox.Min.Y = p.Y
				}
				if p.X+1 > comp.bbox.Max.X {
					comp.bbox.Max.X = p.X + 1
				}
				if p.Y+1 > comp.bbox.Max.Y {
					comp.bbox.Max.Y = p.Y + 1
				}
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nx, ny := p.X+d[0], p.Y+d[1]
					if nx < bounds.Min.X || nx >= bounds.Max.X || ny < bounds.Min.Y || ny >= bounds.Max.Y {
						continue
					}
					nvi, nvj := ny-bounds.Min.Y, nx-bounds.Min.X
					if visited[nvi][nvj] || !isFg(nx, ny) {
						continue
					}
					visited[nvi][nvj] = true
					stack = append(stack, image.Point{X: nx, Y: ny})
				}
			}
			comps = append(comps, comp)
		}
	}
	return comps
}

// smallestContaining returns the smallest (by bounding-box area) component
// whose bounding box contains (x,y).
func smallestContaining(comps []component, x, y int) (component, bool) {
	var best component
	bestArea := -1
	for _, c := range comps {
		if x < c.bbox.Min.X || x >= c.bbox.Max.X || y < c.bbox.Min.Y || y >= c.bbox.Max.Y {
			continue
		}
		area := c.bbox.Dx() * c.bbox.Dy()
		if bestArea == -1 || area < bestArea {
			best, bestArea = c, area
		}
	}
	return best, bestArea != -1
}
