package processor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Downscale shrinks img with a Lanczos filter so that it fits within maxWidth x maxHeight,
// keeping the aspect ratio. Images already inside the box are returned as is.
func Downscale(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if maxWidth <= 0 || maxHeight <= 0 || w <= 0 || h <= 0 {
		return img
	}
	if w <= maxWidth && h <= maxHeight {
		return img
	}

	ratio := math.Min(float64(maxWidth)/float64(w), float64(maxHeight)/float64(h))
	nw := clamp(int(math.Round(float64(w)*ratio)), 1, maxWidth)
	nh := clamp(int(math.Round(float64(h)*ratio)), 1, maxHeight)

	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
