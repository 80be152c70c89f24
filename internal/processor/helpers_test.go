package processor

import (
	"image"
	"image/color"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// noiseImage is close to incompressible, so it needs low qualities to shrink.
func noiseImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// gradientImage compresses extremely well at any quality.
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 0xff})
		}
	}
	return img
}

func writeJPEG(t *testing.T, dir, name string, img image.Image, quality int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path, imaging.JPEGQuality(quality)))
	return path
}
