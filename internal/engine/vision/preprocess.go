package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageNet channel statistics used by torchvision-style classifiers.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// MaxPixels bounds the decoded bitmap. A small compressed file can declare
// dimensions that would need gigabytes once decoded.
const MaxPixels = 40_000_000

// ErrImageTooLarge is returned for images above MaxPixels.
var ErrImageTooLarge = errors.New("vision: image dimensions too large")

// decodeImage decodes any registered image format. Dimensions are read from
// the header first so oversized images are rejected before allocation.
func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("vision: empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vision: decode: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("vision: image has zero size")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("vision: decode: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("vision: image has zero size")
	}
	return img, nil
}

// toTensor bilinearly resizes img to size×size and returns a flat NCHW
// float32 slice (batch of one) normalized with ImageNet mean/std.
func toTensor(img image.Image, size int) []float32 {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	plane := size * size
	out := make([]float32, 3*plane)

	scaleX := float64(srcW) / float64(size)
	scaleY := float64(srcH) / float64(size)

	for y := 0; y < size; y++ {
		// Sample at pixel centers.
		sy := (float64(y)+0.5)*scaleY - 0.5
		y0, wy := splitCoord(sy, srcH)
		y1 := min(y0+1, srcH-1)
		for x := 0; x < size; x++ {
			sx := (float64(x)+0.5)*scaleX - 0.5
			x0, wx := splitCoord(sx, srcW)
			x1 := min(x0+1, srcW-1)

			p00 := rgb(img, b.Min.X+x0, b.Min.Y+y0)
			p10 := rgb(img, b.Min.X+x1, b.Min.Y+y0)
			p01 := rgb(img, b.Min.X+x0, b.Min.Y+y1)
			p11 := rgb(img, b.Min.X+x1, b.Min.Y+y1)

			idx := y*size + x
			for c := 0; c < 3; c++ {
				top := p00[c]*(1-wx) + p10[c]*wx
				bot := p01[c]*(1-wx) + p11[c]*wx
				v := float32(top*(1-wy) + bot*wy)
				out[c*plane+idx] = (v - imagenetMean[c]) / imagenetStd[c]
			}
		}
	}
	return out
}

// splitCoord clamps a source coordinate and returns its integer base and
// fractional weight.
func splitCoord(s float64, limit int) (int, float64) {
	if s < 0 {
		return 0, 0
	}
	i := int(s)
	if i >= limit-1 {
		return limit - 1, 0
	}
	return i, s - float64(i)
}

// rgb returns the pixel's color channels scaled to [0, 1].
func rgb(img image.Image, x, y int) [3]float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return [3]float64{float64(r) / 0xffff, float64(g) / 0xffff, float64(b) / 0xffff}
}
