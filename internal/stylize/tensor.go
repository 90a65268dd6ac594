// Package stylize implements the segmentation-guided stylization pipeline:
// per-class mask smoothing, region color grading, a global pastel grade,
// edge-aware detail blending and a tiered fallback chain that degrades to
// simpler filters when a stage fails.
package stylize

import (
	"image"
	"image/color"
)

// Tensor is the working image buffer: three channel planes in RGB order,
// values in [0,1], laid out channel-major.
type Tensor struct {
	Width  int
	Height int
	Data   []float32
}

func NewTensor(width, height int) *Tensor {
	return &Tensor{
		Width:  width,
		Height: height,
		Data:   make([]float32, 3*width*height),
	}
}

// FromImage copies an image into a fresh [0,1] tensor. The source is never
// mutated.
func FromImage(img image.Image) *Tensor {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	t := NewTensor(w, h)
	plane := w * h

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*w + x
			t.Data[idx] = float32(r>>8) / 255.0
			t.Data[plane+idx] = float32(g>>8) / 255.0
			t.Data[2*plane+idx] = float32(b>>8) / 255.0
		}
	}
	return t
}

func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.Height+y)*t.Width+x]
}

func (t *Tensor) Set(c, y, x int, v float32) {
	t.Data[(c*t.Height+y)*t.Width+x] = v
}

// Plane returns the backing slice for one channel.
func (t *Tensor) Plane(c int) []float32 {
	plane := t.Width * t.Height
	return t.Data[c*plane : (c+1)*plane]
}

func (t *Tensor) Clone() *Tensor {
	out := NewTensor(t.Width, t.Height)
	copy(out.Data, t.Data)
	return out
}

// ToImage materializes the tensor as an 8-bit RGBA image. Values are clamped
// to [0,1] and scaled; fractional parts are truncated.
func (t *Tensor) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	plane := t.Width * t.Height

	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			idx := y*t.Width + x
			img.SetRGBA(x, y, color.RGBA{
				R: quantize(t.Data[idx]),
				G: quantize(t.Data[plane+idx]),
				B: quantize(t.Data[2*plane+idx]),
				A: 255,
			})
		}
	}
	return img
}

func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255.0)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
