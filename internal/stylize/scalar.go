package stylize

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"ghibli-stylizer/internal/logger"
)

// ScalarRenderer is the portable fallback filter. It works on plain Go
// buffers in [0,255] and has no kernel that can fail on degenerate
// geometry, so it accepts any decodable image down to a single pixel.
type ScalarRenderer struct {
	logger logger.Logger
}

func NewScalarRenderer(log logger.Logger) *ScalarRenderer {
	return &ScalarRenderer{logger: log}
}

func (r *ScalarRenderer) Level() Level { return LevelScalar }

// Render applies the fixed palette shift, a mild contrast stretch about the
// midpoint, a light blur and brightness and saturation boosts, preserving
// the source resolution.
func (r *ScalarRenderer) Render(ctx context.Context, src image.Image, trace *Trace) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("scalar filter: no input image")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	start := time.Now()

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("scalar filter: empty image %dx%d", w, h)
	}

	buf := make([]float32, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			red, green, blue, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := 3 * (y*w + x)
			buf[i] = float32(red >> 8)
			buf[i+1] = float32(green >> 8)
			buf[i+2] = float32(blue >> 8)
		}
	}

	for i := 0; i < len(buf); i += 3 {
		buf[i] = clamp255(buf[i] * 0.9)
		buf[i+1] = clamp255(buf[i+1] * 1.1)
		buf[i+2] = clamp255(buf[i+2] * 1.2)
	}

	for i, v := range buf {
		buf[i] = clamp255((v-128)*1.2 + 128)
	}

	lightGaussianBlur(buf, w, h)

	for i, v := range buf {
		buf[i] = clamp255(v * 1.1)
	}

	for i := 0; i < len(buf); i += 3 {
		gray := (buf[i]*299 + buf[i+1]*587 + buf[i+2]*114) / 1000
		buf[i] = clamp255(gray + (buf[i]-gray)*1.2)
		buf[i+1] = clamp255(gray + (buf[i+1]-gray)*1.2)
		buf[i+2] = clamp255(gray + (buf[i+2]-gray)*1.2)
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 3 * (y*w + x)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(buf[i] + 0.5),
				G: uint8(buf[i+1] + 0.5),
				B: uint8(buf[i+2] + 0.5),
				A: 255,
			})
		}
	}

	trace.Record(StageOutcome{
		Level:    LevelScalar,
		Stage:    "scalar_filter",
		Duration: time.Since(start),
	})
	r.logger.Debug("fallback", "Scalar filter applied", map[string]interface{}{
		"width":  w,
		"height": h,
	})
	return out, nil
}

// lightGaussianBlur applies a separable 3-tap Gaussian with sigma 0.5.
// Out-of-range taps clamp to the nearest pixel, so a 1×1 image passes
// through unchanged.
func lightGaussianBlur(buf []float32, w, h int) {
	center := float32(1.0)
	side := float32(math.Exp(-2.0)) // exp(-1 / (2 * 0.5^2))
	norm := center + 2*side
	k0 := side / norm
	k1 := center / norm

	tmp := make([]float32, len(buf))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			left := clampIndex(x-1, w)
			right := clampIndex(x+1, w)
			for c := 0; c < 3; c++ {
				tmp[3*(y*w+x)+c] = k0*buf[3*(y*w+left)+c] +
					k1*buf[3*(y*w+x)+c] +
					k0*buf[3*(y*w+right)+c]
			}
		}
	}

	for y := 0; y < h; y++ {
		up := clampIndex(y-1, h)
		down := clampIndex(y+1, h)
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				buf[3*(y*w+x)+c] = k0*tmp[3*(up*w+x)+c] +
					k1*tmp[3*(y*w+x)+c] +
					k0*tmp[3*(down*w+x)+c]
			}
		}
	}
}

func clamp255(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
