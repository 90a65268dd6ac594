package stylize

import (
	"fmt"

	"ghibli-stylizer/internal/classifier"
)

// detailBlurRadius is the half-width of the softening kernel, giving the
// 5×5 window used on class-homogeneous regions.
const detailBlurRadius = 2

// BuildEdgeMap marks pixels whose class differs from any 4-connected
// neighbor. Only interior pixels are examined, so border rows and columns
// are always 0.
func BuildEdgeMap(labels *classifier.LabelMap) *Mask {
	w, h := labels.Width, labels.Height
	edges := NewMask(w, h)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := labels.Labels[y*w+x]
			if c != labels.Labels[(y-1)*w+x] ||
				c != labels.Labels[(y+1)*w+x] ||
				c != labels.Labels[y*w+x-1] ||
				c != labels.Labels[y*w+x+1] {
				edges.Data[y*w+x] = 1
			}
		}
	}
	return edges
}

// ApplyDetailBlend softens class-homogeneous regions while keeping boundary
// pixels sharp. Each channel is blurred with a uniform 5×5 kernel of fixed
// weight 1/25 over zero padding, then composited against the original by
// edge strength: boundary pixels keep the graded value, interior pixels take
// the blur.
func ApplyDetailBlend(buf *Tensor, edges *Mask) error {
	if edges.Width != buf.Width || edges.Height != buf.Height {
		return fmt.Errorf("edge map is %dx%d, buffer is %dx%d",
			edges.Width, edges.Height, buf.Width, buf.Height)
	}

	w, h := buf.Width, buf.Height
	tmp := make([]float32, w*h)
	blurred := make([]float32, w*h)

	for c := 0; c < 3; c++ {
		plane := buf.Plane(c)
		boxBlurZeroPad(plane, tmp, blurred, w, h, detailBlurRadius)

		for i, e := range edges.Data {
			plane[i] = e*plane[i] + (1-e)*blurred[i]
		}
	}
	return nil
}

// boxBlurZeroPad runs a separable box filter whose weights stay fixed at
// 1/(2r+1) per tap; taps outside the plane contribute zero rather than
// renormalizing the kernel at the borders.
func boxBlurZeroPad(src, tmp, dst []float32, w, h, radius int) {
	k := float32(2*radius + 1)

	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := tmp[y*w : (y+1)*w]

		var sum float32
		for d := 0; d <= radius && d < w; d++ {
			sum += row[d]
		}
		out[0] = sum / k
		for x := 1; x < w; x++ {
			if x+radius < w {
				sum += row[x+radius]
			}
			if x-radius-1 >= 0 {
				sum -= row[x-radius-1]
			}
			out[x] = sum / k
		}
	}

	for x := 0; x < w; x++ {
		var sum float32
		for d := 0; d <= radius && d < h; d++ {
			sum += tmp[d*w+x]
		}
		dst[x] = sum / k
		for y := 1; y < h; y++ {
			if y+radius < h {
				sum += tmp[(y+radius)*w+x]
			}
			if y-radius-1 >= 0 {
				sum -= tmp[(y-radius-1)*w+x]
			}
			dst[y*w+x] = sum / k
		}
	}
}
