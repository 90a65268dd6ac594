package stylize

import (
	"ghibli-stylizer/internal/classifier"
)

// maskSmoothRadius is the half-width of the occupancy smoothing kernel, so
// the full kernel spans 9×9 pixels.
const maskSmoothRadius = 4

// Mask is a single-channel float plane, row-major.
type Mask struct {
	Width  int
	Height int
	Data   []float32
}

func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

func (m *Mask) At(y, x int) float32 {
	return m.Data[y*m.Width+x]
}

func (m *Mask) Set(y, x int, v float32) {
	m.Data[y*m.Width+x] = v
}

// MaskBank holds one smoothed occupancy mask per class id, indexed densely
// from 0. Classes absent from the label map still get an all-zero mask, so
// lookups by id stay valid up to Len()-1.
type MaskBank struct {
	Width  int
	Height int
	masks  []*Mask
}

func (b *MaskBank) Len() int { return len(b.masks) }

// Mask returns the smoothed mask for a class id. Ids outside [0, Len())
// report ok=false; callers treat that as a silent skip.
func (b *MaskBank) Mask(class int) (*Mask, bool) {
	if class < 0 || class >= len(b.masks) {
		return nil, false
	}
	return b.masks[class], true
}

// BuildMasks derives one smoothed mask per class from the label map. Each
// class indicator is box-averaged with a 9×9 kernel, stride 1, edges
// replicated, so a region uniformly owned by one class keeps mask value 1
// all the way to the border. Masks are not renormalized across classes;
// values near boundaries overlap on purpose.
func BuildMasks(labels *classifier.LabelMap, numClasses int) *MaskBank {
	w, h := labels.Width, labels.Height
	bank := &MaskBank{Width: w, Height: h, masks: make([]*Mask, numClasses)}

	indicator := make([]float32, w*h)
	scratch := make([]float32, w*h)

	for class := 0; class < numClasses; class++ {
		mask := NewMask(w, h)

		for i, label := range labels.Labels {
			if int(label) == class {
				indicator[i] = 1
			} else {
				indicator[i] = 0
			}
		}

		boxSmoothReplicate(indicator, scratch, mask.Data, w, h, maskSmoothRadius)
		bank.masks[class] = mask
	}
	return bank
}

// boxSmoothReplicate runs a separable box average over src into dst using
// tmp as the intermediate plane. Out-of-range taps clamp to the nearest
// edge sample. Each pass keeps a sliding window sum per row or column.
func boxSmoothReplicate(src, tmp, dst []float32, w, h, radius int) {
	k := float32(2*radius + 1)

	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := tmp[y*w : (y+1)*w]

		var sum float32
		for d := -radius; d <= radius; d++ {
			sum += row[clampIndex(d, w)]
		}
		out[0] = sum / k
		for x := 1; x < w; x++ {
			sum += row[clampIndex(x+radius, w)] - row[clampIndex(x-radius-1, w)]
			out[x] = sum / k
		}
	}

	for x := 0; x < w; x++ {
		var sum float32
		for d := -radius; d <= radius; d++ {
			sum += tmp[clampIndex(d, h)*w+x]
		}
		dst[x] = sum / k
		for y := 1; y < h; y++ {
			sum += tmp[clampIndex(y+radius, h)*w+x] - tmp[clampIndex(y-radius-1, h)*w+x]
			dst[y*w+x] = sum / k
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
