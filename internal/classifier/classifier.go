// Package classifier wraps the semantic segmentation model behind a scorer
// contract. The stylization pipeline treats the model as a black box: a
// fixed-size normalized input goes in, per-class pixel scores come out.
// Class semantics (which ids mean sky, vegetation, foreground) are not
// interpreted here.
package classifier

import (
	"context"
	"errors"
	"image"
	"strings"
)

// InputSize is the fixed edge length of the model input in pixels.
const InputSize = 512

// Input carries one preprocessed frame in the two representations the
// bindings consume: the resized image itself and the channel-normalized
// CHW tensor derived from it.
type Input struct {
	Image image.Image // InputSize×InputSize RGB
	Data  []float32   // 3×InputSize×InputSize, ImageNet-normalized planes
}

// ScoreMap holds raw per-class scores, shape [Classes, Height, Width].
type ScoreMap struct {
	Classes int
	Height  int
	Width   int
	Data    []float32
}

func NewScoreMap(classes, height, width int) *ScoreMap {
	return &ScoreMap{
		Classes: classes,
		Height:  height,
		Width:   width,
		Data:    make([]float32, classes*height*width),
	}
}

func (m *ScoreMap) At(class, y, x int) float32 {
	return m.Data[(class*m.Height+y)*m.Width+x]
}

func (m *ScoreMap) Set(class, y, x int, v float32) {
	m.Data[(class*m.Height+y)*m.Width+x] = v
}

// LabelMap assigns each pixel its best-scoring class id.
type LabelMap struct {
	Height int
	Width  int
	Labels []int32
}

func NewLabelMap(height, width int) *LabelMap {
	return &LabelMap{
		Height: height,
		Width:  width,
		Labels: make([]int32, height*width),
	}
}

func (m *LabelMap) At(y, x int) int {
	return int(m.Labels[y*m.Width+x])
}

func (m *LabelMap) Set(y, x, class int) {
	m.Labels[y*m.Width+x] = int32(class)
}

// ArgmaxLabels collapses the class axis to a per-pixel winner. Ties keep the
// lowest class id.
func (m *ScoreMap) ArgmaxLabels() *LabelMap {
	labels := NewLabelMap(m.Height, m.Width)
	plane := m.Height * m.Width

	for i := 0; i < plane; i++ {
		best := m.Data[i]
		bestClass := int32(0)
		for c := 1; c < m.Classes; c++ {
			v := m.Data[c*plane+i]
			if v > best {
				best = v
				bestClass = int32(c)
			}
		}
		labels.Labels[i] = bestClass
	}
	return labels
}

// Scorer is the segmentation model contract. Implementations are expected to
// serialize access internally when the underlying runtime is not safe for
// concurrent invocation.
type Scorer interface {
	Score(ctx context.Context, input *Input) (*ScoreMap, error)
	NumClasses() int
	Close()
}

// ErrResourceExhausted marks inference failures caused by device or native
// memory pressure, so callers can release caches before degrading.
var ErrResourceExhausted = errors.New("inference resources exhausted")

var exhaustionMarkers = []string{
	"out of memory",
	"failed to allocate",
	"cuda error",
	"insufficient memory",
	"resource exhausted",
}

// IsResourceExhausted reports whether err is the exhaustion sentinel or a
// third-party error whose message indicates allocation failure.
func IsResourceExhausted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrResourceExhausted) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range exhaustionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
