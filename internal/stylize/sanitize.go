package stylize

import (
	"math"

	"ghibli-stylizer/internal/logger"
)

// Sanitizer repairs numeric and shape violations in working buffers. Every
// correction is applied in place and logged as recoverable; nothing here
// returns an error to the caller.
type Sanitizer struct {
	logger logger.Logger
}

func NewSanitizer(log logger.Logger) *Sanitizer {
	return &Sanitizer{logger: log}
}

// ScrubNonFinite replaces NaN and infinite values with 0 and reports how
// many were found.
func (s *Sanitizer) ScrubNonFinite(buf *Tensor, stage string) int {
	replaced := 0
	for i, v := range buf.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			buf.Data[i] = 0
			replaced++
		}
	}

	if replaced > 0 {
		s.logger.Warning("sanitizer", "Non-finite values replaced with zero", map[string]interface{}{
			"stage":    stage,
			"replaced": replaced,
		})
	}
	return replaced
}

// ClampUnit forces every channel value into [0,1].
func (s *Sanitizer) ClampUnit(buf *Tensor) {
	for i, v := range buf.Data {
		if v < 0 {
			buf.Data[i] = 0
		} else if v > 1 {
			buf.Data[i] = 1
		}
	}
}

// Conform builds a three-channel tensor of the expected geometry from raw
// plane data of uncertain shape. A single-channel plane is broadcast across
// all three channels; oversized data is cropped; undersized data is
// zero-filled. Every repair is logged.
func (s *Sanitizer) Conform(data []float32, width, height int) *Tensor {
	t := NewTensor(width, height)
	plane := width * height
	want := 3 * plane

	switch {
	case len(data) == want:
		copy(t.Data, data)

	case len(data) == plane:
		copy(t.Data[:plane], data)
		copy(t.Data[plane:2*plane], data)
		copy(t.Data[2*plane:], data)
		s.logger.Warning("sanitizer", "Single-channel buffer broadcast to three channels", map[string]interface{}{
			"width":  width,
			"height": height,
		})

	case len(data) > want:
		copy(t.Data, data[:want])
		s.logger.Warning("sanitizer", "Oversized buffer cropped to expected shape", map[string]interface{}{
			"got_values":  len(data),
			"want_values": want,
		})

	default:
		copy(t.Data, data)
		s.logger.Warning("sanitizer", "Undersized buffer zero-filled to expected shape", map[string]interface{}{
			"got_values":  len(data),
			"want_values": want,
		})
	}
	return t
}
