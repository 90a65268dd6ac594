package stylize

import (
	"image"
	"image/color"
	"testing"
)

func TestFromImageScalesToUnit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 51, G: 102, B: 204, A: 255})

	buf := FromImage(img)

	if got := buf.At(0, 0, 0); !almostEqual(got, 0.2, tolerance) {
		t.Errorf("red = %v, want 0.2", got)
	}
	if got := buf.At(1, 0, 0); !almostEqual(got, 0.4, tolerance) {
		t.Errorf("green = %v, want 0.4", got)
	}
	if got := buf.At(2, 0, 0); !almostEqual(got, 0.8, tolerance) {
		t.Errorf("blue = %v, want 0.8", got)
	}
}

func TestFromImageHonorsBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 12, 22))
	img.SetRGBA(10, 20, color.RGBA{R: 255, A: 255})

	buf := FromImage(img)

	if buf.Width != 2 || buf.Height != 2 {
		t.Fatalf("tensor is %dx%d, want 2x2", buf.Width, buf.Height)
	}
	if got := buf.At(0, 0, 0); !almostEqual(got, 1.0, tolerance) {
		t.Errorf("red at origin = %v, want 1", got)
	}
}

func TestToImageQuantizationTruncates(t *testing.T) {
	tests := []struct {
		value float32
		want  uint8
	}{
		{0, 0},
		{-0.5, 0},
		{0.5, 127},
		{0.999, 254},
		{1.0, 255},
		{1.5, 255},
	}

	for _, tt := range tests {
		buf := NewTensor(1, 1)
		buf.Data[0] = tt.value
		buf.Data[1] = tt.value
		buf.Data[2] = tt.value

		img := buf.ToImage()
		got := img.RGBAAt(0, 0)
		if got.R != tt.want {
			t.Errorf("quantize(%v) = %d, want %d", tt.value, got.R, tt.want)
		}
		if got.A != 255 {
			t.Errorf("alpha for %v = %d, want 255", tt.value, got.A)
		}
	}
}

func TestTensorCloneIndependent(t *testing.T) {
	buf := uniformTensor(2, 2, 0.1, 0.2, 0.3)
	clone := buf.Clone()
	clone.Set(0, 0, 0, 0.9)

	if got := buf.At(0, 0, 0); got != 0.1 {
		t.Errorf("original mutated to %v", got)
	}
}

func TestTensorPlaneAliasesBuffer(t *testing.T) {
	buf := NewTensor(2, 2)
	buf.Plane(1)[3] = 0.75

	if got := buf.At(1, 1, 1); got != 0.75 {
		t.Errorf("At = %v, want 0.75 after writing through the plane", got)
	}
}
