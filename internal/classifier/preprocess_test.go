package classifier

import (
	"image"
	"image/color"
	"math"
	"testing"
)

const preprocessTolerance = 1e-4

func almostEqual(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func grayImage(width, height int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestPrepareInputNormalization(t *testing.T) {
	input := PrepareInput(grayImage(InputSize, InputSize, 128))

	plane := InputSize * InputSize
	if len(input.Data) != 3*plane {
		t.Fatalf("Data length = %d, want %d", len(input.Data), 3*plane)
	}

	v := float32(128) / 255.0
	wantR := (v - 0.485) / 0.229
	wantG := (v - 0.456) / 0.224
	wantB := (v - 0.406) / 0.225

	if got := input.Data[0]; !almostEqual(got, wantR, preprocessTolerance) {
		t.Errorf("red plane = %v, want %v", got, wantR)
	}
	if got := input.Data[plane]; !almostEqual(got, wantG, preprocessTolerance) {
		t.Errorf("green plane = %v, want %v", got, wantG)
	}
	if got := input.Data[2*plane]; !almostEqual(got, wantB, preprocessTolerance) {
		t.Errorf("blue plane = %v, want %v", got, wantB)
	}
}

func TestPrepareInputResizesOddGeometry(t *testing.T) {
	input := PrepareInput(grayImage(100, 37, 200))

	bounds := input.Image.Bounds()
	if bounds.Dx() != InputSize || bounds.Dy() != InputSize {
		t.Errorf("resized image is %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), InputSize, InputSize)
	}
	if len(input.Data) != 3*InputSize*InputSize {
		t.Errorf("Data length = %d, want %d", len(input.Data), 3*InputSize*InputSize)
	}
}

func TestResizeToInputIdentity(t *testing.T) {
	img := grayImage(InputSize, InputSize, 50)
	if got := ResizeToInput(img); got != image.Image(img) {
		t.Error("Expected an already-sized image to pass through unscaled")
	}
}
