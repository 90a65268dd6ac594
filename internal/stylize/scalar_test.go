package stylize

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"ghibli-stylizer/internal/logger"
)

func TestScalarFilterSinglePixel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	r := NewScalarRenderer(logger.NewDiscard())
	trace := &Trace{}
	out, err := r.Render(context.Background(), img, trace)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := out.Bounds()
	if bounds.Dx() != 1 || bounds.Dy() != 1 {
		t.Fatalf("output is %dx%d, want 1x1", bounds.Dx(), bounds.Dy())
	}

	px := out.(*image.RGBA).RGBAAt(0, 0)
	if px.A != 255 {
		t.Errorf("alpha = %d, want 255", px.A)
	}
	// The palette shift orders a neutral gray into a blue-leaning ramp.
	if !(px.B > px.G && px.G > px.R) {
		t.Errorf("channels = (%d,%d,%d), want blue > green > red", px.R, px.G, px.B)
	}

	if len(trace.Outcomes()) != 1 || trace.Outcomes()[0].Stage != "scalar_filter" {
		t.Error("Expected one scalar_filter outcome in the trace")
	}
}

func TestScalarFilterPreservesSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 5))
	r := NewScalarRenderer(logger.NewDiscard())

	out, err := r.Render(context.Background(), img, &Trace{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := out.Bounds()
	if bounds.Dx() != 7 || bounds.Dy() != 5 {
		t.Errorf("output is %dx%d, want 7x5", bounds.Dx(), bounds.Dy())
	}
}

func TestScalarFilterBlackStaysBlack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetRGBA(x, y, color.RGBA{A: 255})
		}
	}

	r := NewScalarRenderer(logger.NewDiscard())
	out, err := r.Render(context.Background(), img, &Trace{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	px := out.(*image.RGBA).RGBAAt(0, 0)
	if px.R != 0 || px.G != 0 || px.B != 0 {
		t.Errorf("black input produced (%d,%d,%d), want (0,0,0)", px.R, px.G, px.B)
	}
}

func TestScalarFilterWhiteStaysValid(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	r := NewScalarRenderer(logger.NewDiscard())
	out, err := r.Render(context.Background(), img, &Trace{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out.(*image.RGBA).RGBAAt(1, 1).A != 255 {
		t.Error("Expected opaque output")
	}
}

func TestScalarFilterRejectsDegenerateInput(t *testing.T) {
	r := NewScalarRenderer(logger.NewDiscard())

	if _, err := r.Render(context.Background(), nil, &Trace{}); err == nil {
		t.Error("Expected an error for nil input")
	}

	empty := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if _, err := r.Render(context.Background(), empty, &Trace{}); err == nil {
		t.Error("Expected an error for an empty image")
	}
}

func TestScalarFilterHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewScalarRenderer(logger.NewDiscard())
	if _, err := r.Render(ctx, testImage(2, 2), &Trace{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
