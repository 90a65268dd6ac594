package stylize

import (
	"math"
	"testing"

	"ghibli-stylizer/internal/classifier"
)

const tolerance = 1e-5

func almostEqual(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) < float64(tol)
}

func uniformLabels(width, height, class int) *classifier.LabelMap {
	labels := classifier.NewLabelMap(height, width)
	for i := range labels.Labels {
		labels.Labels[i] = int32(class)
	}
	return labels
}

func TestBuildMasksUniformRegion(t *testing.T) {
	bank := BuildMasks(uniformLabels(4, 4, 0), 1)

	if bank.Len() != 1 {
		t.Fatalf("Expected 1 mask, got %d", bank.Len())
	}

	mask, ok := bank.Mask(0)
	if !ok {
		t.Fatal("Expected a mask for class 0")
	}

	// Replicated edges keep a uniformly owned region at full occupancy all
	// the way to the border.
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := mask.At(y, x); !almostEqual(got, 1.0, 1e-6) {
				t.Errorf("mask at (%d,%d) = %v, want 1", y, x, got)
			}
		}
	}
}

func TestBuildMasksAbsentClassAllZero(t *testing.T) {
	bank := BuildMasks(uniformLabels(6, 6, 0), 3)

	if bank.Len() != 3 {
		t.Fatalf("Expected 3 masks, got %d", bank.Len())
	}

	for class := 1; class < 3; class++ {
		mask, ok := bank.Mask(class)
		if !ok {
			t.Fatalf("Expected a mask for class %d", class)
		}
		for i, v := range mask.Data {
			if v != 0 {
				t.Fatalf("class %d mask value %d = %v, want 0", class, i, v)
			}
		}
	}
}

func TestMaskBankOutOfRange(t *testing.T) {
	bank := BuildMasks(uniformLabels(4, 4, 0), 2)

	if _, ok := bank.Mask(-1); ok {
		t.Error("Expected no mask for class -1")
	}
	if _, ok := bank.Mask(2); ok {
		t.Error("Expected no mask for class 2")
	}
}

func TestBuildMasksBoundarySmoothing(t *testing.T) {
	// Left half class 0, right half class 3 on an 8x8 map.
	labels := classifier.NewLabelMap(8, 8)
	for y := 0; y < 8; y++ {
		for x := 4; x < 8; x++ {
			labels.Set(y, x, 3)
		}
	}

	bank := BuildMasks(labels, 4)
	mask, _ := bank.Mask(0)

	// The window at x=3 spans clamped columns {0,0,1..7}; five of the nine
	// taps land on class 0.
	if got := mask.At(0, 3); !almostEqual(got, 5.0/9.0, tolerance) {
		t.Errorf("mask at (0,3) = %v, want %v", got, 5.0/9.0)
	}
	// At x=0 replication stacks four extra copies of column 0.
	if got := mask.At(0, 0); !almostEqual(got, 8.0/9.0, tolerance) {
		t.Errorf("mask at (0,0) = %v, want %v", got, 8.0/9.0)
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if v := mask.At(y, x); v < 0 || v > 1 {
				t.Fatalf("mask at (%d,%d) = %v, outside [0,1]", y, x, v)
			}
		}
	}
}

func TestBuildMasksPartitionCoversFrame(t *testing.T) {
	// Two classes partition the frame; smoothing is linear, so per-pixel
	// occupancy still sums to one everywhere.
	labels := classifier.NewLabelMap(8, 8)
	for y := 0; y < 8; y++ {
		for x := 4; x < 8; x++ {
			labels.Set(y, x, 1)
		}
	}

	bank := BuildMasks(labels, 2)
	m0, _ := bank.Mask(0)
	m1, _ := bank.Mask(1)

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			sum := m0.At(y, x) + m1.At(y, x)
			if !almostEqual(sum, 1.0, tolerance) {
				t.Errorf("occupancy sum at (%d,%d) = %v, want 1", y, x, sum)
			}
		}
	}
}

func TestBuildMasksNoRenormalization(t *testing.T) {
	// Labels outside [0, numClasses) never get a mask, so per-pixel sums
	// over the bank fall short of one near those pixels and nothing rescales
	// them back up.
	labels := classifier.NewLabelMap(4, 16)
	for y := 0; y < 4; y++ {
		for x := 12; x < 16; x++ {
			labels.Set(y, x, 7)
		}
	}

	bank := BuildMasks(labels, 2)

	sumAt := func(y, x int) float32 {
		var sum float32
		for class := 0; class < bank.Len(); class++ {
			mask, _ := bank.Mask(class)
			sum += mask.At(y, x)
		}
		return sum
	}

	if sum := sumAt(0, 15); sum > 0.5 {
		t.Errorf("occupancy sum at (0,15) = %v, want well below 1", sum)
	}
	if sum := sumAt(0, 0); !almostEqual(sum, 1.0, tolerance) {
		t.Errorf("occupancy sum at (0,0) = %v, want 1", sum)
	}
}
