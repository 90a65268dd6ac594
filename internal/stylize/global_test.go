package stylize

import "testing"

func TestGlobalGradeMidtone(t *testing.T) {
	buf := uniformTensor(2, 2, 0.5, 0.5, 0.5)
	ApplyGlobalGrade(buf)

	// Midtones pass the stretch unchanged and then take the pastel blend.
	if got := buf.At(0, 0, 0); !almostEqual(got, 0.428, tolerance) {
		t.Errorf("red = %v, want 0.428", got)
	}
	if got := buf.At(1, 0, 0); !almostEqual(got, 0.428, tolerance) {
		t.Errorf("green = %v, want 0.428", got)
	}
	if got := buf.At(2, 0, 0); !almostEqual(got, 0.4325, tolerance) {
		t.Errorf("blue = %v, want 0.4325", got)
	}
}

func TestGlobalGradeClampsExtremes(t *testing.T) {
	buf := uniformTensor(2, 2, 0.0, 1.0, 1.0)
	ApplyGlobalGrade(buf)

	if got := buf.At(0, 0, 0); !almostEqual(got, 0.003, tolerance) {
		t.Errorf("red = %v, want 0.003", got)
	}
	if got := buf.At(1, 0, 0); !almostEqual(got, 0.853, tolerance) {
		t.Errorf("green = %v, want 0.853", got)
	}
	if got := buf.At(2, 0, 0); !almostEqual(got, 0.8575, tolerance) {
		t.Errorf("blue = %v, want 0.8575", got)
	}
}

func TestGlobalGradeStaysInRange(t *testing.T) {
	buf := NewTensor(16, 1)
	for c := 0; c < 3; c++ {
		for x := 0; x < 16; x++ {
			buf.Set(c, 0, x, float32(x)/15.0)
		}
	}

	ApplyGlobalGrade(buf)

	for i, v := range buf.Data {
		if v < 0 || v > 1 {
			t.Fatalf("value %d = %v, outside [0,1]", i, v)
		}
	}
}
