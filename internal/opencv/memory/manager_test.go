package memory

import (
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"ghibli-stylizer/internal/classifier"
	"ghibli-stylizer/internal/logger"
)

func TestGetMatRefusesOverBudget(t *testing.T) {
	m := NewManager(logger.NewDiscard(), 1024)
	defer m.Shutdown()

	// 100x100x3 bytes is far past a 1 KiB budget; the refusal happens
	// before any native allocation.
	mat, err := m.GetMat(100, 100, gocv.MatTypeCV8UC3, "oversized_blob")
	if err == nil {
		m.ReleaseMat(mat)
		t.Fatal("Expected an over-budget allocation to fail")
	}
	if !strings.Contains(err.Error(), "insufficient memory") {
		t.Errorf("Unexpected error: %v", err)
	}
	if !classifier.IsResourceExhausted(err) {
		t.Error("Expected the refusal to read as resource exhaustion")
	}

	if used := m.UsedMemory(); used != 0 {
		t.Errorf("UsedMemory = %d after refusal, want 0", used)
	}
	if count := m.ActiveMatCount(); count != 0 {
		t.Errorf("ActiveMatCount = %d after refusal, want 0", count)
	}
}

func TestReleaseMatNil(t *testing.T) {
	m := NewManager(logger.NewDiscard(), 1024)
	defer m.Shutdown()

	m.ReleaseMat(nil)

	alloc, released, used := m.GetStats()
	if alloc != 0 || released != 0 || used != 0 {
		t.Errorf("Stats = (%d, %d, %d), want all zero", alloc, released, used)
	}
}

func TestStageDurationsCopied(t *testing.T) {
	m := NewManager(logger.NewDiscard(), 1024)
	defer m.Shutdown()

	m.RecordStageDuration("inference", 250*time.Millisecond)

	first := m.StageDurations()
	first["inference"] = 0
	first["forged"] = time.Second

	second := m.StageDurations()
	if second["inference"] != 250*time.Millisecond {
		t.Errorf("inference = %v, want 250ms", second["inference"])
	}
	if _, ok := second["forged"]; ok {
		t.Error("Mutating the returned map leaked into the manager")
	}
}

func TestMatTypeSizes(t *testing.T) {
	tests := []struct {
		matType gocv.MatType
		want    int
	}{
		{gocv.MatTypeCV8UC1, 1},
		{gocv.MatTypeCV8UC3, 3},
		{gocv.MatTypeCV8UC4, 4},
		{gocv.MatTypeCV32FC1, 4},
		{gocv.MatTypeCV32FC3, 12},
		{gocv.MatTypeCV32FC4, 16},
	}

	for _, tc := range tests {
		if got := matTypeSize(tc.matType); got != tc.want {
			t.Errorf("matTypeSize(%v) = %d, want %d", tc.matType, got, tc.want)
		}
	}
}
