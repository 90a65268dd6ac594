package stylize

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"ghibli-stylizer/internal/classifier"
	"ghibli-stylizer/internal/logger"
)

// fakeScorer favors class 0 at every pixel.
type fakeScorer struct {
	classes int
	err     error
	calls   int
}

func (f *fakeScorer) Score(ctx context.Context, input *classifier.Input) (*classifier.ScoreMap, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	scores := classifier.NewScoreMap(f.classes, classifier.InputSize, classifier.InputSize)
	plane := classifier.InputSize * classifier.InputSize
	for i := 0; i < plane; i++ {
		scores.Data[i] = 1
	}
	return scores, nil
}

func (f *fakeScorer) NumClasses() int { return f.classes }

func (f *fakeScorer) Close() {}

var pipelineStages = []string{
	"preprocess", "inference", "masks", "region_grading", "global_grade", "detail_blend", "postprocess",
}

func TestEngineRunsAllStages(t *testing.T) {
	scorer := &fakeScorer{classes: 3}
	guard := &spyGuard{}
	engine := NewEngine(scorer, Groups{Sky: []int{0}}, guard, logger.NewDiscard())

	trace := &Trace{}
	out, err := engine.Render(context.Background(), testImage(64, 64), trace)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := out.Bounds()
	if bounds.Dx() != classifier.InputSize || bounds.Dy() != classifier.InputSize {
		t.Errorf("output is %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), classifier.InputSize, classifier.InputSize)
	}

	outcomes := trace.Outcomes()
	if len(outcomes) != len(pipelineStages) {
		t.Fatalf("Expected %d stage outcomes, got %d", len(pipelineStages), len(outcomes))
	}
	for i, want := range pipelineStages {
		if outcomes[i].Stage != want {
			t.Errorf("stage %d = %q, want %q", i, outcomes[i].Stage, want)
		}
		if outcomes[i].Err != nil {
			t.Errorf("stage %q failed: %v", want, outcomes[i].Err)
		}
		if outcomes[i].Level != LevelFull {
			t.Errorf("stage %q level = %v, want %v", want, outcomes[i].Level, LevelFull)
		}
	}

	if len(guard.stages) != len(pipelineStages) {
		t.Errorf("guard saw %d stage durations, want %d", len(guard.stages), len(pipelineStages))
	}
}

func TestEngineGradesSkyRegions(t *testing.T) {
	scorer := &fakeScorer{classes: 3}
	engine := NewEngine(scorer, Groups{Sky: []int{0}}, nil, logger.NewDiscard())

	src := image.NewRGBA(image.Rect(0, 0, classifier.InputSize, classifier.InputSize))
	for y := 0; y < classifier.InputSize; y++ {
		for x := 0; x < classifier.InputSize; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 51, G: 51, B: 204, A: 255})
		}
	}

	out, err := engine.Render(context.Background(), src, &Trace{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	rgba, ok := out.(*image.RGBA)
	if !ok {
		t.Fatalf("Expected *image.RGBA output, got %T", out)
	}

	center := rgba.RGBAAt(classifier.InputSize/2, classifier.InputSize/2)
	if center.B < 200 {
		t.Errorf("center blue = %d, want the sky push above 200", center.B)
	}
	if center.R >= center.B {
		t.Errorf("center red %d not below blue %d", center.R, center.B)
	}
}

func TestEngineScorerFailure(t *testing.T) {
	scorer := &fakeScorer{classes: 3, err: errors.New("backend exploded")}
	guard := &spyGuard{}
	engine := NewEngine(scorer, Groups{}, guard, logger.NewDiscard())

	_, err := engine.Render(context.Background(), testImage(16, 16), &Trace{})
	if err == nil {
		t.Fatal("Expected an inference error")
	}

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected *InferenceError, got %T", err)
	}
	if infErr.ResourceExhausted {
		t.Error("Plain failure marked as resource exhaustion")
	}
	if guard.releases != 0 {
		t.Errorf("guard released %d times, want 0", guard.releases)
	}
}

func TestEngineResourceExhaustionReleasesGuard(t *testing.T) {
	scorer := &fakeScorer{classes: 3, err: errors.New("failed to allocate output tensor")}
	guard := &spyGuard{}
	engine := NewEngine(scorer, Groups{}, guard, logger.NewDiscard())

	_, err := engine.Render(context.Background(), testImage(16, 16), &Trace{})

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected *InferenceError, got %v", err)
	}
	if !infErr.ResourceExhausted {
		t.Error("Expected the allocation failure flagged as resource exhaustion")
	}
	if guard.releases != 1 {
		t.Errorf("guard released %d times, want 1", guard.releases)
	}
}

func TestEngineNilScorer(t *testing.T) {
	engine := NewEngine(nil, Groups{}, nil, logger.NewDiscard())

	_, err := engine.Render(context.Background(), testImage(16, 16), &Trace{})

	var infErr *InferenceError
	if !errors.As(err, &infErr) {
		t.Fatalf("Expected *InferenceError, got %v", err)
	}
}

func TestEngineHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scorer := &fakeScorer{classes: 3}
	engine := NewEngine(scorer, Groups{}, nil, logger.NewDiscard())

	_, err := engine.Render(ctx, testImage(16, 16), &Trace{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if scorer.calls != 0 {
		t.Errorf("scorer called %d times after cancellation, want 0", scorer.calls)
	}
}
