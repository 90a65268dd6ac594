package stylize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"ghibli-stylizer/internal/classifier"
	"ghibli-stylizer/internal/logger"
)

// Engine is the full-quality pipeline: classifier inference, mask smoothing,
// region grading, the global grade and edge-aware detail blending. Its
// output keeps the classifier geometry and is not rescaled to the source
// size; the fallback levels below it preserve original resolution.
type Engine struct {
	scorer    classifier.Scorer
	groups    Groups
	sanitizer *Sanitizer
	guard     ResourceGuard
	logger    logger.Logger
}

// NewEngine wires the full pipeline. scorer may be nil when no model is
// loaded; rendering then fails at the inference stage and the chain
// descends. A nil guard is replaced with NopGuard.
func NewEngine(scorer classifier.Scorer, groups Groups, guard ResourceGuard, log logger.Logger) *Engine {
	if guard == nil {
		guard = NopGuard{}
	}
	return &Engine{
		scorer:    scorer,
		groups:    groups,
		sanitizer: NewSanitizer(log),
		guard:     guard,
		logger:    log,
	}
}

func (e *Engine) Level() Level { return LevelFull }

// Render runs the staged pipeline over src. Each stage reports its outcome
// into the trace; the first failure is wrapped in its taxonomy error and
// returned so the chain can descend.
func (e *Engine) Render(ctx context.Context, src image.Image, trace *Trace) (image.Image, error) {
	bounds := src.Bounds()
	e.logger.Info("engine", "Starting full pipeline", map[string]interface{}{
		"width":  bounds.Dx(),
		"height": bounds.Dy(),
	})

	var (
		input   *classifier.Input
		working *Tensor
	)
	err := e.runStage(ctx, trace, "preprocess", func() error {
		input = classifier.PrepareInput(src)
		working = FromImage(input.Image)
		return nil
	})
	if err != nil {
		return nil, &PreprocessError{Err: err}
	}

	var scores *classifier.ScoreMap
	err = e.runStage(ctx, trace, "inference", func() error {
		if e.scorer == nil {
			return errors.New("classifier not available")
		}
		var scoreErr error
		scores, scoreErr = e.scorer.Score(ctx, input)
		return scoreErr
	})
	if err != nil {
		infErr := newInferenceError(err)
		if infErr.ResourceExhausted {
			e.guard.Release()
		}
		return nil, infErr
	}

	var (
		labels *classifier.LabelMap
		bank   *MaskBank
	)
	err = e.runStage(ctx, trace, "masks", func() error {
		labels = scores.ArgmaxLabels()
		bank = BuildMasks(labels, scores.Classes)
		return nil
	})
	if err != nil {
		return nil, &GradingError{Stage: "masks", Err: err}
	}

	err = e.runStage(ctx, trace, "region_grading", func() error {
		if gradeErr := ApplyRegionGrades(working, bank, e.groups); gradeErr != nil {
			return gradeErr
		}
		e.sanitizer.ScrubNonFinite(working, "region_grading")
		return nil
	})
	if err != nil {
		return nil, &GradingError{Stage: "region_grading", Err: err}
	}

	err = e.runStage(ctx, trace, "global_grade", func() error {
		ApplyGlobalGrade(working)
		e.sanitizer.ScrubNonFinite(working, "global_grade")
		return nil
	})
	if err != nil {
		return nil, &GradingError{Stage: "global_grade", Err: err}
	}

	err = e.runStage(ctx, trace, "detail_blend", func() error {
		edges := BuildEdgeMap(labels)
		if blendErr := ApplyDetailBlend(working, edges); blendErr != nil {
			return blendErr
		}
		e.sanitizer.ScrubNonFinite(working, "detail_blend")
		return nil
	})
	if err != nil {
		return nil, &GradingError{Stage: "detail_blend", Err: err}
	}

	var out image.Image
	err = e.runStage(ctx, trace, "postprocess", func() error {
		working = e.sanitizer.Conform(working.Data, working.Width, working.Height)
		e.sanitizer.ClampUnit(working)
		out = working.ToImage()
		return nil
	})
	if err != nil {
		return nil, &PostprocessError{Err: err}
	}

	return out, nil
}

// runStage executes one pipeline stage with cancellation, timing and panic
// isolation. The outcome is recorded in the trace and the duration handed to
// the guard either way.
func (e *Engine) runStage(ctx context.Context, trace *Trace, name string, fn func() error) (err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage %s panicked: %v", name, rec)
		}
		e.guard.RecordStageDuration(name, elapsed)
		trace.Record(StageOutcome{
			Level:    LevelFull,
			Stage:    name,
			Duration: elapsed,
			Err:      err,
		})
	}()
	return fn()
}
