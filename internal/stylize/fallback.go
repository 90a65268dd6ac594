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

// Level identifies one rung of the degradation ladder. Lower values mean
// higher output quality.
type Level int

const (
	// LevelFull runs classifier inference and the complete grading pipeline
	// at the classifier's fixed resolution.
	LevelFull Level = iota
	// LevelAccelerated applies the segmentation-free filter on the
	// accelerator at the image's original resolution.
	LevelAccelerated
	// LevelScalar applies the simplest portable filter; it must succeed for
	// any decodable image.
	LevelScalar
	// LevelIdentity returns the input unchanged.
	LevelIdentity
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "full_pipeline"
	case LevelAccelerated:
		return "accelerated_filter"
	case LevelScalar:
		return "scalar_filter"
	case LevelIdentity:
		return "identity"
	default:
		return fmt.Sprintf("level_%d", int(l))
	}
}

// StageOutcome records one stage attempt: where it ran, how long it took and
// whether it failed. Outcomes are diagnostic only and never drive control
// flow on their own.
type StageOutcome struct {
	Level    Level
	Stage    string
	Duration time.Duration
	Err      error
}

// Trace accumulates stage outcomes across every level attempted during one
// stylization call.
type Trace struct {
	outcomes []StageOutcome
}

func (t *Trace) Record(o StageOutcome) {
	t.outcomes = append(t.outcomes, o)
}

func (t *Trace) Outcomes() []StageOutcome {
	return t.outcomes
}

// PipelineResult is the product of one stylization call: the output image,
// the level that produced it and the per-stage timings gathered on the way.
type PipelineResult struct {
	Image  image.Image
	Level  Level
	Stages []StageOutcome
}

// Renderer is one degradation level of the chain.
type Renderer interface {
	Level() Level
	Render(ctx context.Context, src image.Image, trace *Trace) (image.Image, error)
}

// ResourceGuard manages accelerator memory around compute-heavy stages.
// Release drops cached device memory and forces a collection pass; Reset
// reinitializes the guard's accounting entirely. Stage durations are
// recorded for observability and never influence control decisions.
type ResourceGuard interface {
	Release()
	Reset()
	RecordStageDuration(stage string, d time.Duration)
}

// NopGuard is a ResourceGuard that does nothing. It stands in when no
// accelerator is configured.
type NopGuard struct{}

func (NopGuard) Release() {}

func (NopGuard) Reset() {}

func (NopGuard) RecordStageDuration(string, time.Duration) {}

// Chain walks its renderers top-down, returning the first successful
// result. Descent is strictly monotonic: a failed level is never retried,
// and every failure hands control to the next rung. Only when the last
// level fails does the caller see an error.
type Chain struct {
	levels []Renderer
	guard  ResourceGuard
	logger logger.Logger
}

// NewChain builds a chain over the given renderers, kept in the order
// supplied. A nil guard is replaced with NopGuard.
func NewChain(guard ResourceGuard, log logger.Logger, levels ...Renderer) *Chain {
	if guard == nil {
		guard = NopGuard{}
	}
	return &Chain{levels: levels, guard: guard, logger: log}
}

// Stylize runs src through the chain. The context bounds the entire call;
// cancellation aborts immediately and is reported to the caller rather than
// triggering descent.
func (c *Chain) Stylize(ctx context.Context, src image.Image) (*PipelineResult, error) {
	if src == nil {
		return nil, fmt.Errorf("stylize: no input image")
	}
	if len(c.levels) == 0 {
		return nil, fmt.Errorf("stylize: no levels configured")
	}

	trace := &Trace{}
	var lastErr error

	for _, renderer := range c.levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		out, err := c.renderLevel(ctx, renderer, src, trace)
		elapsed := time.Since(start)

		if err == nil {
			c.logger.Info("fallback", "Stylization level succeeded", map[string]interface{}{
				"level":       renderer.Level().String(),
				"duration_ms": elapsed.Milliseconds(),
			})
			return &PipelineResult{
				Image:  out,
				Level:  renderer.Level(),
				Stages: trace.Outcomes(),
			}, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if classifier.IsResourceExhausted(err) {
			c.logger.Warning("fallback", "Resource exhaustion detected, releasing device memory", map[string]interface{}{
				"level": renderer.Level().String(),
			})
			c.guard.Release()
		}

		c.logger.Warning("fallback", "Stylization level failed, descending", map[string]interface{}{
			"level": renderer.Level().String(),
			"error": err.Error(),
		})
		lastErr = err
	}

	return nil, fmt.Errorf("all stylization levels failed: %w", lastErr)
}

// renderLevel isolates one renderer attempt, converting panics into errors
// so a crashing level degrades instead of taking the process down.
func (c *Chain) renderLevel(ctx context.Context, r Renderer, src image.Image, trace *Trace) (out image.Image, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("level %s panicked: %v", r.Level(), rec)
			trace.Record(StageOutcome{Level: r.Level(), Stage: "render", Err: err})
		}
	}()
	return r.Render(ctx, src, trace)
}

// IdentityRenderer is the terminal level: it hands back the source image
// untouched.
type IdentityRenderer struct{}

func (IdentityRenderer) Level() Level { return LevelIdentity }

func (IdentityRenderer) Render(ctx context.Context, src image.Image, trace *Trace) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("identity: no input image")
	}
	trace.Record(StageOutcome{Level: LevelIdentity, Stage: "identity"})
	return src, nil
}
