// Package accel implements the accelerator-backed fallback filter: the
// segmentation-free stylization applied at the image's original resolution
// when the full pipeline is unavailable.
package accel

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"ghibli-stylizer/internal/logger"
	"ghibli-stylizer/internal/opencv/bridge"
	"ghibli-stylizer/internal/opencv/memory"
	"ghibli-stylizer/internal/stylize"
)

// Channel scale factors and tonal tints, indexed in Mat BGR order.
var (
	channelScales = [3]float32{1.3, 1.2, 0.9}
	shadowTint    = [3]float32{0.15, 0.10, 0.05}
	highlightTint = [3]float32{0.05, 0.12, 0.15}
)

const (
	accelContrast   = 1.3
	shadowCutoff    = 0.4
	highlightCutoff = 0.7
	tintWeight      = 0.1
	sharpenAmount   = 0.5
	saturationBoost = 0.2
)

// Renderer applies the fixed palette shift, contrast stretch, tonal
// shadow/highlight tinting, Gaussian softening with an unsharp pass and a
// saturation boost, entirely through OpenCV. Every working Mat is tracked
// against the memory budget, so running out of headroom surfaces as a
// resource-exhaustion error instead of a native allocation failure.
type Renderer struct {
	memory *memory.Manager
	logger logger.Logger
}

func NewRenderer(mem *memory.Manager, log logger.Logger) *Renderer {
	return &Renderer{memory: mem, logger: log}
}

func (r *Renderer) Level() stylize.Level { return stylize.LevelAccelerated }

func (r *Renderer) Render(ctx context.Context, src image.Image, trace *stylize.Trace) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	start := time.Now()

	base, err := bridge.ImageToMat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to convert input image: %w", err)
	}
	tracked := r.memory.AdoptMat(base, "accel_input")
	defer r.memory.ReleaseMat(tracked)

	rows := base.Rows()
	cols := base.Cols()

	unit, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC3, "accel_unit")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(unit)
	tracked.Mat.ConvertToWithParams(&unit.Mat, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	channels := gocv.Split(unit.Mat)
	trackedChannels := make([]*memory.TrackedMat, len(channels))
	for i := range channels {
		trackedChannels[i] = r.memory.AdoptMat(channels[i], "accel_channel")
		defer r.memory.ReleaseMat(trackedChannels[i])
	}
	if len(trackedChannels) != 3 {
		return nil, fmt.Errorf("expected 3 channels, got %d", len(trackedChannels))
	}

	for i, scale := range channelScales {
		ch := &trackedChannels[i].Mat
		ch.MultiplyFloat(scale)
		gocv.Threshold(*ch, ch, 1.0, 1.0, gocv.ThresholdTrunc)
	}

	for i := range trackedChannels {
		ch := &trackedChannels[i].Mat
		ch.MultiplyFloat(accelContrast)
		ch.AddFloat(0.5 - 0.5*accelContrast)
		clampUnitPlane(ch)
	}

	mean, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC1, "accel_mean")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(mean)

	mask, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC1, "accel_mask")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(mask)

	blend, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC1, "accel_blend")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(blend)

	channelMean(trackedChannels, &mean.Mat)
	gocv.Threshold(mean.Mat, &mask.Mat, shadowCutoff, 1.0, gocv.ThresholdBinaryInv)
	tintChannels(trackedChannels, mask, blend, shadowTint)

	channelMean(trackedChannels, &mean.Mat)
	gocv.Threshold(mean.Mat, &mask.Mat, highlightCutoff, 1.0, gocv.ThresholdBinary)
	tintChannels(trackedChannels, mask, blend, highlightTint)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	merged, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC3, "accel_merged")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(merged)
	gocv.Merge([]gocv.Mat{trackedChannels[0].Mat, trackedChannels[1].Mat, trackedChannels[2].Mat}, &merged.Mat)

	blurred, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC3, "accel_blurred")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(blurred)
	gocv.GaussianBlur(merged.Mat, &blurred.Mat, image.Pt(5, 5), 1.0, 1.0, gocv.BorderDefault)

	sharp, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV32FC3, "accel_sharp")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(sharp)
	gocv.AddWeighted(merged.Mat, 1.0+sharpenAmount, blurred.Mat, -sharpenAmount, 0, &sharp.Mat)
	clampUnitPlane(&sharp.Mat)

	satChannels := gocv.Split(sharp.Mat)
	trackedSat := make([]*memory.TrackedMat, len(satChannels))
	for i := range satChannels {
		trackedSat[i] = r.memory.AdoptMat(satChannels[i], "accel_saturation")
		defer r.memory.ReleaseMat(trackedSat[i])
	}

	channelMean(trackedSat, &mean.Mat)
	for i := range trackedSat {
		ch := &trackedSat[i].Mat
		gocv.AddWeighted(*ch, 1.0+saturationBoost, mean.Mat, -saturationBoost, 0, ch)
		clampUnitPlane(ch)
	}
	gocv.Merge([]gocv.Mat{trackedSat[0].Mat, trackedSat[1].Mat, trackedSat[2].Mat}, &merged.Mat)

	out, err := r.memory.GetMat(rows, cols, gocv.MatTypeCV8UC3, "accel_output")
	if err != nil {
		return nil, err
	}
	defer r.memory.ReleaseMat(out)
	merged.Mat.ConvertToWithParams(&out.Mat, gocv.MatTypeCV8UC3, 255, 0)

	result, err := bridge.MatToImage(out.Mat)
	if err != nil {
		return nil, fmt.Errorf("failed to convert output mat: %w", err)
	}

	elapsed := time.Since(start)
	r.memory.RecordStageDuration("accelerated_filter", elapsed)
	trace.Record(stylize.StageOutcome{
		Level:    stylize.LevelAccelerated,
		Stage:    "accelerated_filter",
		Duration: elapsed,
	})
	r.logger.Debug("accel", "Accelerated filter applied", map[string]interface{}{
		"width":  cols,
		"height": rows,
	})
	return result, nil
}

// channelMean writes the per-pixel average of the three planes into dst.
func channelMean(channels []*memory.TrackedMat, dst *gocv.Mat) {
	gocv.Add(channels[0].Mat, channels[1].Mat, dst)
	gocv.Add(*dst, channels[2].Mat, dst)
	dst.MultiplyFloat(1.0 / 3.0)
}

// tintChannels blends each plane toward its tint component wherever the
// mask is set: ch = ch·(1 − mask·w) + tint·mask·w.
func tintChannels(channels []*memory.TrackedMat, mask, blend *memory.TrackedMat, tint [3]float32) {
	for i := range channels {
		ch := &channels[i].Mat

		mask.Mat.ConvertToWithParams(&blend.Mat, gocv.MatTypeCV32FC1, -tintWeight, 1.0)
		gocv.Multiply(*ch, blend.Mat, ch)

		mask.Mat.ConvertToWithParams(&blend.Mat, gocv.MatTypeCV32FC1, tintWeight*tint[i], 0)
		gocv.Add(*ch, blend.Mat, ch)
	}
}

// clampUnitPlane forces every value into [0,1].
func clampUnitPlane(m *gocv.Mat) {
	gocv.Threshold(*m, m, 1.0, 1.0, gocv.ThresholdTrunc)
	gocv.Threshold(*m, m, 0.0, 0.0, gocv.ThresholdToZero)
}
