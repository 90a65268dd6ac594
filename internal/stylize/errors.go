package stylize

import (
	"fmt"

	"ghibli-stylizer/internal/classifier"
)

// PreprocessError reports a failure while resizing or normalizing the input
// image before inference.
type PreprocessError struct {
	Err error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("preprocess failed: %v", e.Err)
}

func (e *PreprocessError) Unwrap() error { return e.Err }

// InferenceError reports a classifier failure. ResourceExhausted marks the
// subset caused by device or native memory pressure; the fallback chain
// releases cached resources before descending when it is set.
type InferenceError struct {
	Err               error
	ResourceExhausted bool
}

func (e *InferenceError) Error() string {
	if e.ResourceExhausted {
		return fmt.Sprintf("inference failed (resource exhaustion): %v", e.Err)
	}
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

func newInferenceError(err error) *InferenceError {
	return &InferenceError{
		Err:               err,
		ResourceExhausted: classifier.IsResourceExhausted(err),
	}
}

// GradingError reports a numeric or shape violation inside a color grading
// or detail stage.
type GradingError struct {
	Stage string
	Err   error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("grading stage %s failed: %v", e.Stage, e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

// PostprocessError reports a failure while recovering the output shape or
// materializing the working buffer into an image.
type PostprocessError struct {
	Err error
}

func (e *PostprocessError) Error() string {
	return fmt.Sprintf("postprocess failed: %v", e.Err)
}

func (e *PostprocessError) Unwrap() error { return e.Err }

// EncodeError reports a failure to serialize the final image into its target
// format.
type EncodeError struct {
	Format string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode %s output: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
