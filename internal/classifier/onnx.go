package classifier

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"ghibli-stylizer/internal/logger"
)

const (
	onnxInputName  = "input"
	onnxOutputName = "output"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initializeRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// OnnxScorer runs the segmentation model through ONNX Runtime with
// pre-allocated input and output tensors. Sessions are not safe for
// concurrent Run calls, so scoring is serialized with a mutex.
type OnnxScorer struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	numClasses   int
	logger       logger.Logger
}

// NewOnnxScorer initializes the runtime, loads the model and allocates the
// session tensors. numClasses must match the model's class axis.
func NewOnnxScorer(modelPath, libraryPath string, numClasses int, log logger.Logger) (*OnnxScorer, error) {
	if err := initializeRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
	}

	inputShape := ort.NewShape(1, 3, InputSize, InputSize)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(numClasses), InputSize, InputSize)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{onnxInputName}, []string{onnxOutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	log.Info("classifier", "ONNX session created", map[string]interface{}{
		"model_path":  modelPath,
		"num_classes": numClasses,
		"input_size":  InputSize,
	})

	return &OnnxScorer{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		numClasses:   numClasses,
		logger:       log,
	}, nil
}

func (s *OnnxScorer) NumClasses() int { return s.numClasses }

// Score runs one inference pass. The returned ScoreMap owns its data; the
// session tensors are reused across calls.
func (s *OnnxScorer) Score(ctx context.Context, input *Input) (*ScoreMap, error) {
	if len(input.Data) != 3*InputSize*InputSize {
		return nil, fmt.Errorf("input tensor has %d values, expected %d",
			len(input.Data), 3*InputSize*InputSize)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input.Data)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference failed: %w", err)
	}

	scores := NewScoreMap(s.numClasses, InputSize, InputSize)
	copy(scores.Data, s.outputTensor.GetData())
	return scores, nil
}

// Close destroys the session and its tensors along with the runtime
// environment. The scorer must not be used afterwards.
func (s *OnnxScorer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	ort.DestroyEnvironment()

	s.logger.Info("classifier", "ONNX session closed", nil)
}
