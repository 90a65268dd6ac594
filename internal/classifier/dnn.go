package classifier

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"ghibli-stylizer/internal/logger"
)

// DNNScorer runs the segmentation model through the OpenCV DNN module. It is
// the fallback binding for deployments without an ONNX Runtime library; the
// blob path carries scale and per-channel mean only, so std division stays
// with the ONNX binding.
type DNNScorer struct {
	mu         sync.Mutex
	net        gocv.Net
	numClasses int
	logger     logger.Logger
}

// NewDNNScorer loads the model and selects the compute target. target accepts
// "cpu" or "cuda"; anything else falls back to CPU.
func NewDNNScorer(modelPath, target string, numClasses int, log logger.Logger) (*DNNScorer, error) {
	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to read network model from %s", modelPath)
	}

	backend := gocv.NetBackendDefault
	netTarget := gocv.NetTargetCPU
	if target == "cuda" {
		backend = gocv.NetBackendCUDA
		netTarget = gocv.NetTargetCUDA
	}

	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set network backend: %w", err)
	}
	if err := net.SetPreferableTarget(netTarget); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set network target: %w", err)
	}

	log.Info("classifier", "DNN network loaded", map[string]interface{}{
		"model_path":  modelPath,
		"target":      target,
		"num_classes": numClasses,
	})

	return &DNNScorer{net: net, numClasses: numClasses, logger: log}, nil
}

func (s *DNNScorer) NumClasses() int { return s.numClasses }

// Score runs one forward pass. OpenCV reports native failures by panicking
// through cgo, so the pass is wrapped with a recover that surfaces them as
// errors.
func (s *DNNScorer) Score(ctx context.Context, input *Input) (scores *ScoreMap, err error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			scores = nil
			err = fmt.Errorf("dnn inference panic: %v", r)
		}
	}()

	mat, err := gocv.ImageToMatRGB(input.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to convert input image: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0,
		image.Pt(InputSize, InputSize),
		gocv.NewScalar(float64(normMean[0]*255.0), float64(normMean[1]*255.0), float64(normMean[2]*255.0), 0),
		false, false)
	defer blob.Close()

	s.net.SetInput(blob, "")

	prob := s.net.Forward("")
	defer prob.Close()
	if prob.Empty() {
		return nil, fmt.Errorf("dnn forward pass returned empty output")
	}

	data, err := prob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	want := s.numClasses * InputSize * InputSize
	if len(data) < want {
		return nil, fmt.Errorf("network output has %d values, expected %d", len(data), want)
	}

	scores = NewScoreMap(s.numClasses, InputSize, InputSize)
	copy(scores.Data, data[:want])
	return scores, nil
}

// Close releases the network. The scorer must not be used afterwards.
func (s *DNNScorer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.net.Close()
	s.logger.Info("classifier", "DNN network closed", nil)
}
