// Package scorer adapts an exported classifier to the strategy.Predictor
// capability. Training and export happen elsewhere; this only loads and runs
// the artifact.
package scorer

import (
	"fmt"
	"runtime"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"ml-algo-trader/internal/model"
)

// ONNXScorer runs a binary classifier exported to ONNX. The output tensor is
// expected to hold class probabilities with P(up) last, matching a
// predict_proba-style export.
type ONNXScorer struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	schema  []string
}

// InitializeRuntime points onnxruntime at the platform shared library and
// initializes the environment. Call once before NewONNX.
func InitializeRuntime() error {
	libPath := "/usr/lib/libonnxruntime.so"
	switch runtime.GOOS {
	case "windows":
		libPath = "onnxruntime.dll"
	case "darwin":
		libPath = "libonnxruntime.dylib"
	}
	ort.SetSharedLibraryPath(libPath)
	return ort.InitializeEnvironment()
}

// NewONNX loads the model at modelPath. schema is the training-time feature
// order; the signal engine checks it against the pipeline's schema before any
// prediction runs.
func NewONNX(modelPath string, schema []string) (*ONNXScorer, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("model feature schema is empty")
	}

	inputShape := ort.NewShape(1, int64(len(schema)))
	inputTensor, err := ort.NewTensor(inputShape, make([]float32, len(schema)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, 2)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"probabilities"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session for %s: %w", modelPath, err)
	}

	return &ONNXScorer{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		schema:  slices.Clone(schema),
	}, nil
}

// InputSchema reports the feature order the model expects.
func (s *ONNXScorer) InputSchema() []string {
	return slices.Clone(s.schema)
}

// Predict runs one inference and returns P(up).
func (s *ONNXScorer) Predict(fv model.FeatureVector) (float64, error) {
	if !slices.Equal(fv.Schema, s.schema) {
		return 0, fmt.Errorf("%w: vector schema %v, model expects %v",
			model.ErrSchemaMismatch, fv.Schema, s.schema)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.input.GetData()
	for i, v := range fv.Values {
		data[i] = float32(v)
	}
	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	out := s.output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("inference produced no output")
	}
	return float64(out[len(out)-1]), nil
}

func (s *ONNXScorer) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}
