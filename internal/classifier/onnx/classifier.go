// Package onnx loads the plant classifier into ONNX Runtime and serves forward passes.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kailas-cloud/plantclf/internal/domain"
)

// Config describes the model file and its tensors.
type Config struct {
	ModelPath   string
	InputName   string
	OutputName  string
	LibraryPath string // libonnxruntime shared object; empty uses the runtime default
	Input       domain.InputConfig
	Classes     int
}

// Classifier owns one ONNX Runtime session with pre-bound input and output tensors.
// The tensors are shared, so forward passes are serialized by mu.
type Classifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputLen     int
	classes      int
	declared     int
}

var _ domain.Classifier = (*Classifier)(nil)

// New initializes the runtime environment and loads the model.
func New(cfg Config) (*Classifier, error) {
	if cfg.Classes <= 0 {
		return nil, fmt.Errorf("classes must be positive, got %d", cfg.Classes)
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	declared, err := declaredOutputSize(cfg.ModelPath, cfg.InputName, cfg.OutputName)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.Input.Shape()...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Classes)))
	if err != nil {
		_ = inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Classifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputLen:     cfg.Input.Len(),
		classes:      cfg.Classes,
		declared:     declared,
	}, nil
}

// Classify copies input into the bound tensor, runs the session and returns a copy of the output.
func (c *Classifier) Classify(ctx context.Context, input []float32) ([]float32, error) {
	if len(input) != c.inputLen {
		return nil, fmt.Errorf("input shape mismatch: expected %d values, got %d", c.inputLen, len(input))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.inputTensor.GetData(), input)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, c.classes)
	copy(out, c.outputTensor.GetData())
	return out, nil
}

// OutputSize returns the class dimension the model file declares, or -1 when it is dynamic.
func (c *Classifier) OutputSize() int {
	return c.declared
}

// Close releases the session, tensors and runtime environment.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		_ = c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		_ = c.outputTensor.Destroy()
	}
	if c.session != nil {
		_ = c.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// declaredOutputSize reads the model's I/O metadata, checks both tensor names exist
// and returns the last dimension of the output.
func declaredOutputSize(modelPath, inputName, outputName string) (int, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read model metadata from %s: %w", modelPath, err)
	}
	if _, ok := findTensor(inputs, inputName); !ok {
		return 0, fmt.Errorf("model has no input named %q (inputs: %v)", inputName, tensorNames(inputs))
	}
	out, ok := findTensor(outputs, outputName)
	if !ok {
		return 0, fmt.Errorf("model has no output named %q (outputs: %v)", outputName, tensorNames(outputs))
	}
	return lastDim(out.Dimensions), nil
}

func findTensor(infos []ort.InputOutputInfo, name string) (ort.InputOutputInfo, bool) {
	for _, info := range infos {
		if info.Name == name {
			return info, true
		}
	}
	return ort.InputOutputInfo{}, false
}

func tensorNames(infos []ort.InputOutputInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// lastDim returns the trailing dimension, or -1 for a dynamic or missing one.
func lastDim(shape ort.Shape) int {
	if len(shape) == 0 {
		return -1
	}
	d := shape[len(shape)-1]
	if d <= 0 {
		return -1
	}
	return int(d)
}
