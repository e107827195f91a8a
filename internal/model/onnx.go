package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// ONNXNetwork runs a network through onnxruntime with preallocated input
// and output tensors.
type ONNXNetwork struct {
	session      *ort.AdvancedSession
	inputShape   Shape
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// ONNXOptions selects the runtime library and tensor names.
type ONNXOptions struct {
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
	InputName   string
	OutputName  string
	InputShape  Shape
	OutputShape []int64
}

// NewONNXNetwork initialises the runtime environment (once per process)
// and opens a session for modelPath.
func NewONNXNetwork(modelPath string, opts ONNXOptions) (*ONNXNetwork, error) {
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputName, outputName, err := tensorNames(modelPath, opts)
	if err != nil {
		return nil, err
	}

	outputShape := opts.OutputShape
	if len(outputShape) == 0 {
		outputShape = []int64{1, 1}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(opts.InputShape.Int64s()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXNetwork{
		session:      session,
		inputShape:   opts.InputShape,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// tensorNames falls back to the first declared input and output of the
// graph when the metadata does not name them.
func tensorNames(modelPath string, opts ONNXOptions) (string, string, error) {
	if opts.InputName != "" && opts.OutputName != "" {
		return opts.InputName, opts.OutputName, nil
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read model inputs and outputs: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return "", "", fmt.Errorf("expected one input and one output, model has %d and %d", len(inputs), len(outputs))
	}

	inputName, outputName := opts.InputName, opts.OutputName
	if inputName == "" {
		inputName = inputs[0].Name
	}
	if outputName == "" {
		outputName = outputs[0].Name
	}
	return inputName, outputName, nil
}

func (n *ONNXNetwork) InputShape() Shape {
	return n.inputShape
}

// Forward copies input into the session's input tensor, runs the graph and
// returns a copy of the output.
func (n *ONNXNetwork) Forward(input []float32) ([]float32, error) {
	dst := n.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, &ShapeMismatchError{
			Want:   n.inputShape,
			Detail: fmt.Sprintf("expected %d values, got %d", len(dst), len(input)),
		}
	}
	copy(dst, input)

	if err := n.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	out := n.outputTensor.GetData()
	result := make([]float32, len(out))
	copy(result, out)
	return result, nil
}

func (n *ONNXNetwork) Close() error {
	if n.inputTensor != nil {
		n.inputTensor.Destroy()
	}
	if n.outputTensor != nil {
		n.outputTensor.Destroy()
	}
	if n.session != nil {
		n.session.Destroy()
	}
	return ort.DestroyEnvironment()
}
