package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Metadata describes the weights artifact. It lives next to the ONNX file
// as JSON and every field is optional.
type Metadata struct {
	InputShape       []int64  `json:"input_shape,omitempty"`
	OutputShape      []int64  `json:"output_shape,omitempty"`
	Classes          []string `json:"classes,omitempty"`
	ImageSize        int      `json:"image_size,omitempty"`
	Layout           Layout   `json:"layout,omitempty"`
	Preprocessing    string   `json:"preprocessing,omitempty"`
	OutputActivation string   `json:"output_activation,omitempty"`
	InputName        string   `json:"input_name,omitempty"`
	OutputName       string   `json:"output_name,omitempty"`
	Architecture     string   `json:"architecture,omitempty"`

	// Written by the export script; zero means unknown.
	TotalParams        int64 `json:"total_params,omitempty"`
	TrainableParams    int64 `json:"trainable_params,omitempty"`
	NonTrainableParams int64 `json:"non_trainable_params,omitempty"`
	NumLayers          int   `json:"num_layers,omitempty"`
}

const defaultImageSize = 224

// DefaultMetadata matches the VGG16 transfer-learning head: 224x224 RGB,
// channels last, caffe preprocessing, one sigmoid unit.
func DefaultMetadata() Metadata {
	return Metadata{
		Classes:          []string{string(LabelCat), string(LabelDog)},
		ImageSize:        defaultImageSize,
		Layout:           LayoutNHWC,
		Preprocessing:    string(SchemeCaffe),
		OutputActivation: "sigmoid",
		OutputShape:      []int64{1, 1},
		Architecture:     "VGG16 + custom head",
	}
}

// LoadMetadata reads the JSON sidecar. A missing file yields the defaults;
// a file that exists but does not parse is an error.
func LoadMetadata(path string) (Metadata, error) {
	meta := DefaultMetadata()
	if path == "" {
		return meta, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := meta.normalize(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// normalize fills fields derivable from others and rejects inputs that are
// not a single RGB image.
func (m *Metadata) normalize() error {
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if !m.Layout.Valid() {
		return fmt.Errorf("unknown layout %q", m.Layout)
	}
	if _, err := ParseScheme(m.Preprocessing); err != nil {
		return err
	}
	switch m.OutputActivation {
	case "", "sigmoid", "logit", "softmax":
	default:
		return fmt.Errorf("unknown output activation %q", m.OutputActivation)
	}

	if len(m.InputShape) > 0 {
		if len(m.InputShape) != 4 {
			return fmt.Errorf("input shape must have 4 dimensions, got %v", m.InputShape)
		}
		h, w, c := m.InputShape[1], m.InputShape[2], m.InputShape[3]
		if m.Layout == LayoutNCHW {
			c, h, w = m.InputShape[1], m.InputShape[2], m.InputShape[3]
		}
		if m.InputShape[0] != 1 && m.InputShape[0] != -1 {
			return fmt.Errorf("batch dimension must be 1, got %d", m.InputShape[0])
		}
		if c != 3 {
			return fmt.Errorf("expected 3 input channels, got %d", c)
		}
		if h != w {
			return fmt.Errorf("expected a square input, got %dx%d", w, h)
		}
		m.ImageSize = int(h)
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("invalid image size %d", m.ImageSize)
	}

	if m.TotalParams < 0 || m.TrainableParams < 0 || m.NonTrainableParams < 0 || m.NumLayers < 0 {
		return errors.New("parameter and layer counts must not be negative")
	}
	if m.TotalParams == 0 {
		m.TotalParams = m.TrainableParams + m.NonTrainableParams
	}
	return nil
}

// InputSpec is the fixed input contract of the network.
func (m Metadata) InputSpec() InputSpec {
	scheme, _ := ParseScheme(m.Preprocessing)
	layout := m.Layout
	if layout == "" {
		layout = LayoutNHWC
	}
	size := m.ImageSize
	if size <= 0 {
		size = defaultImageSize
	}
	return InputSpec{Height: size, Width: size, Channels: 3, Layout: layout, Scheme: scheme}
}

// InputSpec is what the normalizer must produce for the network.
type InputSpec struct {
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Channels int    `json:"channels"`
	Layout   Layout `json:"layout"`
	Scheme   Scheme `json:"scheme"`
}

// Shape is the single-sample batch shape for this spec.
func (s InputSpec) Shape() Shape {
	if s.Layout == LayoutNCHW {
		return Shape{1, s.Channels, s.Height, s.Width}
	}
	return Shape{1, s.Height, s.Width, s.Channels}
}

// PredictionRequest carries a pre-normalized tensor, flattened in the
// network's layout.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

// Info summarises the loaded model for display.
type Info struct {
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	SHA256       string    `json:"sha256"`
	Architecture string    `json:"architecture,omitempty"`
	Input        InputSpec `json:"input"`
	InputShape   Shape     `json:"input_shape"`
	OutputShape  []int64   `json:"output_shape"`
	Classes      []string  `json:"classes"`
	Activation   string    `json:"output_activation"`

	TotalParams        int64 `json:"total_params,omitempty"`
	TrainableParams    int64 `json:"trainable_params,omitempty"`
	NonTrainableParams int64 `json:"non_trainable_params,omitempty"`
	NumLayers          int   `json:"num_layers,omitempty"`
}
