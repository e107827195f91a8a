package model

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Network is a loaded binary classification network. Implementations do
// not need to be safe for concurrent use; Classifier serialises calls.
type Network interface {
	InputShape() Shape
	Forward(input []float32) ([]float32, error)
	Close() error
}

// Classifier owns a network with fixed weights and turns normalized
// tensors into predictions. It is created once at startup and shared.
type Classifier struct {
	net        Network
	spec       InputSpec
	info       Info
	activation string
	dogIndex   int

	mu     sync.Mutex
	closed bool
	// observe receives the duration of every forward pass.
	observe func(time.Duration)
}

// ClassifierOption customises NewClassifier.
type ClassifierOption func(*Classifier)

// WithMetadata applies output activation, class order and input scheme
// from metadata.
func WithMetadata(meta Metadata) ClassifierOption {
	return func(c *Classifier) {
		c.activation = meta.OutputActivation
		c.spec = specFromShape(c.net.InputShape(), meta.Layout)
		c.spec.Scheme = meta.InputSpec().Scheme
		for i, class := range meta.Classes {
			if Label(class) == LabelDog {
				c.dogIndex = i
			}
		}
		c.info.Architecture = meta.Architecture
		c.info.OutputShape = meta.OutputShape
		c.info.Classes = meta.Classes
		c.info.Activation = meta.OutputActivation
		c.info.TotalParams = meta.TotalParams
		c.info.TrainableParams = meta.TrainableParams
		c.info.NonTrainableParams = meta.NonTrainableParams
		c.info.NumLayers = meta.NumLayers
	}
}

// WithInfo attaches artifact details reported by Info.
func WithInfo(path string, size int64, digest string) ClassifierOption {
	return func(c *Classifier) {
		c.info.Path = path
		c.info.SizeBytes = size
		c.info.SHA256 = digest
	}
}

// WithObserver registers a callback invoked with each forward pass duration.
func WithObserver(fn func(time.Duration)) ClassifierOption {
	return func(c *Classifier) {
		c.observe = fn
	}
}

// NewClassifier wraps an already loaded network.
func NewClassifier(net Network, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		net:        net,
		activation: "sigmoid",
		dogIndex:   1,
	}
	c.spec = specFromShape(net.InputShape(), LayoutNHWC)
	for _, opt := range opts {
		opt(c)
	}
	c.info.Input = c.spec
	c.info.InputShape = net.InputShape()
	if len(c.info.Classes) == 0 {
		c.info.Classes = []string{string(LabelCat), string(LabelDog)}
	}
	if c.info.Activation == "" {
		c.info.Activation = c.activation
	}
	return c
}

// InputShape is the exact tensor shape Predict accepts.
func (c *Classifier) InputShape() Shape {
	return c.net.InputShape()
}

// InputSpec is what a normalizer has to produce for this classifier.
func (c *Classifier) InputSpec() InputSpec {
	return c.spec
}

// Info describes the loaded model.
func (c *Classifier) Info() Info {
	return c.info
}

// Predict runs one forward pass. It fails fast with a ShapeMismatchError
// when the tensor does not match the network input.
func (c *Classifier) Predict(t *Tensor) (Prediction, error) {
	want := c.net.InputShape()
	if t == nil {
		return Prediction{}, &ShapeMismatchError{Want: want, Detail: "nil tensor"}
	}
	if t.Shape != want {
		return Prediction{}, &ShapeMismatchError{Want: want, Got: t.Shape}
	}
	if len(t.Data) != want.Volume() {
		return Prediction{}, &ShapeMismatchError{
			Want:   want,
			Detail: fmt.Sprintf("expected %d values, got %d", want.Volume(), len(t.Data)),
		}
	}

	out, err := c.forward(t.Data)
	if err != nil {
		return Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	p, err := c.probability(out)
	if err != nil {
		return Prediction{}, err
	}
	return NewPrediction(p), nil
}

func (c *Classifier) forward(data []float32) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	out, err := c.net.Forward(data)
	if c.observe != nil {
		c.observe(time.Since(start))
	}
	return out, err
}

// probability reduces the raw network output to a dog probability.
func (c *Classifier) probability(out []float32) (float64, error) {
	for _, v := range out {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, ErrInvalidOutput
		}
	}

	switch len(out) {
	case 1:
		v := float64(out[0])
		if c.activation == "logit" {
			return sigmoid(v), nil
		}
		if v < 0 || v > 1 {
			return 0, fmt.Errorf("%w: sigmoid output %v outside [0, 1]", ErrInvalidOutput, v)
		}
		return v, nil
	case 2:
		dog := float64(out[c.dogIndex%2])
		cat := float64(out[(c.dogIndex+1)%2])
		if c.activation == "logit" {
			// two logits: softmax reduces to a sigmoid of the difference
			return sigmoid(dog - cat), nil
		}
		sum := cat + dog
		if sum <= 0 {
			return 0, fmt.Errorf("%w: class scores sum to %v", ErrInvalidOutput, sum)
		}
		return dog / sum, nil
	default:
		return 0, &ShapeMismatchError{Detail: fmt.Sprintf("expected 1 or 2 output values, got %d", len(out))}
	}
}

// Close releases the network.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.net.Close()
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// specFromShape reads height, width and layout off a network shape. A
// dimension of 3 in exactly one of positions 1 and 3 decides the layout;
// otherwise the fallback is used.
func specFromShape(s Shape, fallback Layout) InputSpec {
	layout := fallback
	switch {
	case s[3] == 3 && s[1] != 3:
		layout = LayoutNHWC
	case s[1] == 3 && s[3] != 3:
		layout = LayoutNCHW
	}
	if layout == LayoutNCHW {
		return InputSpec{Height: s[2], Width: s[3], Channels: s[1], Layout: LayoutNCHW, Scheme: SchemeCaffe}
	}
	return InputSpec{Height: s[1], Width: s[2], Channels: s[3], Layout: LayoutNHWC, Scheme: SchemeCaffe}
}
