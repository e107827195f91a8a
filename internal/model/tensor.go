package model

import (
	"fmt"
	"math"
)

// Layout is the memory order of a single-sample image tensor.
type Layout string

const (
	LayoutNHWC Layout = "NHWC"
	LayoutNCHW Layout = "NCHW"
)

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	return l == LayoutNHWC || l == LayoutNCHW
}

// Shape is the fixed four-dimensional shape of a batched image tensor.
type Shape [4]int

// Volume is the number of elements a tensor of this shape holds.
func (s Shape) Volume() int {
	return s[0] * s[1] * s[2] * s[3]
}

// Int64s converts the shape to the form onnxruntime expects.
func (s Shape) Int64s() []int64 {
	return []int64{int64(s[0]), int64(s[1]), int64(s[2]), int64(s[3])}
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s[0], s[1], s[2], s[3])
}

// Tensor is a normalized image ready for a forward pass.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// NewTensor wraps data in a tensor of the given shape. The number of values
// must match the shape exactly.
func NewTensor(shape Shape, data []float32) (*Tensor, error) {
	for _, d := range shape {
		if d <= 0 {
			return nil, &ShapeMismatchError{Got: shape, Detail: fmt.Sprintf("non-positive dimension in %s", shape)}
		}
	}
	if len(data) != shape.Volume() {
		return nil, &ShapeMismatchError{
			Want:   shape,
			Detail: fmt.Sprintf("expected %d values for %s, got %d", shape.Volume(), shape, len(data)),
		}
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// CheckFinite returns an error naming the first NaN or Inf value.
func (t *Tensor) CheckFinite() error {
	for i, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("tensor value %d is not finite: %v", i, v)
		}
	}
	return nil
}

// Bounds returns the smallest and largest values in the tensor.
func (t *Tensor) Bounds() (lo, hi float32) {
	if len(t.Data) == 0 {
		return 0, 0
	}
	lo, hi = t.Data[0], t.Data[0]
	for _, v := range t.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
