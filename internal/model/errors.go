package model

import (
	"errors"
	"fmt"
)

// ErrInvalidOutput is returned when the network produces a non-finite score.
var ErrInvalidOutput = errors.New("network produced a non-finite output")

// ErrClosed is returned by Predict after the classifier has been closed.
var ErrClosed = errors.New("classifier is closed")

// DecodeError means the uploaded bytes are not a decodable raster image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode image: invalid image data"
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFormatError means the image decoded but cannot be brought to
// the channel layout the network expects.
type UnsupportedFormatError struct {
	Format string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("unsupported image: %s", e.Reason)
	}
	return fmt.Sprintf("unsupported %s image: %s", e.Format, e.Reason)
}

// ShapeMismatchError reports a tensor that does not fit the network input
// (or a network output that does not fit a binary classifier).
type ShapeMismatchError struct {
	Want Shape
	Got  Shape
	// Detail overrides the default message when the mismatch is not a
	// plain shape comparison, e.g. a wrong number of values.
	Detail string
}

func (e *ShapeMismatchError) Error() string {
	if e.Detail != "" {
		return "shape mismatch: " + e.Detail
	}
	return fmt.Sprintf("shape mismatch: expected %s, got %s", e.Want, e.Got)
}

// ModelLoadError is fatal: the weights artifact is missing or corrupted and
// the process cannot serve requests.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }
