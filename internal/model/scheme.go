package model

import "fmt"

// Scheme maps 8-bit RGB pixels into the value distribution a network was
// trained on.
type Scheme string

const (
	// SchemeCaffe is VGG16's preprocess_input: BGR order, ImageNet means
	// subtracted, no scaling.
	SchemeCaffe Scheme = "caffe"
	// SchemeUnit scales to [0, 1].
	SchemeUnit Scheme = "unit"
	// SchemeTF scales to [-1, 1].
	SchemeTF Scheme = "tf"
	// SchemeTorch scales to [0, 1] and standardises with ImageNet mean/std.
	SchemeTorch Scheme = "torch"
)

var (
	caffeMeanBGR = [3]float32{103.939, 116.779, 123.68}
	torchMean    = [3]float32{0.485, 0.456, 0.406}
	torchStd     = [3]float32{0.229, 0.224, 0.225}
)

// ParseScheme accepts the scheme names used in model metadata. An empty
// name selects caffe, which is what the VGG16 head was trained with.
func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(name); s {
	case "":
		return SchemeCaffe, nil
	case SchemeCaffe, SchemeUnit, SchemeTF, SchemeTorch:
		return s, nil
	default:
		return "", fmt.Errorf("unknown preprocessing scheme %q", name)
	}
}

// Apply converts one pixel. The returned channels are in the order the
// network consumes them (BGR for caffe, RGB otherwise).
func (s Scheme) Apply(r, g, b uint8) [3]float32 {
	rf, gf, bf := float32(r), float32(g), float32(b)
	switch s {
	case SchemeUnit:
		return [3]float32{rf / 255, gf / 255, bf / 255}
	case SchemeTF:
		return [3]float32{rf/127.5 - 1, gf/127.5 - 1, bf/127.5 - 1}
	case SchemeTorch:
		return [3]float32{
			(rf/255 - torchMean[0]) / torchStd[0],
			(gf/255 - torchMean[1]) / torchStd[1],
			(bf/255 - torchMean[2]) / torchStd[2],
		}
	default:
		return [3]float32{bf - caffeMeanBGR[0], gf - caffeMeanBGR[1], rf - caffeMeanBGR[2]}
	}
}

// Range is the closed interval every normalized value falls into.
func (s Scheme) Range() (lo, hi float32) {
	black := s.Apply(0, 0, 0)
	white := s.Apply(255, 255, 255)
	lo, hi = black[0], white[0]
	for c := 1; c < 3; c++ {
		if black[c] < lo {
			lo = black[c]
		}
		if white[c] > hi {
			hi = white[c]
		}
	}
	return lo, hi
}
