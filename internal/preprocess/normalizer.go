// Package preprocess turns uploaded image bytes into the fixed-shape
// tensor a classifier consumes.
package preprocess

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/catdog-api/internal/imaging"
	"github.com/Brownie44l1/catdog-api/internal/model"
)

// Normalizer is stateless apart from its input spec and safe for
// concurrent use.
type Normalizer struct {
	spec model.InputSpec
}

// NewNormalizer validates spec and returns a normalizer producing tensors
// of spec.Shape().
func NewNormalizer(spec model.InputSpec) (*Normalizer, error) {
	if spec.Height <= 0 || spec.Width <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", spec.Width, spec.Height)
	}
	if spec.Channels != 3 {
		return nil, fmt.Errorf("expected 3 channels, got %d", spec.Channels)
	}
	if !spec.Layout.Valid() {
		return nil, fmt.Errorf("unknown layout %q", spec.Layout)
	}
	if _, err := model.ParseScheme(string(spec.Scheme)); err != nil {
		return nil, err
	}
	return &Normalizer{spec: spec}, nil
}

// Spec returns the input spec this normalizer targets.
func (n *Normalizer) Spec() model.InputSpec {
	return n.spec
}

// Normalize decodes raw image bytes in any supported format and returns
// the network input tensor.
func (n *Normalizer) Normalize(data []byte) (*model.Tensor, error) {
	img, _, err := imaging.Load(data)
	if err != nil {
		return nil, err
	}
	return n.NormalizeImage(img)
}

// NormalizeImage converts to three-channel RGB, resizes bilinearly to the
// target size ignoring aspect ratio, applies the scheme and lays the
// values out as a single-sample batch.
func (n *Normalizer) NormalizeImage(img image.Image) (*model.Tensor, error) {
	rgb, err := imaging.ToRGB(img)
	if err != nil {
		return nil, err
	}

	h, w := n.spec.Height, n.spec.Width
	resized := resize.Resize(uint(w), uint(h), rgb, resize.Bilinear)
	px := asRGBA(resized)

	data := make([]float32, h*w*3)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := px.PixOffset(x, y)
			v := n.spec.Scheme.Apply(px.Pix[i], px.Pix[i+1], px.Pix[i+2])
			if n.spec.Layout == model.LayoutNCHW {
				for c := 0; c < 3; c++ {
					data[c*plane+y*w+x] = v[c]
				}
				continue
			}
			base := (y*w + x) * 3
			copy(data[base:base+3], v[:])
		}
	}
	return model.NewTensor(n.spec.Shape(), data)
}

// asRGBA returns img as a zero-origin *image.RGBA, converting if the
// resizer handed back another type.
func asRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return out
}
