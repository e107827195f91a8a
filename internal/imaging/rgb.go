package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/Brownie44l1/catdog-api/internal/model"
)

// ToRGB flattens img into an opaque RGBA buffer. Grayscale and palette
// images are expanded to three channels; an alpha channel is dropped
// without compositing.
func ToRGB(img image.Image) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, &model.UnsupportedFormatError{Reason: "image has no pixels"}
	}

	switch img.(type) {
	case *image.Alpha, *image.Alpha16:
		return nil, &model.UnsupportedFormatError{Format: Mode(img), Reason: "alpha-only image has no color channels"}
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst, nil
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst, nil
}
