package imaging

import (
	"bytes"
	"image"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation extracts the EXIF orientation tag from JPEG data. Anything
// unreadable counts as 1 (upright).
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// Orient returns img rotated and flipped so that it displays upright for
// the given EXIF orientation.
func Orient(img image.Image, orientation int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var (
		dw, dh = w, h
		src    func(x, y int) (int, int)
	)
	switch orientation {
	case 2: // flip horizontal
		src = func(x, y int) (int, int) { return w - 1 - x, y }
	case 3: // rotate 180
		src = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 4: // flip vertical
		src = func(x, y int) (int, int) { return x, h - 1 - y }
	case 5: // transpose
		dw, dh = h, w
		src = func(x, y int) (int, int) { return y, x }
	case 6: // rotate 90 clockwise
		dw, dh = h, w
		src = func(x, y int) (int, int) { return y, h - 1 - x }
	case 7: // transverse
		dw, dh = h, w
		src = func(x, y int) (int, int) { return w - 1 - y, h - 1 - x }
	case 8: // rotate 90 counter-clockwise
		dw, dh = h, w
		src = func(x, y int) (int, int) { return w - 1 - y, x }
	default:
		return img
	}

	out := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			sx, sy := src(x, y)
			out.Set(x, y, img.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	log.Debugf("applied orientation correction: %d", orientation)
	return out
}
