package imaging

import (
	"image"
	"strings"
)

// Info is what the UI shows about an upload.
type Info struct {
	Format     string  `json:"format"`
	Mode       string  `json:"mode"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Megapixels float64 `json:"megapixels"`
}

// Describe summarises a decoded image. format is the codec name returned
// by Decode.
func Describe(img image.Image, format string) Info {
	b := img.Bounds()
	return Info{
		Format:     strings.ToUpper(format),
		Mode:       Mode(img),
		Width:      b.Dx(),
		Height:     b.Dy(),
		Megapixels: float64(b.Dx()*b.Dy()) / 1e6,
	}
}

// Mode names the pixel model of img using the short names common in
// imaging tools (L, RGB, RGBA, P, CMYK, ...).
func Mode(img image.Image) string {
	switch img.(type) {
	case *image.Gray:
		return "L"
	case *image.Gray16:
		return "I;16"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	case *image.Alpha, *image.Alpha16:
		return "A"
	case *image.YCbCr:
		return "RGB"
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return "RGB"
	}
	return "RGBA"
}
