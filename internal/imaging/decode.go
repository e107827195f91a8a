// Package imaging decodes uploaded images and prepares them for display
// and for the normalizer.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/catdog-api/internal/model"
)

// MaxPixels caps the decoded size so a small compressed upload cannot
// expand into gigabytes of pixels.
const MaxPixels = 50_000_000

// ErrTooManyPixels is wrapped in a DecodeError when the header claims more
// than MaxPixels. Corrupt headers often decode to absurd dimensions, so the
// bytes are treated as unreadable.
var ErrTooManyPixels = errors.New("image exceeds the pixel limit")

// Decode reads any registered raster format (JPEG, PNG, GIF, BMP, WebP).
// The returned format is the lower-case codec name.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &model.DecodeError{Err: errors.New("empty input")}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", &model.DecodeError{Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, &model.DecodeError{Err: fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, format, &model.DecodeError{
			Err: fmt.Errorf("%w: %s header claims %dx%d, limit is %d pixels",
				ErrTooManyPixels, strings.ToUpper(format), cfg.Width, cfg.Height, MaxPixels),
		}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, &model.DecodeError{Err: err}
	}
	return img, format, nil
}

// Load decodes data and applies any EXIF orientation.
func Load(data []byte) (image.Image, string, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, format, err
	}
	if format == "jpeg" {
		img = Orient(img, Orientation(data))
	}
	return img, format, nil
}
