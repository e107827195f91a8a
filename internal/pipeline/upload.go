package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyUpload          = errors.New("no file uploaded")
	ErrFileTooLarge         = errors.New("file too large")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)

// AllowedExtensions are the upload suffixes accepted when a filename is
// known.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

// Upload is one user-submitted file.
type Upload struct {
	Filename string
	Data     []byte
}

// ValidateUpload checks size and extension before any decoding. Uploads
// without a filename skip the extension check and rely on content sniffing.
func ValidateUpload(u Upload, maxBytes int64) error {
	if len(u.Data) == 0 {
		return ErrEmptyUpload
	}
	if maxBytes > 0 && int64(len(u.Data)) > maxBytes {
		return fmt.Errorf("%w: %.1f MB exceeds the %.0f MB limit", ErrFileTooLarge, megabytes(int64(len(u.Data))), megabytes(maxBytes))
	}
	if u.Filename == "" {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(u.Filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w %q, allowed: %s", ErrUnsupportedExtension, ext, strings.Join(AllowedExtensions, ", "))
}

func megabytes(n int64) float64 {
	return float64(n) / (1 << 20)
}
