package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// NetworkFactory opens the weights artifact at path.
type NetworkFactory func(path string, meta Metadata) (Network, error)

// LoadConfig locates the weights artifact and its metadata.
type LoadConfig struct {
	ModelPath    string
	MetadataPath string
	LibraryPath  string
	// Factory defaults to onnxruntime.
	Factory NetworkFactory
}

// LoadClassifier reads metadata and weights once and returns the shared
// classifier handle. Every failure is a *ModelLoadError.
func LoadClassifier(cfg LoadConfig, opts ...ClassifierOption) (*Classifier, error) {
	stat, err := os.Stat(cfg.ModelPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: errors.New("weights file not found")}
	}
	if err != nil {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: err}
	}
	if stat.IsDir() {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: errors.New("path is a directory")}
	}
	if stat.Size() == 0 {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: errors.New("weights file is empty")}
	}

	digest, err := fileDigest(cfg.ModelPath)
	if err != nil {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: err}
	}

	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, &ModelLoadError{Path: cfg.MetadataPath, Err: err}
	}

	factory := cfg.Factory
	if factory == nil {
		factory = onnxFactory(cfg.LibraryPath)
	}

	net, err := factory(cfg.ModelPath, meta)
	if err != nil {
		return nil, &ModelLoadError{Path: cfg.ModelPath, Err: err}
	}
	if got, want := net.InputShape(), meta.InputSpec().Shape(); got != want {
		net.Close()
		return nil, &ModelLoadError{
			Path: cfg.ModelPath,
			Err:  fmt.Errorf("network input %s does not match metadata %s", got, want),
		}
	}

	opts = append([]ClassifierOption{
		WithMetadata(meta),
		WithInfo(cfg.ModelPath, stat.Size(), digest),
	}, opts...)
	return NewClassifier(net, opts...), nil
}

func onnxFactory(libraryPath string) NetworkFactory {
	return func(path string, meta Metadata) (Network, error) {
		return NewONNXNetwork(path, ONNXOptions{
			LibraryPath: libraryPath,
			InputName:   meta.InputName,
			OutputName:  meta.OutputName,
			InputShape:  meta.InputSpec().Shape(),
			OutputShape: meta.OutputShape,
		})
	}
}

func fileDigest(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read weights: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
