package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMetadata_MissingFileUsesDefaults(t *testing.T) {
	meta, err := LoadMetadata(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Equal(t, DefaultMetadata(), meta)
	require.Equal(t, Shape{1, 224, 224, 3}, meta.InputSpec().Shape())
}

func TestLoadMetadata_ChannelsFirst(t *testing.T) {
	path := writeFile(t, "meta.json", `{
		"input_shape": [1, 3, 160, 160],
		"layout": "NCHW",
		"preprocessing": "torch",
		"output_activation": "logit"
	}`)

	meta, err := LoadMetadata(path)
	require.NoError(t, err)

	spec := meta.InputSpec()
	require.Equal(t, 160, spec.Height)
	require.Equal(t, LayoutNCHW, spec.Layout)
	require.Equal(t, SchemeTorch, spec.Scheme)
	require.Equal(t, Shape{1, 3, 160, 160}, spec.Shape())
}

func TestLoadMetadata_ModelSize(t *testing.T) {
	meta, err := LoadMetadata(writeFile(t, "meta.json", `{
		"trainable_params": 6423041,
		"non_trainable_params": 14714688,
		"num_layers": 23
	}`))
	require.NoError(t, err)
	require.Equal(t, int64(21137729), meta.TotalParams)
	require.Equal(t, 23, meta.NumLayers)

	meta, err = LoadMetadata(writeFile(t, "meta.json", `{"total_params": 100, "trainable_params": 40}`))
	require.NoError(t, err)
	require.Equal(t, int64(100), meta.TotalParams)
}

func TestLoadMetadata_Rejects(t *testing.T) {
	tests := map[string]string{
		"negative params": `{"total_params": -1}`,
		"bad json":       `{`,
		"bad layout":     `{"layout": "HWC"}`,
		"bad scheme":     `{"preprocessing": "zscore"}`,
		"grayscale":      `{"input_shape": [1, 224, 224, 1]}`,
		"batched":        `{"input_shape": [8, 224, 224, 3]}`,
		"not square":     `{"input_shape": [1, 224, 200, 3]}`,
		"bad activation": `{"output_activation": "relu"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMetadata(writeFile(t, "meta.json", body))
			require.Error(t, err)
		})
	}
}
