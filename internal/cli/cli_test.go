package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/model/modeltest"
	"github.com/Brownie44l1/catdog-api/internal/version"
)

func stubFactory(p float32) model.NetworkFactory {
	return func(_ string, meta model.Metadata) (model.Network, error) {
		return modeltest.Constant(meta.InputSpec().Shape(), p), nil
	}
}

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0o644))
	return path
}

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < 32; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	var out, errOut bytes.Buffer
	cmd := newRootCommand(a)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	weights := writeModel(t, dir)
	img := writePNG(t, dir, "rex.png")

	out, err := run(t, &app{factory: stubFactory(0.87)}, "classify", "--model", weights, "--metadata", filepath.Join(dir, "none.json"), img)
	require.NoError(t, err)
	assert.Contains(t, out, "rex.png: Dog (87.0%, High)")
}

func TestClassifyCommand_Stdin(t *testing.T) {
	dir := t.TempDir()
	weights := writeModel(t, dir)
	data, err := os.ReadFile(writePNG(t, dir, "pet"))
	require.NoError(t, err)

	t.Setenv("LOG_LEVEL", "error")
	var out bytes.Buffer
	cmd := newRootCommand(&app{factory: stubFactory(0.1)})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewReader(data))
	cmd.SetArgs([]string{"classify", "--model", weights, "-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "-: Cat (90.0%, High)")
}

func TestClassifyCommand_JSONAndFailures(t *testing.T) {
	dir := t.TempDir()
	weights := writeModel(t, dir)
	good := writePNG(t, dir, "tom.png")
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	out, err := run(t, &app{factory: stubFactory(0.2)}, "classify", "--json", "--model", weights, good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files")

	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "Cat", results[0]["label"])
	assert.Contains(t, results[1]["error"], "decode image")
}

func TestClassifyCommand_MissingModel(t *testing.T) {
	_, err := run(t, &app{}, "classify", "--model", filepath.Join(t.TempDir(), "missing.onnx"), "x.png")

	var loadErr *model.ModelLoadError
	require.True(t, errors.As(err, &loadErr))
}

func TestInfoCommand(t *testing.T) {
	weights := writeModel(t, t.TempDir())

	out, err := run(t, &app{factory: stubFactory(0.5)}, "info", "--model", weights)
	require.NoError(t, err)

	var info model.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, model.Shape{1, 224, 224, 3}, info.InputShape)
	assert.Equal(t, int64(7), info.SizeBytes)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, &app{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "catdog-api dev")
}

func TestVersionCommand_BuildTime(t *testing.T) {
	old := version.BuildTime
	t.Cleanup(func() { version.BuildTime = old })
	version.BuildTime = "2026-10-01T12:00:00Z"

	out, err := run(t, &app{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "built 2026-10-01T12:00:00Z")
}

func TestRootCommand_RejectsBadConfig(t *testing.T) {
	t.Setenv("CONFIDENCE_THRESHOLD", "2")
	_, err := run(t, &app{}, "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIDENCE_THRESHOLD")
}

type blockingRunner struct {
	started  chan struct{}
	finished atomic.Bool
}

func (r *blockingRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	time.Sleep(10 * time.Millisecond)
	r.finished.Store(true)
	return nil
}

func TestRunBackground_StopWaitsForRun(t *testing.T) {
	r := &blockingRunner{started: make(chan struct{})}
	stop := runBackground(context.Background(), "test runner", r)
	<-r.started
	assert.False(t, r.finished.Load())

	stop()
	assert.True(t, r.finished.Load())
}

func TestRunBackground_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &blockingRunner{started: make(chan struct{})}
	stop := runBackground(ctx, "test runner", r)
	<-r.started

	cancel()
	require.Eventually(t, r.finished.Load, time.Second, 5*time.Millisecond)
	stop()
}
