package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/model/modeltest"
	"github.com/Brownie44l1/catdog-api/internal/pipeline"
	"github.com/Brownie44l1/catdog-api/internal/version"
)

var testShape = model.Shape{1, 8, 8, 3}

func newTestRouter(t *testing.T, p float32, maxBytes int64) *gin.Engine {
	t.Helper()
	return newClassifierRouter(t, model.NewClassifier(modeltest.Constant(testShape, p)), maxBytes)
}

func newClassifierRouter(t *testing.T, clf *model.Classifier, maxBytes int64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pl, err := pipeline.New(clf, pipeline.Options{
		MaxBytes:      maxBytes,
		ThumbnailSize: 32,
	})
	require.NoError(t, err)
	h := NewHandler(pl)

	tmpl, err := Templates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", h.Index)
	r.GET("/health", h.Health)
	r.GET("/api/stats", h.Stats)
	r.GET("/api/model", h.ModelInfo)
	r.POST("/classify", h.Classify)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)
	return r
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(newTestRouter(t, 0.5, 0), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string       `json:"status"`
		InputShape string       `json:"input_shape"`
		Build      version.Info `json:"build"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "(1, 8, 8, 3)", body.InputShape)
	assert.Equal(t, version.Service, body.Build.Service)
	assert.NotEmpty(t, body.Build.GoVersion)
}

func TestHealth_BuildInfo(t *testing.T) {
	oldSHA, oldTime := version.GitSHA, version.BuildTime
	t.Cleanup(func() { version.GitSHA, version.BuildTime = oldSHA, oldTime })
	version.GitSHA, version.BuildTime = "feedface00", "2026-10-01T12:00:00Z"

	w := serve(newTestRouter(t, 0.5, 0), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"git_sha":"feedface00"`)
	assert.Contains(t, w.Body.String(), `"build_time":"2026-10-01T12:00:00Z"`)
}

func TestPredictFromImage(t *testing.T) {
	r := newTestRouter(t, 0.91, 1<<20)

	w := serve(r, multipartRequest(t, "/predict/image", FormField, "dog.png", samplePNG(t)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Level      string  `json:"confidence_level"`
		Reliable   bool    `json:"reliable"`
		Image      struct {
			Format string `json:"format"`
			Width  int    `json:"width"`
		} `json:"image"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Dog", body.Label)
	assert.InDelta(t, 91.0, body.Confidence, 1e-3)
	assert.Equal(t, "Extremely High", body.Level)
	assert.True(t, body.Reliable)
	assert.Equal(t, "PNG", body.Image.Format)
	assert.Equal(t, 64, body.Image.Width)
	assert.NotContains(t, w.Body.String(), "base64")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Contains(t, w.Body.String(), `"dogs":1`)
}

func TestPredictFromImage_Errors(t *testing.T) {
	r := newTestRouter(t, 0.5, 1<<10)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
	}{
		{"garbage", multipartRequest(t, "/predict/image", FormField, "cat.jpg", []byte("not an image")), http.StatusBadRequest},
		{"extension", multipartRequest(t, "/predict/image", FormField, "cat.txt", []byte("text")), http.StatusUnsupportedMediaType},
		{"wrong field", multipartRequest(t, "/predict/image", "file", "cat.png", []byte("x")), http.StatusBadRequest},
		{"too large", multipartRequest(t, "/predict/image", FormField, "cat.png", make([]byte, 200<<10)), http.StatusRequestEntityTooLarge},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/predict/image", nil), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.req)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestPredict_RawTensor(t *testing.T) {
	r := newTestRouter(t, 0.2, 0)

	payload, err := json.Marshal(model.PredictionRequest{Image: make([]float32, testShape.Volume())})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"label":"Cat"`)

	req = httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader([]byte(`{"image":[1,2,3]}`)))
	w = serve(r, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader([]byte(`{`)))
	w = serve(r, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexAndClassifyPages(t *testing.T) {
	r := newTestRouter(t, 0.3, 1<<20)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="image"`)
	assert.Contains(t, w.Body.String(), "VGG16")

	w = serve(r, multipartRequest(t, "/classify", FormField, "cat.png", samplePNG(t)))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Uncertain prediction, best guess: Cat")
	assert.Contains(t, body, "70.0%")
	assert.Contains(t, body, `src="data:image/jpeg;base64,`)
	assert.Contains(t, body, "uncertain")

	w = serve(r, multipartRequest(t, "/classify", FormField, "cat.png", []byte("nope")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Could not classify the image")
}

func TestModelInfo(t *testing.T) {
	w := serve(newTestRouter(t, 0.5, 0), httptest.NewRequest(http.MethodGet, "/api/model", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var info model.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, testShape, info.InputShape)
	assert.Equal(t, []string{"Cat", "Dog"}, info.Classes)
}

func TestModelInfo_ModelSize(t *testing.T) {
	meta := model.DefaultMetadata()
	meta.TotalParams = 21137729
	meta.TrainableParams = 6423041
	meta.NumLayers = 23
	r := newClassifierRouter(t, model.NewClassifier(modeltest.Constant(testShape, 0.5), model.WithMetadata(meta)), 0)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/model", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info model.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, int64(21137729), info.TotalParams)
	assert.Equal(t, 23, info.NumLayers)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "21137729 (6423041 trainable)")
	assert.Contains(t, w.Body.String(), "<dt>Layers</dt><dd>23</dd>")
}

func TestStatusFor(t *testing.T) {
	for err, want := range map[error]int{
		pipeline.ErrFileTooLarge:                      http.StatusRequestEntityTooLarge,
		pipeline.ErrUnsupportedExtension:              http.StatusUnsupportedMediaType,
		&model.UnsupportedFormatError{Reason: "x"}:    http.StatusUnsupportedMediaType,
		&model.DecodeError{Err: errors.New("x")}:      http.StatusBadRequest,
		errMissingImage:                               http.StatusBadRequest,
		&model.ShapeMismatchError{}:                   http.StatusUnprocessableEntity,
		context.DeadlineExceeded:                      http.StatusRequestTimeout,
		model.ErrClosed:                               http.StatusServiceUnavailable,
		errors.New("onnxruntime: session run failed"): http.StatusInternalServerError,
	} {
		assert.Equal(t, want, StatusFor(err), "%v", err)
	}
}
