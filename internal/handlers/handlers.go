package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/pipeline"
	"github.com/Brownie44l1/catdog-api/internal/version"
)

// FormField is the multipart field carrying the image.
const FormField = "image"

// multipartSlack covers multipart headers and boundaries around the file.
const multipartSlack = 64 << 10

var errMissingImage = errors.New("no image file provided, use 'image' as the form field name")

type Handler struct {
	pipeline *pipeline.Pipeline
	maxBytes int64
}

func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{
		pipeline: p,
		maxBytes: p.Options().MaxBytes,
	}
}

func (h *Handler) Health(c *gin.Context) {
	info := h.pipeline.ModelInfo()
	build := version.Get()
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     build.Service,
		"version":     build.Version,
		"model":       info.Architecture,
		"input_shape": info.InputShape.String(),
		"build":       build,
	})
}

// Predict classifies a pre-normalized tensor sent as a flat JSON array.
func (h *Handler) Predict(c *gin.Context) {
	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	result, err := h.pipeline.PredictTensor(c.Request.Context(), req.Image)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PredictFromImage classifies a multipart image upload and answers in JSON.
func (h *Handler) PredictFromImage(c *gin.Context) {
	upload, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	log.Infof("Received file: %s, size: %d bytes", upload.Filename, len(upload.Data))

	result, err := h.pipeline.Classify(c.Request.Context(), upload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.ModelInfo())
}

func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pipeline.Stats())
}

// readUpload extracts the image field, enforcing the size limit while the
// body is read.
func (h *Handler) readUpload(c *gin.Context) (pipeline.Upload, error) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartSlack)
	}

	header, err := c.FormFile(FormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr), strings.Contains(err.Error(), "request body too large"):
			return pipeline.Upload{}, fmt.Errorf("%w: limit is %d MB", pipeline.ErrFileTooLarge, h.maxBytes>>20)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return pipeline.Upload{}, errMissingImage
		default:
			return pipeline.Upload{}, fmt.Errorf("%w: %v", errBadForm, err)
		}
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return pipeline.Upload{}, fmt.Errorf("%w: limit is %d MB", pipeline.ErrFileTooLarge, h.maxBytes>>20)
	}

	file, err := header.Open()
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("failed to read upload: %w", err)
	}
	return pipeline.Upload{Filename: header.Filename, Data: data}, nil
}

var errBadForm = errors.New("failed to parse form")

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Prediction error")
		msg = "Prediction failed"
	}
	c.JSON(status, gin.H{"error": msg})
}

// StatusFor maps pipeline and model errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		decodeErr   *model.DecodeError
		formatErr   *model.UnsupportedFormatError
		mismatchErr *model.ShapeMismatchError
	)
	switch {
	case errors.Is(err, pipeline.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrUnsupportedExtension), errors.As(err, &formatErr):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, pipeline.ErrEmptyUpload), errors.Is(err, errMissingImage),
		errors.Is(err, errBadForm), errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.As(err, &mismatchErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, model.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
