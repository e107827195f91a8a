// Package pipeline runs an upload through validation, normalization and
// classification, and keeps per-process statistics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/Brownie44l1/catdog-api/internal/imaging"
	"github.com/Brownie44l1/catdog-api/internal/metrics"
	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/preprocess"
)

const (
	DefaultMaxBytes            = 10 << 20
	DefaultConfidenceThreshold = 0.8
	DefaultThumbnailSize       = 512
)

// Predictor is the part of *model.Classifier the pipeline needs.
type Predictor interface {
	Predict(t *model.Tensor) (model.Prediction, error)
	InputSpec() model.InputSpec
	Info() model.Info
}

type Options struct {
	// MaxBytes rejects larger uploads before decoding. Zero disables the check.
	MaxBytes int64
	// ConfidenceThreshold in [0.5, 1] marks predictions below it as unreliable.
	ConfidenceThreshold float64
	// ThumbnailSize is the longest side of the preview image. Zero skips it.
	ThumbnailSize int
}

// Result is a classified upload.
type Result struct {
	model.Prediction
	Level      model.ConfidenceLevel `json:"confidence_level"`
	Reliable   bool                  `json:"reliable"`
	Threshold  float64               `json:"threshold"`
	Image      imaging.Info          `json:"image"`
	DurationMS float64               `json:"duration_ms"`
	// Thumbnail is a JPEG data URI for display.
	Thumbnail string `json:"-"`
}

type Pipeline struct {
	normalizer *preprocess.Normalizer
	predictor  Predictor
	opts       Options
	stats      *Stats
}

func New(predictor Predictor, opts Options) (*Pipeline, error) {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.ConfidenceThreshold < 0.5 || opts.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence threshold %v outside [0.5, 1]", opts.ConfidenceThreshold)
	}

	normalizer, err := preprocess.NewNormalizer(predictor.InputSpec())
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}

	return &Pipeline{
		normalizer: normalizer,
		predictor:  predictor,
		opts:       opts,
		stats:      NewStats(),
	}, nil
}

// Classify validates, decodes, normalizes and classifies one upload.
func (p *Pipeline) Classify(ctx context.Context, u Upload) (*Result, error) {
	start := time.Now()
	res, err := p.classify(ctx, u)
	elapsed := time.Since(start)

	if err != nil {
		metrics.FailuresTotal.WithLabelValues(Reason(err)).Inc()
		metrics.PipelineDurationSeconds.WithLabelValues("error").Observe(elapsed.Seconds())
		log.WithError(err).WithField("file", u.Filename).Warn("classification failed")
		return nil, err
	}

	res.DurationMS = float64(elapsed.Microseconds()) / 1000
	p.stats.Record(res.Prediction, res.Reliable)
	metrics.PredictionsTotal.WithLabelValues(string(res.Label)).Inc()
	metrics.PipelineDurationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())
	if !res.Reliable {
		metrics.UncertainTotal.Inc()
	}

	log.WithFields(log.Fields{
		"file":        u.Filename,
		"label":       res.Label,
		"probability": res.Probability,
		"confidence":  res.ConfidenceText(),
		"reliable":    res.Reliable,
		"duration_ms": res.DurationMS,
	}).Info("classified upload")
	return res, nil
}

func (p *Pipeline) classify(ctx context.Context, u Upload) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateUpload(u, p.opts.MaxBytes); err != nil {
		return nil, err
	}

	img, format, err := imaging.Load(u.Data)
	if err != nil {
		return nil, err
	}

	tensor, err := p.normalizer.NormalizeImage(img)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pred, err := p.predictor.Predict(tensor)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Prediction: pred,
		Level:      model.LevelFor(pred.Confidence),
		Reliable:   pred.Confidence/100 >= p.opts.ConfidenceThreshold,
		Threshold:  p.opts.ConfidenceThreshold,
		Image:      imaging.Describe(img, format),
	}
	if p.opts.ThumbnailSize > 0 {
		thumb, err := imaging.EncodeJPEG(imaging.Thumbnail(img, p.opts.ThumbnailSize))
		if err != nil {
			log.WithError(err).Warn("failed to render thumbnail")
		} else {
			res.Thumbnail = imaging.DataURI(thumb)
		}
	}
	return res, nil
}

// PredictTensor classifies an already normalized tensor given as a flat
// slice in the network's layout.
func (p *Pipeline) PredictTensor(ctx context.Context, data []float32) (model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, err
	}
	tensor, err := model.NewTensor(p.normalizer.Spec().Shape(), data)
	if err != nil {
		metrics.FailuresTotal.WithLabelValues(Reason(err)).Inc()
		return model.Prediction{}, err
	}
	if err := tensor.CheckFinite(); err != nil {
		metrics.FailuresTotal.WithLabelValues("invalid_tensor").Inc()
		return model.Prediction{}, err
	}

	pred, err := p.predictor.Predict(tensor)
	if err != nil {
		metrics.FailuresTotal.WithLabelValues(Reason(err)).Inc()
		return model.Prediction{}, err
	}
	p.stats.Record(pred, pred.Confidence/100 >= p.opts.ConfidenceThreshold)
	metrics.PredictionsTotal.WithLabelValues(string(pred.Label)).Inc()
	return pred, nil
}

func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

func (p *Pipeline) ModelInfo() model.Info {
	return p.predictor.Info()
}

func (p *Pipeline) Options() Options {
	return p.opts
}

// Reason is a short metrics label for err.
func Reason(err error) string {
	var (
		decodeErr   *model.DecodeError
		formatErr   *model.UnsupportedFormatError
		mismatchErr *model.ShapeMismatchError
	)
	switch {
	case errors.Is(err, ErrEmptyUpload):
		return "empty"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, ErrUnsupportedExtension):
		return "extension"
	case errors.Is(err, imaging.ErrTooManyPixels):
		return "too_many_pixels"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.As(err, &formatErr):
		return "unsupported_format"
	case errors.As(err, &mismatchErr):
		return "shape_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, model.ErrClosed):
		return "closed"
	default:
		return "inference"
	}
}

// IsUserError reports whether err was caused by the upload itself, so its
// message is safe to show to whoever sent it.
func IsUserError(err error) bool {
	switch Reason(err) {
	case "inference", "canceled", "closed":
		return false
	default:
		return true
	}
}
