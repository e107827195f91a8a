package model

import (
	"fmt"
	"math"
)

// DecisionThreshold splits the sigmoid output into the two labels.
const DecisionThreshold = 0.5

// Label is the discrete class of a prediction.
type Label string

const (
	LabelCat Label = "Cat"
	LabelDog Label = "Dog"
)

// LabelFor thresholds a dog probability. Exactly 0.5 resolves to Cat.
func LabelFor(p float64) Label {
	if p > DecisionThreshold {
		return LabelDog
	}
	return LabelCat
}

// Prediction is the outcome of a single forward pass.
type Prediction struct {
	// Probability is the network's dog probability in [0, 1].
	Probability    float64 `json:"probability"`
	Label          Label   `json:"label"`
	Confidence     float64 `json:"confidence"`
	CatProbability float64 `json:"cat_probability"`
	DogProbability float64 `json:"dog_probability"`
}

// NewPrediction derives label and confidence from a dog probability.
// Values outside [0, 1] are clamped.
func NewPrediction(p float64) Prediction {
	p = math.Min(1, math.Max(0, p))
	return Prediction{
		Probability:    p,
		Label:          LabelFor(p),
		Confidence:     math.Max(p, 1-p) * 100,
		CatProbability: 1 - p,
		DogProbability: p,
	}
}

// ConfidenceText formats the confidence as a percentage with one decimal.
func (p Prediction) ConfidenceText() string {
	return FormatPercent(p.Confidence)
}

// FormatPercent renders a value already scaled to 0..100.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// ConfidenceLevel is a human description of a confidence percentage.
type ConfidenceLevel string

const (
	LevelExtremelyHigh ConfidenceLevel = "Extremely High"
	LevelHigh          ConfidenceLevel = "High"
	LevelModerate      ConfidenceLevel = "Moderate"
	LevelLow           ConfidenceLevel = "Low"
	LevelVeryLow       ConfidenceLevel = "Very Low"
)

// LevelFor buckets a confidence percentage.
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= 90:
		return LevelExtremelyHigh
	case confidence >= 80:
		return LevelHigh
	case confidence >= 70:
		return LevelModerate
	case confidence >= 60:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// Description explains the level to an end user.
func (l ConfidenceLevel) Description() string {
	switch l {
	case LevelExtremelyHigh:
		return "The model is very certain about this prediction."
	case LevelHigh:
		return "Strong confidence in the prediction result."
	case LevelModerate:
		return "Reasonable confidence, but some uncertainty remains."
	case LevelLow:
		return "Limited confidence, consider image quality."
	default:
		return "High uncertainty, the image may be unclear or ambiguous."
	}
}
