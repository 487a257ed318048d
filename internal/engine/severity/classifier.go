package severity

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crimson-sun/kartavya/internal/model"
)

// ErrInvalidInput is returned when Classify is called with no predictions.
var ErrInvalidInput = errors.New("severity: at least one prediction is required")

// UpstreamError wraps a failure of the image classifier that produced (or
// failed to produce) the predictions.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "severity: upstream classifier: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Scores holds the weighted keyword score per tier.
type Scores struct {
	High   float64
	Medium float64
	Low    float64
}

func (s Scores) zero() bool {
	return s.High == 0 && s.Medium == 0 && s.Low == 0
}

// Classifier maps ranked image predictions to a severity tier.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct{}

// New creates a Classifier backed by the built-in keyword table.
func New() *Classifier {
	return &Classifier{}
}

// Classify computes the severity, confidence score, and summary for a
// non-empty list of predictions ordered by descending probability.
func (c *Classifier) Classify(preds []model.Prediction) (model.Analysis, error) {
	if len(preds) == 0 {
		return model.Analysis{}, ErrInvalidInput
	}

	scores := c.Score(preds)
	sev := decide(scores, preds[0])

	top := preds[:min(3, len(preds))]
	return model.Analysis{
		Severity:        sev,
		ConfidenceScore: confidenceScore(top),
		TopPredictions:  append([]model.Prediction(nil), top...),
		Summary:         summarize(preds[0], sev),
	}, nil
}

// Score accumulates the weighted keyword matches of every prediction.
// A label contributes once per matching keyword, in every tier it matches.
func (c *Classifier) Score(preds []model.Prediction) Scores {
	var s Scores
	if len(preds) == 0 {
		return s
	}
	lower := cases.Lower(language.Und)
	for _, p := range preds {
		label := lower.String(p.Label)
		for _, t := range tierKeywords {
			for _, kw := range t.keywords {
				if !strings.Contains(label, kw) {
					continue
				}
				switch t.tier {
				case model.SeverityHigh:
					s.High += p.Probability * t.weight
				case model.SeverityMedium:
					s.Medium += p.Probability * t.weight
				case model.SeverityLow:
					s.Low += p.Probability * t.weight
				}
			}
		}
	}

	topLabel := lower.String(preds[0].Label)
	for _, marker := range damageMarkers {
		if strings.Contains(topLabel, marker) {
			s.High += damageBonus
			break
		}
	}
	return s
}

func decide(s Scores, top model.Prediction) model.Severity {
	switch {
	case s.High > s.Medium && s.High > s.Low:
		return model.SeverityHigh
	case s.Medium > s.Low:
		return model.SeverityMedium
	case s.zero():
		if top.Probability > unmatchedMediumThreshold {
			return model.SeverityMedium
		}
		return model.SeverityLow
	default:
		return model.SeverityLow
	}
}

// confidenceScore is the rounded mean probability of the given predictions
// as a percentage, clamped to [0, 100].
func confidenceScore(top []model.Prediction) int {
	var sum float64
	for _, p := range top {
		sum += p.Probability
	}
	score := int(math.Round(sum / float64(len(top)) * 100))
	return max(0, min(100, score))
}

func summarize(top model.Prediction, sev model.Severity) string {
	return fmt.Sprintf("AI detected: %s (%d%% confidence). %s.",
		top.Label, int(math.Round(top.Probability*100)), summaryText[sev])
}

// Fallback is the result reported when the upstream classifier fails.
// Report submission continues with a medium severity and the error message
// recorded alongside.
func Fallback(err error) model.Analysis {
	a := model.Analysis{
		Severity:        model.SeverityMedium,
		ConfidenceScore: 50,
		TopPredictions:  []model.Prediction{},
		Summary:         fallbackSummary,
	}
	if err != nil {
		var up *UpstreamError
		if errors.As(err, &up) {
			err = up.Err
		}
		a.Error = err.Error()
	}
	return a
}
