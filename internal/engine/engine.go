package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crimson-sun/kartavya/internal/engine/severity"
	"github.com/crimson-sun/kartavya/internal/engine/vision"
	"github.com/crimson-sun/kartavya/internal/model"
)

// errNoPredictions marks a model that ran but returned nothing.
var errNoPredictions = errors.New("model returned no predictions")

// Engine orchestrates the predict → classify pipeline for report photos.
type Engine struct {
	model      vision.Model
	classifier *severity.Classifier
}

// New creates an Engine from an image model and a severity classifier.
func New(m vision.Model, cls *severity.Classifier) *Engine {
	return &Engine{model: m, classifier: cls}
}

// Analyze runs the photo through the image model and classifies the
// predictions. It never fails: model errors produce the default medium
// analysis with the error message attached, so report submission can
// always continue.
func (e *Engine) Analyze(ctx context.Context, image []byte) model.Analysis {
	preds, err := e.model.Predict(ctx, image)
	if err == nil && len(preds) == 0 {
		err = errNoPredictions
	}
	if err != nil {
		up := &severity.UpstreamError{Err: err}
		slog.Warn("image analysis failed, using default severity", "error", up)
		return severity.Fallback(up)
	}

	result, err := e.classifier.Classify(preds)
	if err != nil {
		// Unreachable with a non-empty list; keep the contract anyway.
		return severity.Fallback(err)
	}
	slog.Debug("image analyzed",
		"severity", result.Severity,
		"confidence", result.ConfidenceScore,
		"top_label", preds[0].Label)
	return result
}

// AnalyzePredictions classifies predictions produced by an external
// classifier. Returns severity.ErrInvalidInput for an empty list.
func (e *Engine) AnalyzePredictions(preds []model.Prediction) (model.Analysis, error) {
	return e.classifier.Classify(preds)
}

// Close releases the image model.
func (e *Engine) Close() error {
	return e.model.Close()
}
