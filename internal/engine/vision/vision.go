package vision

import (
	"context"
	"errors"

	"github.com/crimson-sun/kartavya/internal/model"
)

// Model produces ranked predictions for an encoded image (JPEG, PNG, GIF).
// Implementations are treated as opaque: the severity classifier only sees
// the returned (label, probability) pairs.
type Model interface {
	Predict(ctx context.Context, image []byte) ([]model.Prediction, error)
	Close() error
}

// ErrNoModel is returned by Unavailable.
var ErrNoModel = errors.New("vision: model not loaded")

// Static returns the same predictions for every image. Useful in tests and
// for classifying label lists supplied by an external classifier.
type Static struct {
	Predictions []model.Prediction
	Err         error
}

func (s *Static) Predict(ctx context.Context, _ []byte) ([]model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]model.Prediction(nil), s.Predictions...), nil
}

func (s *Static) Close() error { return nil }

// Unavailable stands in for a model that failed to load. Every prediction
// fails with the load error so callers fall back to a default analysis.
type Unavailable struct {
	Err error
}

func (u Unavailable) Predict(context.Context, []byte) ([]model.Prediction, error) {
	if u.Err != nil {
		return nil, errors.Join(ErrNoModel, u.Err)
	}
	return nil, ErrNoModel
}

func (u Unavailable) Close() error { return nil }
