package kartavya

import (
	"context"
	"fmt"

	"github.com/crimson-sun/kartavya/internal/engine"
	"github.com/crimson-sun/kartavya/internal/engine/severity"
	"github.com/crimson-sun/kartavya/internal/engine/vision"
	"github.com/crimson-sun/kartavya/internal/model"
)

// ErrNoPredictions is returned by Classify for an empty prediction list.
var ErrNoPredictions = severity.ErrInvalidInput

// Model produces ranked predictions for an encoded image. Implement it to
// plug in a classifier other than the bundled ONNX one.
type Model interface {
	Predict(ctx context.Context, image []byte) ([]Prediction, error)
	Close() error
}

// Kartavya rates civic issue photos. Safe for concurrent use.
type Kartavya struct {
	engine *engine.Engine
}

// New creates a Kartavya instance. Unless WithModel is given it loads the
// ONNX model and labels, which is expensive: create once, reuse.
func New(opts ...Option) (*Kartavya, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var m vision.Model
	if o.model != nil {
		m = modelAdapter{o.model}
	} else {
		modelPath, labelsPath := resolvePaths(o)
		onnx, err := vision.NewONNX(modelPath, labelsPath, vision.Options{
			InputSize:    o.inputSize,
			TopK:         o.topK,
			ApplySoftmax: !o.noSoftmax,
		})
		if err != nil {
			return nil, fmt.Errorf("kartavya: %w", err)
		}
		m = onnx
	}

	return &Kartavya{engine: engine.New(m, severity.New())}, nil
}

// Analyze rates an encoded photo. It never fails: when the model cannot
// produce predictions the result is medium severity with Error set.
func (k *Kartavya) Analyze(ctx context.Context, image []byte) Analysis {
	return analysisFromModel(k.engine.Analyze(ctx, image))
}

// Classify rates predictions from an external classifier. It returns
// ErrNoPredictions when preds is empty.
func (k *Kartavya) Classify(preds []Prediction) (Analysis, error) {
	a, err := k.engine.AnalyzePredictions(predictionsToModel(preds))
	if err != nil {
		return Analysis{}, err
	}
	return analysisFromModel(a), nil
}

// Close releases model resources. Must be called when the instance is no
// longer needed.
func (k *Kartavya) Close() error {
	return k.engine.Close()
}

// Classify rates predictions without loading a model.
func Classify(preds []Prediction) (Analysis, error) {
	a, err := severity.New().Classify(predictionsToModel(preds))
	if err != nil {
		return Analysis{}, err
	}
	return analysisFromModel(a), nil
}

// modelAdapter exposes a public Model to the engine.
type modelAdapter struct {
	m Model
}

func (a modelAdapter) Predict(ctx context.Context, image []byte) ([]model.Prediction, error) {
	preds, err := a.m.Predict(ctx, image)
	if err != nil {
		return nil, err
	}
	return predictionsToModel(preds), nil
}

func (a modelAdapter) Close() error { return a.m.Close() }
