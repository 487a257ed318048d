package kartavya

import "github.com/crimson-sun/kartavya/internal/model"

// Severity is the urgency tier of an issue: high, medium or low.
type Severity string

const (
	High   Severity = "high"
	Medium Severity = "medium"
	Low    Severity = "low"
)

// Prediction is a (label, probability) pair from an image model.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Analysis is the severity rating of a photo. This is the stable public
// type; internal representations may change without breaking callers.
type Analysis struct {
	Severity        Severity     `json:"severity"`
	ConfidenceScore int          `json:"confidence_score"`
	TopPredictions  []Prediction `json:"top_predictions"`
	Summary         string       `json:"summary"`
	Error           string       `json:"error,omitempty"` // set when the model failed
}

func analysisFromModel(a model.Analysis) Analysis {
	out := Analysis{
		Severity:        Severity(a.Severity),
		ConfidenceScore: a.ConfidenceScore,
		TopPredictions:  make([]Prediction, len(a.TopPredictions)),
		Summary:         a.Summary,
		Error:           a.Error,
	}
	for i, p := range a.TopPredictions {
		out.TopPredictions[i] = Prediction(p)
	}
	return out
}

func predictionsToModel(preds []Prediction) []model.Prediction {
	out := make([]model.Prediction, len(preds))
	for i, p := range preds {
		out[i] = model.Prediction(p)
	}
	return out
}
