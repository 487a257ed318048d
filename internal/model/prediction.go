package model

// Severity is the urgency tier assigned to a reported issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Valid reports whether s is one of the three known tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Prediction is a single (label, probability) pair produced by an image
// classification model. Lists of predictions are ordered by descending
// probability.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Analysis is the outcome of running a photo through the severity classifier.
type Analysis struct {
	Severity        Severity     `json:"severity"`
	ConfidenceScore int          `json:"confidence_score"` // 0-100
	TopPredictions  []Prediction `json:"top_predictions"`  // at most 3
	Summary         string       `json:"summary"`
	Error           string       `json:"error,omitempty"` // upstream failure, fallback result
}
