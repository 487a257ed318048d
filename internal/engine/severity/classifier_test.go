package severity

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/kartavya/internal/model"
)

func preds(pairs ...any) []model.Prediction {
	out := make([]model.Prediction, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Prediction{Label: pairs[i].(string), Probability: pairs[i+1].(float64)})
	}
	return out
}

func TestClassifyPotholeExample(t *testing.T) {
	c := New()
	in := preds("pothole", 0.9, "road", 0.6, "crack", 0.4)

	// "pothole" matches both "pothole" and "hole".
	scores := c.Score(in)
	if math.Abs(scores.Medium-4.2) > 1e-9 {
		t.Errorf("Medium score = %v, want 4.2", scores.Medium)
	}
	if scores.High != 0 || scores.Low != 0 {
		t.Errorf("High/Low scores = %v/%v, want 0/0", scores.High, scores.Low)
	}

	got, err := c.Classify(in)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	want := model.Analysis{
		Severity:        model.SeverityMedium,
		ConfidenceScore: 63,
		TopPredictions:  in,
		Summary:         "AI detected: pothole (90% confidence). MODERATE - Should be addressed soon.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifySingleFire(t *testing.T) {
	got, err := New().Classify(preds("fire", 0.8))
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if got.Severity != model.SeverityHigh {
		t.Errorf("Severity = %q, want high", got.Severity)
	}
	if got.ConfidenceScore != 80 {
		t.Errorf("ConfidenceScore = %d, want 80", got.ConfidenceScore)
	}
	if !strings.HasPrefix(got.Summary, "AI detected: fire (80% confidence). URGENT") {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestClassifyNoKeywordMatch(t *testing.T) {
	tests := []struct {
		name string
		top  float64
		want model.Severity
	}{
		{"confident top rates medium", 0.8, model.SeverityMedium},
		{"weak top rates low", 0.5, model.SeverityLow},
		{"exactly threshold rates low", 0.7, model.SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Classify(preds("tabby cat", tt.top, "keyboard", 0.1))
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if got.Severity != tt.want {
				t.Errorf("Severity = %q, want %q", got.Severity, tt.want)
			}
		})
	}
}

func TestClassifyHighKeywordTopLabel(t *testing.T) {
	cases := [][]model.Prediction{
		preds("fire engine", 0.5, "ambulance", 0.2, "tow truck", 0.1),
		preds("smoke", 0.6, "volcano", 0.3),
		preds("car crash", 0.55, "street sign", 0.2, "park bench", 0.1),
		preds("flood", 0.9),
	}
	for _, in := range cases {
		got, err := New().Classify(in)
		if err != nil {
			t.Fatalf("Classify(%v) error: %v", in, err)
		}
		if got.Severity != model.SeverityHigh {
			t.Errorf("Classify(%v) severity = %q, want high", in, got.Severity)
		}
	}
}

// A high-tier top label at 0.5 scores 1.0 for high, which enough medium
// matches further down the list can outweigh.
func TestHighKeywordTopLabelOutscoredByMedium(t *testing.T) {
	in := preds("fire", 0.5, "pothole road", 0.3)
	c := New()

	// "pothole road" matches "pothole", "hole" and "road": 3 × 0.3 × 1.5.
	scores := c.Score(in)
	if math.Abs(scores.High-1.0) > 1e-9 || math.Abs(scores.Medium-1.35) > 1e-9 {
		t.Fatalf("scores = %+v, want High 1.0 and Medium 1.35", scores)
	}
	got, err := c.Classify(in)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if got.Severity != model.SeverityMedium {
		t.Errorf("Severity = %q, want medium", got.Severity)
	}
}

func TestScoreMultipleKeywordsPerLabel(t *testing.T) {
	// "traffic light" matches two medium keywords.
	s := New().Score(preds("traffic light", 0.4))
	if math.Abs(s.Medium-1.2) > 1e-9 {
		t.Errorf("Medium = %v, want 1.2", s.Medium)
	}

	// A label can score in several tiers at once.
	s = New().Score(preds("broken park bench", 0.5))
	if math.Abs(s.High-(0.5*2+0.5)) > 1e-9 {
		t.Errorf("High = %v, want 1.5 (match plus damage bonus)", s.High)
	}
	if math.Abs(s.Low-1.0) > 1e-9 {
		t.Errorf("Low = %v, want 1.0", s.Low)
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	s := New().Score(preds("GRAFFITI", 0.5))
	if math.Abs(s.Medium-0.75) > 1e-9 {
		t.Errorf("Medium = %v, want 0.75", s.Medium)
	}
}

func TestDamageBonusOnlyFromTopLabel(t *testing.T) {
	s := New().Score(preds("bench", 0.6, "damaged fence", 0.3))
	// damaged fence: high 0.6, medium 0.45; no bonus since it is not the top label.
	if math.Abs(s.High-0.6) > 1e-9 {
		t.Errorf("High = %v, want 0.6", s.High)
	}
}

func TestLowWinsTies(t *testing.T) {
	// medium == low → falls through to low.
	got, err := New().Classify(preds("tree", 0.75, "sign", 0.5))
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if got.Severity != model.SeverityLow {
		t.Errorf("Severity = %q, want low", got.Severity)
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		in   []model.Prediction
		want int
	}{
		{preds("a", 1.0), 100},
		{preds("a", 0.0), 0},
		{preds("a", 0.5, "b", 0.25), 38},
		{preds("a", 0.5, "b", 0.3, "c", 0.1, "d", 0.1), 30},
	}
	for _, tt := range tests {
		got, err := New().Classify(tt.in)
		if err != nil {
			t.Fatalf("Classify() error: %v", err)
		}
		if got.ConfidenceScore != tt.want {
			t.Errorf("ConfidenceScore(%v) = %d, want %d", tt.in, got.ConfidenceScore, tt.want)
		}
		if got.ConfidenceScore < 0 || got.ConfidenceScore > 100 {
			t.Errorf("ConfidenceScore %d out of range", got.ConfidenceScore)
		}
		if len(got.TopPredictions) > 3 {
			t.Errorf("TopPredictions has %d entries, want <= 3", len(got.TopPredictions))
		}
	}
}

func TestClassifyEmpty(t *testing.T) {
	_, err := New().Classify(nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	in := preds("street sign", 0.45, "pole", 0.3, "grass", 0.2)
	c := New()
	a, _ := c.Classify(in)
	b, _ := c.Classify(in)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated Classify differs:\n%s", diff)
	}
}

func TestClassifyDoesNotAliasInput(t *testing.T) {
	in := preds("pothole", 0.9, "road", 0.6)
	got, _ := New().Classify(in)
	in[0].Label = "mutated"
	if got.TopPredictions[0].Label != "pothole" {
		t.Errorf("TopPredictions aliases caller slice")
	}
}

func TestFallback(t *testing.T) {
	up := &UpstreamError{Err: errors.New("model not loaded")}
	got := Fallback(up)
	if got.Severity != model.SeverityMedium || got.ConfidenceScore != 50 {
		t.Errorf("Fallback = %+v, want medium/50", got)
	}
	if got.Error != "model not loaded" {
		t.Errorf("Error = %q, want upstream message", got.Error)
	}
	if got.Summary == "" {
		t.Error("Summary is empty")
	}
	if !errors.Is(up, up.Err) {
		t.Error("UpstreamError does not unwrap")
	}
}

func TestKeywordsReturnsCopy(t *testing.T) {
	kw := Keywords(model.SeverityHigh)
	if len(kw) != 18 {
		t.Fatalf("high keywords = %d, want 18", len(kw))
	}
	kw[0] = "changed"
	if Keywords(model.SeverityHigh)[0] != "fire" {
		t.Error("Keywords exposes the shared table")
	}
	if Keywords("unknown") != nil {
		t.Error("expected nil for unknown tier")
	}
}
