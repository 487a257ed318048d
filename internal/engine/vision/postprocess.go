package vision

import (
	"math"
	"sort"

	"github.com/crimson-sun/kartavya/internal/model"
)

// softmax converts logits into probabilities.
func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := float64(logits[0])
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(l))
	}
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// topK returns the k most probable labels in descending order. Ties keep
// class index order.
func topK(probs []float64, labels []string, k int) []model.Prediction {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })

	k = min(k, len(idx))
	out := make([]model.Prediction, 0, k)
	for _, i := range idx[:k] {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		p := probs[i]
		// Clamp: models that already emit probabilities can drift past 1.
		p = math.Max(0, math.Min(1, p))
		out = append(out, model.Prediction{Label: label, Probability: p})
	}
	return out
}
