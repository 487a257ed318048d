package severity

import "github.com/crimson-sun/kartavya/internal/model"

// Tier weights applied to a prediction's probability for each keyword match.
const (
	highWeight   = 2.0
	mediumWeight = 1.5
	lowWeight    = 1.0

	// damageBonus is added to the high score when the top label itself
	// describes damage.
	damageBonus = 0.5

	// unmatchedMediumThreshold: with no keyword hits, a top probability
	// strictly above this still rates medium.
	unmatchedMediumThreshold = 0.7
)

var damageMarkers = [...]string{"damaged", "broken"}

// tierKeywords is the keyword table. Each entry is matched as a substring of
// the lower-cased prediction label.
var tierKeywords = [...]struct {
	tier     model.Severity
	weight   float64
	keywords []string
}{
	{
		tier:   model.SeverityHigh,
		weight: highWeight,
		keywords: []string{
			"fire", "flood", "accident", "crash", "emergency", "danger", "hazard",
			"broken", "damaged", "collapsed", "leak", "explosion", "smoke",
			"debris", "destruction", "severe", "critical", "unsafe",
		},
	},
	{
		tier:   model.SeverityMedium,
		weight: mediumWeight,
		keywords: []string{
			"pothole", "crack", "hole", "road", "street", "traffic", "light",
			"sign", "pole", "wire", "garbage", "waste", "dirt", "graffiti",
			"fence", "wall", "sidewalk", "pavement",
		},
	},
	{
		tier:   model.SeverityLow,
		weight: lowWeight,
		keywords: []string{
			"grass", "tree", "plant", "park", "bench", "paint", "minor",
			"small", "cosmetic", "maintenance", "cleaning", "trim",
		},
	},
}

// Keywords returns a copy of the keyword list for a tier.
func Keywords(tier model.Severity) []string {
	for _, t := range tierKeywords {
		if t.tier == tier {
			return append([]string(nil), t.keywords...)
		}
	}
	return nil
}

var summaryText = map[model.Severity]string{
	model.SeverityHigh:   "URGENT - Requires immediate attention",
	model.SeverityMedium: "MODERATE - Should be addressed soon",
	model.SeverityLow:    "LOW PRIORITY - Can be scheduled for routine maintenance",
}

const fallbackSummary = "Unable to analyze image. Default severity assigned."
