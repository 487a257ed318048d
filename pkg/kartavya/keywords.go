package kartavya

import (
	"github.com/crimson-sun/kartavya/internal/engine/severity"
	"github.com/crimson-sun/kartavya/internal/model"
)

// Keywords returns the label substrings that count toward a tier. The
// table is read-only; the returned slice is a copy.
func Keywords(tier Severity) []string {
	return severity.Keywords(model.Severity(tier))
}
