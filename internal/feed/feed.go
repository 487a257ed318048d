// Package feed filters and orders reports for the community feed.
package feed

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crimson-sun/kartavya/internal/model"
)

// AllCategories disables category filtering.
const AllCategories = "All Issues"

// Sort orders.
const (
	SortRecent  = "recent"
	SortPopular = "popular"
)

// Options controls Apply.
type Options struct {
	Category string // empty or AllCategories matches everything
	Sort     string // SortRecent (default) or SortPopular
}

// ValidSort reports whether s names a known sort order. Empty is valid.
func ValidSort(s string) bool {
	return s == "" || s == SortRecent || s == SortPopular
}

// Apply returns the reports matching opts in feed order. The input slice
// is not modified.
func Apply(reports []model.Report, opts Options) []model.Report {
	want := NormalizeCategory(opts.Category)
	out := make([]model.Report, 0, len(reports))
	for _, r := range reports {
		if MatchCategory(r.Category, want) {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b model.Report) int {
		if opts.Sort == SortPopular && a.Upvotes != b.Upvotes {
			return b.Upvotes - a.Upvotes
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// MatchCategory reports whether a report category matches a normalized
// filter. Either string containing the other counts as a match, so
// "road" selects "Road Damage" and "Potholes on road" selects "road".
func MatchCategory(category, filter string) bool {
	if filter == "" || filter == strings.ToLower(AllCategories) {
		return true
	}
	c := NormalizeCategory(category)
	if c == "" {
		return false
	}
	return strings.Contains(c, filter) || strings.Contains(filter, c)
}

// NormalizeCategory lower-cases a category and drops the "(coming soon)"
// marker some clients append.
func NormalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "(coming soon)"))
	return s
}

var titleCaser = cases.Title(language.English)

// DisplayCategory title-cases a category for display.
func DisplayCategory(s string) string {
	s = NormalizeCategory(s)
	if s == "" {
		return "Other"
	}
	return titleCaser.String(s)
}
