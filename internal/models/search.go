package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldSearch returns the Unicode case-folded form stored in search columns.
// Query patterns must be folded the same way.
func FoldSearch(s string) string {
	// a Caser keeps state and must not be shared between goroutines
	return cases.Fold().String(s)
}

// FoldTags folds each tag and joins them with spaces so a whitespace-free
// term never matches across two tags
func FoldTags(tags []string) string {
	folded := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.Join(strings.Fields(tag), " "); tag != "" {
			folded = append(folded, FoldSearch(tag))
		}
	}
	return strings.Join(folded, " ")
}
