// Package metrics derives content metrics (word and token counts) for chapters.
package metrics

import (
	"strings"

	"github.com/draftsmith/draftsmith/pkg/types"
)

// WordCount returns the number of whitespace-delimited tokens in s.
// Empty and whitespace-only strings yield zero.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Recompute refreshes the chapter's derived metrics from its content.
// It is pure with respect to content: the same content always produces
// the same count.
func Recompute(ch *types.Chapter) {
	ch.WordCount = WordCount(ch.Content)
}

// TotalWords sums the word counts of the given chapters and all of their
// descendants. Counts are per-node; a parent's own count never includes
// its children, so the total is a plain sum over the tree.
func TotalWords(chapters []*types.Chapter) int {
	total := 0
	for _, ch := range chapters {
		total += ch.WordCount
		total += TotalWords(ch.Children)
	}
	return total
}
