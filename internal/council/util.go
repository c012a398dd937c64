package council

import (
	"sort"
	"strings"
)

// sortStableByAverageRank orders ascending by average rank; stability
// preserves label assignment order for ties.
func sortStableByAverageRank(entries []AggregateRankingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AverageRank < entries[j].AverageRank
	})
}

// firstLine trims a possibly multi-line model reply to its first non-empty
// line, stripping surrounding quotes.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), `"'`))
		if line != "" {
			return line
		}
	}
	return s
}
