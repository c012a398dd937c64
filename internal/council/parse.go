package council

import "strings"

// RankingHeader is the fixed protocol marker advisors are instructed to emit
// before their numbered ranking list.
const RankingHeader = "FINAL RANKING:"

// ParseRanking extracts the ordered label list from a stage-2 response.
//
// The parser locates the header line, then reads subsequent lines of the form
// "<rank>. <label>" (or "<rank>) <label>"), best first. Blank lines before the
// first item are tolerated; once items have started, the first line that does
// not match ends the list. A missing header yields an empty ranking.
func ParseRanking(text string) []string {
	lines := strings.Split(text, "\n")

	start := -1
	for i, line := range lines {
		if strings.Contains(line, RankingHeader) {
			start = i + 1
			break
		}
	}

	parsed := []string{}
	if start < 0 {
		return parsed
	}

	for _, line := range lines[start:] {
		if strings.TrimSpace(line) == "" {
			if len(parsed) == 0 {
				continue
			}
			break
		}
		label, ok := parseRankLine(line)
		if !ok {
			break
		}
		parsed = append(parsed, label)
	}
	return parsed
}

// parseRankLine matches a single numbered item, tolerating surrounding
// markdown emphasis.
func parseRankLine(line string) (string, bool) {
	s := strings.TrimSpace(line)
	s = strings.Trim(s, "*")
	s = strings.TrimSpace(s)

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) {
		return "", false
	}

	switch s[i] {
	case '.', ')':
		s = s[i+1:]
	default:
		return "", false
	}

	label := strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*"))
	if label == "" {
		return "", false
	}
	return label, true
}
