package council

import (
	"regexp"
	"strings"
)

// Reasoning block markers emitted by reasoning-tuned local models. Tags are
// matched case-sensitively.
const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
)

var newlineRuns = regexp.MustCompile(`\n{3,}`)

// CleanResponse strips reasoning blocks and normalizes whitespace in raw model
// output. An unterminated block is removed through end of text. The function
// is total and idempotent.
func CleanResponse(raw string) string {
	s := raw
	for {
		start := strings.Index(s, reasoningOpen)
		if start < 0 {
			break
		}
		rest := s[start+len(reasoningOpen):]
		end := strings.Index(rest, reasoningClose)
		if end < 0 {
			s = s[:start]
			break
		}
		s = s[:start] + rest[end+len(reasoningClose):]
	}

	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
