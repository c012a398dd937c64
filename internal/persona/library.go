package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Library loads advisor system prompts from persona markdown files under a
// prompts directory. It implements the council prompt-loader capability.
type Library struct {
	dir string
}

// NewLibrary creates a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the prompts directory.
func (l *Library) Dir() string {
	return l.dir
}

// LoadSystemPrompt reads a persona file and extracts its "## System Prompt"
// section. The ref is a path; when no file exists at the ref itself it
// resolves by basename against the library dir.
func (l *Library) LoadSystemPrompt(ref string) (string, error) {
	path := ref
	if _, err := os.Stat(path); os.IsNotExist(err) {
		candidate := filepath.Join(l.dir, filepath.Base(ref))
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona file: %w", err)
	}

	prompt := ExtractSystemPrompt(string(data))
	if prompt == "" {
		return "", fmt.Errorf("persona file %s has no system prompt section", path)
	}
	return prompt, nil
}

var fenceLine = regexp.MustCompile("^```")

// ExtractSystemPrompt returns the body of the "## System Prompt" section,
// stripped of surrounding code fences. Scanning stops at the next "## "
// heading. Missing section yields an empty string.
func ExtractSystemPrompt(content string) string {
	lines := strings.Split(content, "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "## System Prompt") {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	var body []string
	for _, line := range lines[start:] {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			break
		}
		if fenceLine.MatchString(trimmed) {
			continue
		}
		body = append(body, line)
	}

	return strings.TrimSpace(strings.Join(body, "\n"))
}
