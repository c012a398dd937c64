package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Generator builds persona markdown files from Wikipedia biographical
// extracts. It is best-effort: a persona without a Wikipedia page still gets
// a usable prompt from the advisor description alone.
type Generator struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *zap.Logger
}

// NewGenerator constructs a Generator against the given Wikipedia API base URL.
func NewGenerator(baseURL, userAgent string, logger *zap.Logger) *Generator {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org/w/api.php"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:    &http.Client{Timeout: 15 * time.Second},
		baseURL:   baseURL,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Search finds the best matching Wikipedia page title for a query, or returns
// an empty string when nothing matches.
func (g *Generator) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":    {"opensearch"},
		"search":    {query},
		"limit":     {"1"},
		"namespace": {"0"},
		"format":    {"json"},
	}

	var raw []json.RawMessage
	if err := g.get(ctx, params, &raw); err != nil {
		return "", err
	}

	// Opensearch returns [query, [titles], [descriptions], [urls]].
	if len(raw) < 2 {
		return "", nil
	}
	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return "", fmt.Errorf("parse opensearch titles: %w", err)
	}
	if len(titles) == 0 {
		return "", nil
	}
	return titles[0], nil
}

// Extract fetches the plain-text intro of a Wikipedia page.
func (g *Generator) Extract(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"true"},
		"explaintext": {"true"},
		"titles":      {title},
		"format":      {"json"},
	}

	var resp struct {
		Query struct {
			Pages map[string]struct {
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := g.get(ctx, params, &resp); err != nil {
		return "", err
	}

	for pageID, page := range resp.Query.Pages {
		if pageID != "-1" && page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", nil
}

// GenerateMarkdown renders a persona file body for the named figure,
// enriching it with Wikipedia background when available.
func (g *Generator) GenerateMarkdown(ctx context.Context, name, description string) string {
	background := ""
	title, err := g.Search(ctx, name)
	if err != nil {
		g.logger.Warn("wikipedia search failed", zap.String("name", name), zap.Error(err))
	} else if title != "" {
		background, err = g.Extract(ctx, title)
		if err != nil {
			g.logger.Warn("wikipedia extract failed", zap.String("title", title), zap.Error(err))
		}
	}

	return RenderMarkdown(name, description, background)
}

// RenderMarkdown builds the persona markdown document.
func RenderMarkdown(name, description, background string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Persona: %s\n\n", name)
	b.WriteString("## System Prompt\n")
	fmt.Fprintf(&b, "You are **%s**.\n", name)
	if description != "" {
		b.WriteString(description + "\n")
	}
	b.WriteString("\n")

	if background != "" {
		b.WriteString("**Background & Context**\n")
		b.WriteString(background + "\n\n")
	}

	b.WriteString("**Instructions**\n")
	b.WriteString("1. **Adopt the Persona**: Speak, think, and reason exactly as this character would. Use their vocabulary, tone, and mannerisms.\n")
	b.WriteString("2. **Stay in Character**: Never break character. Do not mention you are an AI.\n")
	b.WriteString("3. **Perspective**: Answer questions based on your specific background, historical context, and expertise.\n")
	b.WriteString("4. **Format**: Provide clear, thoughtful responses.\n")
	return b.String()
}

// SaveFile writes a persona file into dir, returning its path.
func SaveFile(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create prompts dir: %w", err)
	}

	path := filepath.Join(dir, SafeName(name)+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write persona file: %w", err)
	}
	return path, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_]`)

// SafeName converts a display name to a filesystem/identifier-safe slug.
func SafeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "_")
	return unsafeChars.ReplaceAllString(s, "")
}

func (g *Generator) get(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("wikipedia: status %d: %s", res.StatusCode, string(b))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
