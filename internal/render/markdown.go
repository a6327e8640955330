package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Markdown converts intervention descriptions to HTML.
// Raw HTML in the source is dropped and unsafe link schemes are neutralised.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown builds a converter with GitHub flavoured extensions
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// Render converts src. A nil description renders as empty HTML.
func (m *Markdown) Render(src *string) (template.HTML, error) {
	if src == nil || *src == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(*src), &buf); err != nil {
		return "", fmt.Errorf("failed to render description: %w", err)
	}
	//nolint:gosec // goldmark output without the unsafe option
	return template.HTML(buf.String()), nil
}
