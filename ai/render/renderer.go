// Package render turns a markdown summary into an image artifact.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
)

// ErrRenderFailed is returned when the image backend yields no artifact.
var ErrRenderFailed = errors.New("render failed")

// Renderer rasterizes an HTML template and returns a reference to the image.
type Renderer interface {
	Render(ctx context.Context, tmpl string, data map[string]any) (string, error)
}

// RenderDocument is the sanitized HTML fragment together with its page template.
type RenderDocument struct {
	HTMLBody string
	Template string
}

// HTML returns the full page with the body substituted into the placeholder.
func (d *RenderDocument) HTML() string {
	return strings.Replace(d.Template, Placeholder, d.HTMLBody, 1)
}

// SummaryRenderer converts generated markdown into an image via a Renderer backend.
type SummaryRenderer struct {
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	backend Renderer
}

// NewSummaryRenderer creates a SummaryRenderer that rasterizes through backend.
func NewSummaryRenderer(backend Renderer) *SummaryRenderer {
	return &SummaryRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Table,
				highlighting.NewHighlighting(highlighting.WithStyle("github")),
			),
		),
		policy:  newPolicy(),
		backend: backend,
	}
}

// newPolicy extends the UGC policy with the inline styles emitted by the highlighter.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style").OnElements("span", "pre", "code", "th", "td")
	p.AllowStyles("color", "background-color", "font-weight", "font-style", "text-decoration").
		OnElements("span", "pre", "code")
	p.AllowStyles("text-align").OnElements("th", "td")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center)$`)).OnElements("th", "td")
	return p
}

// StripFences removes every triple-backtick sequence, including inline ones.
func StripFences(text string) string {
	return strings.ReplaceAll(text, "```", "")
}

// Document converts markdown into a sanitized RenderDocument.
func (r *SummaryRenderer) Document(markdown string) (*RenderDocument, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(StripFences(markdown)), &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	return &RenderDocument{
		HTMLBody: r.policy.Sanitize(buf.String()),
		Template: Template,
	}, nil
}

// Render converts markdown to HTML and hands it to the backend. The returned
// artifact reference is passed through unchanged.
func (r *SummaryRenderer) Render(ctx context.Context, markdown string) (string, error) {
	doc, err := r.Document(markdown)
	if err != nil {
		return "", err
	}

	url, err := r.backend.Render(ctx, doc.Template, map[string]any{"html_content": doc.HTMLBody})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	if url == "" {
		return "", ErrRenderFailed
	}
	return url, nil
}
