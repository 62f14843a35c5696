// Package export renders notes as Markdown documents, previews them as
// HTML, and publishes them to a source-hosting contents API.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/notemind/internal/models"
)

// Dir is the repository directory notes are published under.
const Dir = "notes"

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render returns the Markdown document for n: H1 title, body, then a
// trailer with the summary and comma-joined tags.
func Render(n models.Note) string {
	summary := n.Summary
	if summary == "" {
		summary = "N/A"
	}
	return fmt.Sprintf("# %s\n\n%s\n\n---\n**Summary:** %s\n**Tags:** %s",
		n.Title, n.Content, summary, strings.Join(n.Tags, ", "))
}

// Slug replaces every rune outside ASCII [A-Za-z0-9] with '_' and lowercases
// the rest. Runes outside the BMP count as two UTF-16 units and give "__".
func Slug(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 'a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r > 0xFFFF:
			b.WriteString("__")
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Path is the repository path of n. Notes with an empty title fall back to
// their id.
func Path(n models.Note) string {
	slug := Slug(n.Title)
	if slug == "" {
		slug = Slug(n.ID)
	}
	return Dir + "/" + slug + ".md"
}

// Preview renders n's Markdown document as HTML.
func Preview(n models.Note) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Render(n)), &buf); err != nil {
		return "", fmt.Errorf("export: render preview: %w", err)
	}
	return buf.String(), nil
}
