// Package parser turns Markdown documents into note drafts for import. It
// understands YAML frontmatter, an H1 title, inline #tags, [[wikilinks]]
// and the summary/tags trailer written by the exporter.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/notemind/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	trailerRe  = regexp.MustCompile(`(?s)\n+---\n\*\*Summary:\*\* (.*?)\n\*\*Tags:\*\* ?(.*?)\s*$`)
)

// Frontmatter keys understood on import.
type Frontmatter struct {
	Title    string   `yaml:"title"`
	Summary  string   `yaml:"summary"`
	Category string   `yaml:"category"`
	NoteType string   `yaml:"note_type"`
	Tags     []string `yaml:"tags"`
}

// Result holds the output of parsing a Markdown document.
type Result struct {
	Frontmatter *Frontmatter
	Title       string
	Body        string
	Summary     string
	Tags        []string
	Links       []string
}

// Note converts the result into a note draft for the store.
func (r *Result) Note() models.Note {
	n := models.Note{
		Title:          r.Title,
		Content:        r.Body,
		Summary:        r.Summary,
		Tags:           r.Tags,
		SuggestedLinks: r.Links,
	}
	if r.Frontmatter != nil {
		n.Category = r.Frontmatter.Category
		n.NoteType = r.Frontmatter.NoteType
	}
	return n
}

// Parse extracts frontmatter, title, body, trailer, links and tags.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	summary, trailerTags, body := splitTrailer(body)
	title, body := splitTitle(body)
	if fm != nil && fm.Title != "" {
		title = fm.Title
	}
	if fm != nil && fm.Summary != "" {
		summary = fm.Summary
	}

	var declared []string
	if fm != nil {
		declared = fm.Tags
	}
	declared = append(declared, trailerTags...)

	return &Result{
		Frontmatter: fm,
		Title:       title,
		Body:        body,
		Summary:     summary,
		Tags:        extractTags(body, declared),
		Links:       extractLinks(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter between leading --- lines.
// Missing or invalid frontmatter leaves the whole document as body.
func splitFrontmatter(data []byte) (*Frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) {
		return nil, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return &fm, body
}

// splitTrailer removes an exporter trailer and returns its fields.
func splitTrailer(body string) (summary string, tags []string, rest string) {
	m := trailerRe.FindStringSubmatchIndex(body)
	if m == nil {
		return "", nil, body
	}
	summary = strings.TrimSpace(body[m[2]:m[3]])
	if summary == "N/A" {
		summary = ""
	}
	for _, t := range strings.Split(body[m[4]:m[5]], ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return summary, tags, body[:m[0]]
}

// splitTitle takes the first line as title when it is an H1 heading.
func splitTitle(body string) (title, rest string) {
	trimmed := strings.TrimLeft(body, "\n\r")
	line, after, _ := strings.Cut(trimmed, "\n")
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "# ") {
		return "", strings.TrimRight(body, "\n") + trailingNewline(body)
	}
	return strings.TrimSpace(line[2:]), strings.TrimLeft(after, "\n")
}

func trailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return "\n"
	}
	return ""
}

// extractLinks returns deduplicated wikilink targets, dropping aliases.
func extractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	out := []string{}
	for _, m := range matches {
		target, _, _ := strings.Cut(m[1], "|")
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags merges declared tags with inline #tags, first occurrence wins.
func extractTags(body string, declared []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range declared {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
