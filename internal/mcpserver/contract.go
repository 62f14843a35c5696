package mcpserver

// NoteFormatContract describes the Markdown layout create_note accepts when
// content starts with frontmatter, and the layout read_note returns.
const NoteFormatContract = `# notemind Note Format

Notes are plain text. create_note takes a title and a body. A body that
starts with YAML frontmatter is imported as a Markdown document instead.

## Markdown import

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – overrides the H1 heading
category: Work                      # OPTIONAL – defaults to General
note_type: Meeting                  # OPTIONAL – defaults to Thought
summary: One line                   # OPTIONAL
tags:                               # OPTIONAL – YAML list
  - project-x
---

# Title when frontmatter has none

Body text. Inline #tags are collected. [[wikilinks]] become suggested links.
` + "```" + `

## Rules

1. Frontmatter fences must be the first thing in the document.
2. Without a title anywhere the note is called "Untitled Note".
3. Tags are merged from frontmatter, the trailer and inline #tags, first
   occurrence wins.
4. Dates in events use YYYY-MM-DD.

## Exported form

read_note returns the published document:

` + "```" + `markdown
# {title}

{content}

---
**Summary:** {summary or N/A}
**Tags:** {tags joined by ", "}
` + "```" + `

Importing an exported document restores title, body, summary and tags.

## Images

Attach images with the attach_image tool (data: URI or http(s) URL). It
returns a markdownImage field that can be pasted into the note body.
Supported formats: png, jpg, jpeg, gif, webp, svg.
`
