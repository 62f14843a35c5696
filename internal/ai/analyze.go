package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

const analysisSchemaURL = "notemind://analysis.json"

const analysisSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["improved_title", "summary", "category", "note_type", "tags", "key_points",
               "action_items", "common_topics", "suggested_links", "suggested_events"],
  "properties": {
    "improved_title":  {"type": "string"},
    "summary":         {"type": "string"},
    "category":        {"type": "string"},
    "note_type":       {"type": "string"},
    "tags":            {"type": "array", "items": {"type": "string"}},
    "key_points":      {"type": "array", "items": {"type": "string"}},
    "action_items":    {"type": "array", "items": {"type": "string"}},
    "common_topics":   {"type": "array", "items": {"type": "string"}},
    "suggested_links": {"type": "array", "items": {"type": "string"}},
    "suggested_events": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["title", "date"],
        "properties": {
          "title":       {"type": "string"},
          "description": {"type": "string"},
          "date":        {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}
        }
      }
    }
  }
}`

const analysisPrompt = `You analyze personal notes. Today's date is %s.
Resolve relative date expressions such as "tomorrow" or "next Tuesday" against today's date and write every date as YYYY-MM-DD.
Return a JSON object with:
- improved_title: a concise descriptive title
- summary: one or two sentences
- category: a broad category such as Work, Personal, Ideas or Learning
- note_type: one of Thought, Meeting, Todo, Journal, Reference, Idea
- tags, key_points, common_topics, suggested_links: lists of short strings
- action_items: concrete tasks found in the note, empty when there are none
- suggested_events: calendar events mentioned in the note, each with title, optional description and date`

func compileAnalysisSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(analysisSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(analysisSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(analysisSchemaURL)
}

// Analyze runs one structured extraction over text. Blank text fails with
// apperr.ErrEmptyInput before any network call; every upstream or schema
// failure is an *apperr.ExtractionError. There is no retry.
func (c *Client) Analyze(ctx context.Context, text string) (*models.AnalysisResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyInput
	}

	var schemaDoc map[string]any
	if err := json.Unmarshal([]byte(analysisSchema), &schemaDoc); err != nil {
		return nil, &apperr.ExtractionError{Err: err}
	}
	today := c.now().Format(models.DateLayout)
	content, err := c.complete(ctx, chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(analysisPrompt, today)},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "note_analysis",
				"schema": schemaDoc,
			},
		},
	})
	if err != nil {
		return nil, &apperr.ExtractionError{Err: err}
	}

	result, err := c.decodeAnalysis(content)
	if err != nil {
		return nil, &apperr.ExtractionError{Err: err}
	}
	return result, nil
}

func (c *Client) decodeAnalysis(content string) (*models.AnalysisResult, error) {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	if err := c.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("response does not match schema: %w", err)
	}
	var r models.AnalysisResult
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	for _, e := range r.SuggestedEvents {
		if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
			return nil, fmt.Errorf("event %q has invalid date %q", e.Title, e.Date)
		}
	}
	r.Normalize()
	return &r, nil
}
