package models

// DateLayout is the calendar date format used by events and analysis output.
const DateLayout = "2006-01-02"

// AnalysisResult is the output of one structured extraction pass. It is
// never persisted as-is; the reconciler decomposes it into note, task and
// event writes.
type AnalysisResult struct {
	ImprovedTitle   string           `json:"improved_title"`
	Summary         string           `json:"summary"`
	Category        string           `json:"category"`
	NoteType        string           `json:"note_type"`
	Tags            []string         `json:"tags"`
	KeyPoints       []string         `json:"key_points"`
	ActionItems     []string         `json:"action_items"`
	CommonTopics    []string         `json:"common_topics"`
	SuggestedLinks  []string         `json:"suggested_links"`
	SuggestedEvents []SuggestedEvent `json:"suggested_events"`
}

// SuggestedEvent is a candidate calendar event found in a note.
type SuggestedEvent struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
}

// Normalize replaces nil slices with empty ones.
func (r *AnalysisResult) Normalize() {
	r.Tags = nonNil(r.Tags)
	r.KeyPoints = nonNil(r.KeyPoints)
	r.ActionItems = nonNil(r.ActionItems)
	r.CommonTopics = nonNil(r.CommonTopics)
	r.SuggestedLinks = nonNil(r.SuggestedLinks)
	if r.SuggestedEvents == nil {
		r.SuggestedEvents = []SuggestedEvent{}
	}
}

// EmbeddingText is the text an analysis is embedded from.
func (r *AnalysisResult) EmbeddingText() string {
	return r.ImprovedTitle + " " + r.Summary
}

// ChatMessage is one turn of a conversation about a note.
type ChatMessage struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
