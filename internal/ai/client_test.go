package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

const meetAlice = `{
  "improved_title": "Budget meeting with Alice",
  "summary": "Meet Alice to discuss the budget.",
  "category": "Work",
  "note_type": "Meeting",
  "tags": ["budget"],
  "key_points": ["meeting on 2025-03-10"],
  "action_items": ["Prepare budget doc"],
  "common_topics": [],
  "suggested_links": [],
  "suggested_events": [{"title": "Meet Alice", "date": "2025-03-10"}]
}`

type fakeUpstream struct {
	calls    atomic.Int32
	content  string
	status   int
	lastBody map[string]any
	vector   []float32
}

func (f *fakeUpstream) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.lastBody = body

		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte("boom"))
			return
		}
		switch r.URL.Path {
		case "/v1/chat/completions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{"message": map[string]any{"content": f.content}}},
			})
		case "/v1/embeddings":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []any{map[string]any{"embedding": f.vector}},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestClient(t *testing.T, up *fakeUpstream) *Client {
	t.Helper()
	srv := httptest.NewServer(up.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(Config{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "secret",
		ChatModel:  "chat-model",
		EmbedModel: "embed-model",
		Timeout:    5 * time.Second,
	}, WithClock(func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return c
}

func TestAnalyzeBlankMakesNoCall(t *testing.T) {
	up := &fakeUpstream{content: meetAlice}
	c := newTestClient(t, up)

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := c.Analyze(context.Background(), text)
		assert.ErrorIs(t, err, apperr.ErrEmptyInput)
	}
	assert.Zero(t, up.calls.Load())
}

func TestAnalyzeDecodesAndSendsReferenceDate(t *testing.T) {
	up := &fakeUpstream{content: meetAlice}
	c := newTestClient(t, up)

	r, err := c.Analyze(context.Background(), "Meet Alice on 2025-03-10 to discuss budget.")
	require.NoError(t, err)
	assert.Equal(t, "Budget meeting with Alice", r.ImprovedTitle)
	assert.Equal(t, []string{"Prepare budget doc"}, r.ActionItems)
	require.Len(t, r.SuggestedEvents, 1)
	assert.Equal(t, "2025-03-10", r.SuggestedEvents[0].Date)
	assert.NotNil(t, r.CommonTopics)

	msgs := up.lastBody["messages"].([]any)
	system := msgs[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "Today's date is 2025-03-03.")
	assert.Equal(t, "chat-model", up.lastBody["model"])
	format := up.lastBody["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestAnalyzeRejectsNonConformingPayload(t *testing.T) {
	tests := map[string]string{
		"not json":       "sure, here you go",
		"missing field":  `{"improved_title": "x"}`,
		"bad event date": strings.Replace(meetAlice, "2025-03-10\"}", "next tuesday\"}", 1),
		"impossible date": strings.Replace(meetAlice, "2025-03-10\"}", "2025-02-30\"}", 1),
		"wrong type":     strings.Replace(meetAlice, `"tags": ["budget"]`, `"tags": "budget"`, 1),
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, &fakeUpstream{content: content})
			_, err := c.Analyze(context.Background(), "some note")
			var extractErr *apperr.ExtractionError
			assert.True(t, errors.As(err, &extractErr), "got %v", err)
		})
	}
}

func TestAnalyzeUpstreamFailure(t *testing.T) {
	up := &fakeUpstream{status: http.StatusInternalServerError}
	c := newTestClient(t, up)

	_, err := c.Analyze(context.Background(), "some note")
	var extractErr *apperr.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Contains(t, err.Error(), "500")
	assert.EqualValues(t, 1, up.calls.Load(), "no retry")
}

func TestEmbedBlankReturnsEmptyVector(t *testing.T) {
	up := &fakeUpstream{}
	c := newTestClient(t, up)

	v, err := c.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Empty(t, v)
	assert.Zero(t, up.calls.Load())
}

func TestEmbedVerbatimAndCached(t *testing.T) {
	up := &fakeUpstream{vector: []float32{0.1, 0.2, 0.3, 0.4, 0.5}}
	c := newTestClient(t, up)
	ctx := context.Background()

	v, err := c.Embed(ctx, "Budget meeting with Alice Meet Alice.")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4, 0.5}, v)
	assert.Equal(t, "embed-model", up.lastBody["model"])

	v[0] = 42
	again, err := c.Embed(ctx, "Budget meeting with Alice Meet Alice.")
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), again[0], "cache must hand out copies")
	assert.EqualValues(t, 1, up.calls.Load())
}

func TestEmbedUpstreamFailure(t *testing.T) {
	c := newTestClient(t, &fakeUpstream{status: http.StatusBadGateway})
	_, err := c.Embed(context.Background(), "text")
	var embedErr *apperr.EmbeddingError
	assert.ErrorAs(t, err, &embedErr)
}

func TestChatMapsHistoryRoles(t *testing.T) {
	up := &fakeUpstream{content: "The budget meeting is on March 10."}
	c := newTestClient(t, up)

	reply, err := c.Chat(context.Background(), "Meet Alice on 2025-03-10.",
		[]models.ChatMessage{{Role: "user", Text: "hi"}, {Role: "model", Text: "hello"}}, "When is it?")
	require.NoError(t, err)
	assert.Equal(t, "The budget meeting is on March 10.", reply)

	msgs := up.lastBody["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "When is it?", msgs[3].(map[string]any)["content"])

	_, err = c.Chat(context.Background(), "note", nil, "  ")
	assert.ErrorIs(t, err, apperr.ErrEmptyInput)
}
