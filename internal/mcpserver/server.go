// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notemind tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/export"
	"github.com/starford/notemind/internal/models"
	"github.com/starford/notemind/internal/noteservice"
	"github.com/starford/notemind/internal/session"
)

const contractURI = "notemind://note-format"

// Publisher writes notes to a hosted repository.
type Publisher interface {
	Publish(ctx context.Context, repoURL, branch string, notes []models.Note) (export.Report, error)
}

// Server wraps the MCP server with notemind tools.
type Server struct {
	mcp  *server.MCPServer
	sess *session.Session
	svc  *noteservice.Service
	pub  Publisher

	repoURL string
	branch  string
}

// New creates a new MCP server with all notemind tools registered. pub may
// be nil, in which case publish_notes is not offered.
func New(sess *session.Session, pub Publisher, repoURL, branch string) *Server {
	s := &Server{sess: sess, svc: sess.Notes(), pub: pub, repoURL: repoURL, branch: branch}

	s.mcp = server.NewMCPServer(
		"notemind",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive search over note titles, content and summaries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List every note with id, title, category and last update, most recent first."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note as a Markdown document."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Content that starts with YAML frontmatter is imported "+
			"as Markdown; read the format via get_note_contract or the "+contractURI+" resource."),
		mcp.WithString("title", mcp.Description("Title; ignored for Markdown imports")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note body or Markdown document")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format accepted by create_note and returned by read_note."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("analyze_note",
		mcp.WithDescription("Run AI analysis on a note: improves the title, writes summary, tags and "+
			"key points, replaces its tasks and adds suggested calendar events."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.analyzeNote)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List action items, optionally of one note."),
		mcp.WithString("note_id", mcp.Description("Only tasks of this note")),
	), s.listTasks)

	s.mcp.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task completed or open."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithBoolean("completed", mcp.Description("Completion flag (default true)")),
	), s.completeTask)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List calendar events, optionally of one day."),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD")),
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("create_event",
		mcp.WithDescription("Create a calendar event."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
		mcp.WithString("date", mcp.Required(), mcp.Description("YYYY-MM-DD")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithString("start_time", mcp.Description("HH:MM")),
		mcp.WithString("end_time", mcp.Description("HH:MM")),
		mcp.WithString("note_id", mcp.Description("Note the event belongs to")),
	), s.createEvent)

	s.mcp.AddTool(mcp.NewTool("day_view",
		mcp.WithDescription("Notes updated and events scheduled on one day."),
		mcp.WithString("date", mcp.Required(), mcp.Description("YYYY-MM-DD")),
	), s.dayView)

	s.mcp.AddTool(mcp.NewTool("attach_image",
		mcp.WithDescription("Download an image (http/https URL or data: URI) and attach it to a note. "+
			"Returns a markdownImage field ready to paste into the note body."),
		mcp.WithString("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or base64 data URI")),
		mcp.WithString("filename", mcp.Description("Optional file name")),
	), s.attachImage)

	if pub != nil {
		s.mcp.AddTool(mcp.NewTool("publish_notes",
			mcp.WithDescription("Publish every note as notes/{slug}.md to a repository."),
			mcp.WithString("repo_url", mcp.Description("Repository URL (default from config)")),
			mcp.WithString("branch", mcp.Description("Branch (default from config)")),
		), s.publishNotes)
	}

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Format Contract",
			mcp.WithResourceDescription("Markdown layout for importing and reading notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) owner() string { return s.sess.Owner() }

// toolError renders err as a tool failure with the user-facing status line.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.StatusMessage(err) + ": " + err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

type noteListItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	UpdatedAt string `json:"updated_at"`
}

func listItems(notes []models.Note) []noteListItem {
	out := make([]noteListItem, len(notes))
	for i, n := range notes {
		out[i] = noteListItem{
			ID:        n.ID,
			Title:     n.Title,
			Category:  n.Category,
			UpdatedAt: noteservice.Version(&n),
		}
	}
	return out
}

func (s *Server) searchNotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(listItems(s.sess.State().Notes(query))), nil
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.svc.ListNotes(ctx, s.owner())
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(listItems(notes)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.GetNote(ctx, s.owner(), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(export.Render(*n)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var n *models.Note
	if strings.HasPrefix(strings.TrimLeft(content, "\r\n"), "---\n") {
		n, err = s.svc.Import(ctx, s.owner(), []byte(content))
	} else {
		n, err = s.svc.CreateNote(ctx, s.owner(), models.Note{Title: req.GetString("title", ""), Content: content})
	}
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", n.ID, n.Title)), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) analyzeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.sess.Analyze(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.svc.ListTasks(ctx, s.owner(), req.GetString("note_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(tasks), nil
}

func (s *Server) completeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completed := req.GetBool("completed", true)
	if err := s.svc.ToggleTask(ctx, s.owner(), id, completed); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("task %s completed=%t", id, completed)), nil
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.svc.ListEvents(ctx, s.owner())
	if err != nil {
		return toolError(err), nil
	}
	if date := req.GetString("date", ""); date != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Date == date {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	return jsonResult(events), nil
}

func (s *Server) createEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := noteservice.EventInput{
		Title:       title,
		Date:        date,
		Description: req.GetString("description", ""),
		StartTime:   req.GetString("start_time", ""),
		EndTime:     req.GetString("end_time", ""),
	}
	if noteID := req.GetString("note_id", ""); noteID != "" {
		in.NoteID = &noteID
	}
	e, err := s.svc.CreateEvent(ctx, s.owner(), in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e), nil
}

func (s *Server) dayView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.sess.Refresh(ctx); err != nil {
		return toolError(err), nil
	}
	return jsonResult(s.sess.State().Day(date)), nil
}

type publishResult struct {
	Published []export.Published `json:"published"`
	Failed    []string           `json:"failed"`
}

func (s *Server) publishNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoURL := req.GetString("repo_url", s.repoURL)
	branch := req.GetString("branch", s.branch)

	notes, err := s.svc.ListNotes(ctx, s.owner())
	if err != nil {
		return toolError(err), nil
	}
	rep, err := s.pub.Publish(ctx, repoURL, branch, notes)
	if err != nil {
		return toolError(err), nil
	}
	out := publishResult{Published: rep.Published, Failed: []string{}}
	for _, f := range rep.Failed {
		out.Failed = append(out.Failed, f.Error())
	}
	return jsonResult(out), nil
}
