package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

// DefaultAPIBase is the GitHub REST endpoint.
const DefaultAPIBase = "https://api.github.com"

// Repo identifies a hosted repository.
type Repo struct {
	Owner string
	Name  string
}

// ParseRepoURL extracts owner and name from a repository URL such as
// https://github.com/owner/repo or https://github.com/owner/repo.git.
func ParseRepoURL(raw string) (Repo, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Repo{}, apperr.ErrInvalidRepoURL
	}
	parts := strings.Split(strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, apperr.ErrInvalidRepoURL
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}

// Published records one successfully published note.
type Published struct {
	NoteID  string `json:"note_id"`
	Path    string `json:"path"`
	Created bool   `json:"created"`
}

// Report is the outcome of a publish batch.
type Report struct {
	Published []Published         `json:"published"`
	Failed    []*apperr.SyncError `json:"-"`
}

// Publisher writes notes through a create-or-update-file contents API.
type Publisher struct {
	apiBase string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// NewPublisher builds a Publisher. An empty apiBase uses DefaultAPIBase.
func NewPublisher(apiBase, token string, log *slog.Logger) *Publisher {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Publish writes every note to notes/{slug}.md on branch. An invalid
// repository URL fails before any note is attempted; a failure on one note
// is recorded in the report and the batch continues.
func (p *Publisher) Publish(ctx context.Context, repoURL, branch string, notes []models.Note) (Report, error) {
	rep := Report{Published: []Published{}, Failed: []*apperr.SyncError{}}
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return rep, err
	}
	if branch == "" {
		branch = "main"
	}

	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		path := Path(n)
		created, err := p.publishOne(ctx, repo, branch, path, n)
		if err != nil {
			serr := &apperr.SyncError{NoteID: n.ID, Path: path, Err: err}
			p.log.Warn("publish failed",
				slog.String("note", n.ID),
				slog.String("path", path),
				slog.String("error", err.Error()))
			rep.Failed = append(rep.Failed, serr)
			continue
		}
		rep.Published = append(rep.Published, Published{NoteID: n.ID, Path: path, Created: created})
	}
	p.log.Info("publish finished",
		slog.String("repo", repo.Owner+"/"+repo.Name),
		slog.Int("published", len(rep.Published)),
		slog.Int("failed", len(rep.Failed)))
	return rep, nil
}

func (p *Publisher) contentsURL(repo Repo, path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.apiBase,
		url.PathEscape(repo.Owner), url.PathEscape(repo.Name), path)
}

func (p *Publisher) publishOne(ctx context.Context, repo Repo, branch, path string, n models.Note) (bool, error) {
	sha, err := p.currentSHA(ctx, repo, branch, path)
	if err != nil {
		return false, err
	}

	body := map[string]string{
		"message": "Sync note: " + n.Title,
		"content": base64.StdEncoding.EncodeToString([]byte(Render(n))),
		"branch":  branch,
	}
	if sha != "" {
		body["sha"] = sha
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.contentsURL(repo, path), bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return false, statusError(resp)
	}
	return sha == "", nil
}

// currentSHA returns the blob sha of path on branch, or "" if absent.
func (p *Publisher) currentSHA(ctx context.Context, repo Repo, branch, path string) (string, error) {
	u := p.contentsURL(repo, path) + "?ref=" + url.QueryEscape(branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var file struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
			return "", fmt.Errorf("decode contents: %w", err)
		}
		return file.SHA, nil
	case http.StatusNotFound:
		return "", nil
	default:
		return "", statusError(resp)
	}
}

func (p *Publisher) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	return p.http.Do(req)
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s %s: status %d: %s", resp.Request.Method, resp.Request.URL.Path,
		resp.StatusCode, strings.TrimSpace(string(msg)))
}
