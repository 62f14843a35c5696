package internal

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

type noopAssistant struct{}

func (noopAssistant) Analyze(context.Context, string) (*models.AnalysisResult, error) {
	return &models.AnalysisResult{}, nil
}

func (noopAssistant) Embed(context.Context, string) ([]float32, error) { return nil, nil }

func (noopAssistant) Chat(context.Context, string, []models.ChatMessage, string) (string, error) {
	return "", nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.DSN = filepath.Join(dir, "notemind.db")
	cfg.Identity.Path = filepath.Join(dir, "owner")
	cfg.Attachments.Path = filepath.Join(dir, "attachments")
	return cfg
}

func testOptions(cfg *Config) []Option {
	return []Option{WithConfig(cfg), WithAssistant(noopAssistant{}), WithLogOutput(io.Discard)}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestImportPersistsAcrossRuntimes(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	n, err := Import(ctx, []byte("---\ncategory: Work\n---\n# Plan\n\nShip it #release\n"), testOptions(cfg)...)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n.Title != "Plan" || n.Category != "Work" {
		t.Errorf("note = %+v", n)
	}

	// A second runtime reuses the persisted owner and sees the note.
	rt, err := newRuntime(testOptions(cfg)...)
	if err != nil {
		t.Fatal(err)
	}
	defer rt.close()
	if rt.owner != n.OwnerID {
		t.Errorf("owner = %q, want %q", rt.owner, n.OwnerID)
	}
	notes, err := rt.sess.Notes().ListNotes(ctx, rt.owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].ID != n.ID {
		t.Errorf("notes = %+v", notes)
	}
}

func TestImportEmpty(t *testing.T) {
	_, err := Import(context.Background(), []byte("  \n"), testOptions(testConfig(t))...)
	if !errors.Is(err, apperr.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestPublishWithoutRepo(t *testing.T) {
	_, err := Publish(context.Background(), "", "", testOptions(testConfig(t))...)
	if !errors.Is(err, apperr.ErrInvalidRepoURL) {
		t.Fatalf("err = %v, want ErrInvalidRepoURL", err)
	}
}
