package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/models"
)

const noteColumns = `id, guest_id, title, content, summary, category, note_type,
	tags, key_points, common_topics, suggested_links, embedding, created_at, updated_at`

// CreateNote inserts a new note for owner. Empty title, category and note
// type take the collection defaults.
func (s *Store) CreateNote(ctx context.Context, owner string, n models.Note) (*models.Note, error) {
	n.ID = s.newID()
	n.OwnerID = owner
	if n.Title == "" {
		n.Title = models.DefaultTitle
	}
	if n.Category == "" {
		n.Category = models.DefaultCategory
	}
	if n.NoteType == "" {
		n.NoteType = models.DefaultNoteType
	}
	n.Tags = nonNil(n.Tags)
	n.KeyPoints = nonNil(n.KeyPoints)
	n.CommonTopics = nonNil(n.CommonTopics)
	n.SuggestedLinks = nonNil(n.SuggestedLinks)
	now := s.timestamp()
	n.CreatedAt, n.UpdatedAt = now, now

	embedding, err := encodeEmbedding(n.Embedding)
	if err != nil {
		return nil, err
	}
	_, err = s.exec(ctx, s.conn, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.OwnerID, n.Title, n.Content, n.Summary, n.Category, n.NoteType,
		encodeList(n.Tags), encodeList(n.KeyPoints), encodeList(n.CommonTopics), encodeList(n.SuggestedLinks),
		embedding, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert note: %w", err)
	}
	s.publish(changefeed.Change{Table: changefeed.TableNotes, Kind: changefeed.KindInsert, RowID: n.ID})
	return &n, nil
}

// GetNote returns the note with id, or apperr.ErrNotFound.
func (s *Store) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := s.conn.QueryRowContext(ctx, s.rebind(`SELECT `+noteColumns+` FROM notes WHERE id = ?`), id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// ListNotes returns every note of owner, most recently updated first.
func (s *Store) ListNotes(ctx context.Context, owner string) ([]models.Note, error) {
	rows, err := s.conn.QueryContext(ctx, s.rebind(`
		SELECT `+noteColumns+` FROM notes
		WHERE guest_id = ?
		ORDER BY updated_at DESC, id ASC
	`), owner)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	out := []models.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// UpdateNoteFields writes the non-nil fields and advances updated_at. It
// returns the new updated_at.
func (s *Store) UpdateNoteFields(ctx context.Context, id string, f models.NoteFields) (time.Time, error) {
	var updated time.Time
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		next, err := s.nextUpdatedAt(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, `
			UPDATE notes SET
				title      = COALESCE(?, title),
				content    = COALESCE(?, content),
				updated_at = ?
			WHERE id = ?
		`, nullable(f.Title), nullable(f.Content), next, id)
		if err != nil {
			return fmt.Errorf("store: update note: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	s.publish(changefeed.Change{Table: changefeed.TableNotes, Kind: changefeed.KindUpdate, RowID: id})
	return updated, nil
}

// ApplyAnalysis writes every analysis-derived field plus the embedding onto
// the note in one statement and advances updated_at.
func (s *Store) ApplyAnalysis(ctx context.Context, id string, r *models.AnalysisResult, embedding []float32) error {
	emb, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		next, err := s.nextUpdatedAt(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := s.exec(ctx, tx, `
			UPDATE notes SET
				title           = ?,
				summary         = ?,
				category        = ?,
				note_type       = ?,
				tags            = ?,
				key_points      = ?,
				common_topics   = ?,
				suggested_links = ?,
				embedding       = ?,
				updated_at      = ?
			WHERE id = ?
		`, r.ImprovedTitle, r.Summary, r.Category, r.NoteType,
			encodeList(r.Tags), encodeList(r.KeyPoints), encodeList(r.CommonTopics), encodeList(r.SuggestedLinks),
			emb, next, id)
		if err != nil {
			return fmt.Errorf("store: apply analysis: %w", err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return err
	}
	s.publish(changefeed.Change{Table: changefeed.TableNotes, Kind: changefeed.KindUpdate, RowID: id})
	return nil
}

// DeleteNote removes a note. Its tasks and images are deleted with it; its
// events survive with note_id cleared.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `DELETE FROM notes WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: delete note: %w", err)
		}
		return requireAffected(res)
	})
	if err != nil {
		return err
	}
	s.publish(
		changefeed.Change{Table: changefeed.TableNotes, Kind: changefeed.KindDelete, RowID: id},
		changefeed.Change{Table: changefeed.TableTasks, Kind: changefeed.KindDelete},
		changefeed.Change{Table: changefeed.TableEvents, Kind: changefeed.KindUpdate},
		changefeed.Change{Table: changefeed.TableImages, Kind: changefeed.KindDelete},
	)
	return nil
}

// nextUpdatedAt returns a timestamp strictly after the note's current
// updated_at, so updated_at never moves backward even if the clock does.
func (s *Store) nextUpdatedAt(ctx context.Context, q queryer, id string) (time.Time, error) {
	var prev time.Time
	err := q.QueryRowContext(ctx, s.rebind(`SELECT updated_at FROM notes WHERE id = ?`), id).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, apperr.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: read updated_at: %w", err)
	}
	now := s.timestamp()
	if !now.After(prev) {
		now = prev.UTC().Add(time.Microsecond)
	}
	return now, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (*models.Note, error) {
	var (
		n                              models.Note
		tags, keyPoints, topics, links string
		embedding                      sql.NullString
	)
	if err := r.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Summary, &n.Category, &n.NoteType,
		&tags, &keyPoints, &topics, &links, &embedding, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Tags = decodeList(tags)
	n.KeyPoints = decodeList(keyPoints)
	n.CommonTopics = decodeList(topics)
	n.SuggestedLinks = decodeList(links)
	if embedding.Valid {
		if err := json.Unmarshal([]byte(embedding.String), &n.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}

func encodeList(s []string) string {
	data, _ := json.Marshal(nonNil(s))
	return string(data)
}

func decodeList(raw string) []string {
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// encodeEmbedding stores the vector verbatim; a nil vector is stored as NULL.
func encodeEmbedding(v []float32) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode embedding: %w", err)
	}
	return string(data), nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
