package store

import (
	"context"
	"fmt"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/models"
)

const imageColumns = `id, guest_id, note_id, image_url, created_at`

// InsertImage records an attachment for a note.
func (s *Store) InsertImage(ctx context.Context, owner, noteID, url string) (*models.Image, error) {
	img := models.Image{ID: s.newID(), OwnerID: owner, NoteID: noteID, URL: url, CreatedAt: s.timestamp()}
	_, err := s.exec(ctx, s.conn, `INSERT INTO images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?)`,
		img.ID, img.OwnerID, img.NoteID, img.URL, img.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: insert image: %w", err)
	}
	s.publish(changefeed.Change{Table: changefeed.TableImages, Kind: changefeed.KindInsert, RowID: img.ID})
	return &img, nil
}

// GetImage returns one attachment row, or apperr.ErrNotFound.
func (s *Store) GetImage(ctx context.Context, id string) (*models.Image, error) {
	images, err := s.queryImages(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &images[0], nil
}

// ListImages returns the attachments of noteID, oldest first.
func (s *Store) ListImages(ctx context.Context, noteID string) ([]models.Image, error) {
	return s.queryImages(ctx, `SELECT `+imageColumns+` FROM images WHERE note_id = ? ORDER BY created_at ASC, id ASC`, noteID)
}

// AllImages returns every attachment row regardless of owner.
func (s *Store) AllImages(ctx context.Context) ([]models.Image, error) {
	return s.queryImages(ctx, `SELECT `+imageColumns+` FROM images ORDER BY created_at ASC, id ASC`)
}

// DeleteImage removes one attachment row.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.conn, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete image: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.publish(changefeed.Change{Table: changefeed.TableImages, Kind: changefeed.KindDelete, RowID: id})
	return nil
}

func (s *Store) queryImages(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := s.conn.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list images: %w", err)
	}
	defer rows.Close()

	out := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.OwnerID, &img.NoteID, &img.URL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan image: %w", err)
		}
		img.CreatedAt = img.CreatedAt.UTC()
		out = append(out, img)
	}
	return out, rows.Err()
}
