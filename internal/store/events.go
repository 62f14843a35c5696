package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/models"
)

const eventColumns = `id, guest_id, note_id, title, description, event_date, start_time, end_time, created_at`

// InsertEvents appends events for owner in one transaction. Nothing is
// deduplicated against existing rows.
func (s *Store) InsertEvents(ctx context.Context, owner string, events []models.Event) ([]models.Event, error) {
	out := make([]models.Event, 0, len(events))
	if len(events) == 0 {
		return out, nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("store: prepare event insert: %w", err)
		}
		defer stmt.Close()
		now := s.timestamp()
		for _, e := range events {
			e.ID = s.newID()
			e.OwnerID = owner
			e.CreatedAt = now
			if _, err := stmt.ExecContext(ctx, e.ID, e.OwnerID, nullable(e.NoteID), e.Title, e.Description,
				e.Date, e.StartTime, e.EndTime, e.CreatedAt); err != nil {
				return fmt.Errorf("store: insert event: %w", err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(changefeed.Change{Table: changefeed.TableEvents, Kind: changefeed.KindInsert})
	return out, nil
}

// CreateEvent inserts a single event.
func (s *Store) CreateEvent(ctx context.Context, owner string, e models.Event) (*models.Event, error) {
	out, err := s.InsertEvents(ctx, owner, []models.Event{e})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// ListEvents returns every event of owner ordered by date ascending.
func (s *Store) ListEvents(ctx context.Context, owner string) ([]models.Event, error) {
	rows, err := s.conn.QueryContext(ctx, s.rebind(`
		SELECT `+eventColumns+` FROM events
		WHERE guest_id = ?
		ORDER BY event_date ASC, created_at ASC, id ASC
	`), owner)
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	out := []models.Event{}
	for rows.Next() {
		var (
			e      models.Event
			noteID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &noteID, &e.Title, &e.Description, &e.Date,
			&e.StartTime, &e.EndTime, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		if noteID.Valid {
			id := noteID.String
			e.NoteID = &id
		}
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEvent removes one event.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.conn, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete event: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.publish(changefeed.Change{Table: changefeed.TableEvents, Kind: changefeed.KindDelete, RowID: id})
	return nil
}
