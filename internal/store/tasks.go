package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/notemind/internal/changefeed"
	"github.com/starford/notemind/internal/models"
)

const taskColumns = `id, note_id, guest_id, task_text, completed, created_at`

// DeleteTasksForNote removes every task owned by noteID.
func (s *Store) DeleteTasksForNote(ctx context.Context, noteID string) error {
	if _, err := s.exec(ctx, s.conn, `DELETE FROM tasks WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("store: delete tasks: %w", err)
	}
	s.publish(changefeed.Change{Table: changefeed.TableTasks, Kind: changefeed.KindDelete})
	return nil
}

// InsertTasks inserts one open task per text for noteID, in one transaction.
func (s *Store) InsertTasks(ctx context.Context, owner, noteID string, texts []string) ([]models.Task, error) {
	out := make([]models.Task, 0, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("store: prepare task insert: %w", err)
		}
		defer stmt.Close()
		now := s.timestamp()
		for _, text := range texts {
			t := models.Task{ID: s.newID(), NoteID: noteID, OwnerID: owner, Text: text, CreatedAt: now}
			if _, err := stmt.ExecContext(ctx, t.ID, t.NoteID, t.OwnerID, t.Text, t.Completed, t.CreatedAt); err != nil {
				return fmt.Errorf("store: insert task: %w", err)
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(changefeed.Change{Table: changefeed.TableTasks, Kind: changefeed.KindInsert})
	return out, nil
}

// ListTasks returns every task of owner, oldest first.
func (s *Store) ListTasks(ctx context.Context, owner string) ([]models.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE guest_id = ? ORDER BY created_at ASC, id ASC`, owner)
}

// ListTasksForNote returns the tasks owned by noteID.
func (s *Store) ListTasksForNote(ctx context.Context, noteID string) ([]models.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE note_id = ? ORDER BY created_at ASC, id ASC`, noteID)
}

// SetTaskCompleted toggles the completion flag of one task.
func (s *Store) SetTaskCompleted(ctx context.Context, id string, completed bool) error {
	res, err := s.exec(ctx, s.conn, `UPDATE tasks SET completed = ? WHERE id = ?`, completed, id)
	if err != nil {
		return fmt.Errorf("store: update task: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.publish(changefeed.Change{Table: changefeed.TableTasks, Kind: changefeed.KindUpdate, RowID: id})
	return nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.conn.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tasks: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.NoteID, &t.OwnerID, &t.Text, &t.Completed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}
