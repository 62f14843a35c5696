// Package store is the backend store: notes, tasks, events and images with
// row CRUD, owner-scoped listing, cascade rules, and a change notification
// published after every committed write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/notemind/internal/changefeed"
)

const operationTimeout = 5 * time.Second

// Notifier receives a change after each committed write.
type Notifier interface {
	Publish(changefeed.Change)
}

type dialect struct {
	driver    string
	timestamp string
	dollar    bool // $1 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{driver: "sqlite3", timestamp: "DATETIME"}
	postgresDialect = dialect{driver: "postgres", timestamp: "TIMESTAMPTZ", dollar: true}
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id              TEXT PRIMARY KEY,
	guest_id        TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT 'Untitled Note',
	content         TEXT NOT NULL DEFAULT '',
	summary         TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT 'General',
	note_type       TEXT NOT NULL DEFAULT 'Thought',
	tags            TEXT NOT NULL DEFAULT '[]',
	key_points      TEXT NOT NULL DEFAULT '[]',
	common_topics   TEXT NOT NULL DEFAULT '[]',
	suggested_links TEXT NOT NULL DEFAULT '[]',
	embedding       TEXT,
	created_at      %[1]s NOT NULL,
	updated_at      %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	note_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	guest_id   TEXT NOT NULL,
	task_text  TEXT NOT NULL,
	completed  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	guest_id    TEXT NOT NULL,
	note_id     TEXT REFERENCES notes(id) ON DELETE SET NULL,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	event_date  TEXT NOT NULL,
	start_time  TEXT NOT NULL DEFAULT '',
	end_time    TEXT NOT NULL DEFAULT '',
	created_at  %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
	id         TEXT PRIMARY KEY,
	guest_id   TEXT NOT NULL,
	note_id    TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
	image_url  TEXT NOT NULL,
	created_at %[1]s NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_guest ON notes(guest_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_tasks_note ON tasks(note_id);
CREATE INDEX IF NOT EXISTS idx_tasks_guest ON tasks(guest_id);
CREATE INDEX IF NOT EXISTS idx_events_guest ON events(guest_id, event_date);
CREATE INDEX IF NOT EXISTS idx_images_note ON images(note_id);
`

// Store wraps a sql.DB with collection-specific operations.
type Store struct {
	conn    *sql.DB
	dialect dialect
	notify  Notifier
	now     func() time.Time
	newID   func() string
}

// Open opens (or creates) the store described by dsn and applies the schema.
//
// Accepted forms: a bare file path or sqlite://path (SQLite), and
// postgres://… or postgresql://… (PostgreSQL). notify may be nil.
func Open(dsn string, notify Notifier) (*Store, error) {
	d, driverDSN, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(d.driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(schemaSQL, d.timestamp)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{
		conn:    conn,
		dialect: d,
		notify:  notify,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Driver reports the database/sql driver in use.
func (s *Store) Driver() string {
	return s.dialect.driver
}

func parseDSN(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return dialect{}, "", fmt.Errorf("store: empty dsn")
	}
	scheme := ""
	if i := strings.Index(dsn, "://"); i > 0 {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return dialect{}, "", fmt.Errorf("store: parse dsn: %w", err)
		}
		scheme = strings.ToLower(parsed.Scheme)
	}
	switch scheme {
	case "", "file":
		path := strings.TrimPrefix(dsn, "file://")
		return sqliteDialect, sqliteDSN(path), nil
	case "sqlite", "sqlite3":
		path := dsn[strings.Index(dsn, "://")+3:]
		return sqliteDialect, sqliteDSN(path), nil
	case "postgres", "postgresql":
		return postgresDialect, dsn, nil
	default:
		return dialect{}, "", fmt.Errorf("store: unsupported dsn scheme: %s", scheme)
	}
}

func sqliteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) publish(changes ...changefeed.Change) {
	if s.notify == nil {
		return
	}
	for _, c := range changes {
		s.notify.Publish(c)
	}
}

// timestamp returns the current time at the precision every driver keeps.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// withTx runs fn in a transaction and commits it.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
