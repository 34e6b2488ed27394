package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/roomchat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id         TEXT NOT NULL,
	room_id    TEXT NOT NULL,
	content    TEXT NOT NULL,
	author     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (room_id, id)
);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that need extra schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// AppendMessage inserts a message row keyed by (room_id, id).
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg store.Message) error {
	query := `
		INSERT INTO messages (id, room_id, content, author, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.RoomID, msg.Content, msg.Author,
		msg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// ListMessages returns every stored message for the room. Row order is an
// implementation detail of the query; callers sort by id.
func (s *SQLiteStore) ListMessages(ctx context.Context, roomID string) ([]store.Message, error) {
	query := `
		SELECT id, room_id, content, author, created_at
		FROM messages
		WHERE room_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		var msg store.Message
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.Content, &msg.Author, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w: %v", store.ErrUnavailable, err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
