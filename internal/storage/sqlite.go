// Package storage provides file and database handling for a book.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/draftsmith/draftsmith/pkg/types"
)

// Store manages the SQLite database that backs a single book: the
// chapter outline and the assistant conversation log.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the book database under .draftsmith/.
func NewStore(bookPath string) (*Store, error) {
	dbPath := filepath.Join(bookPath, ".draftsmith", "store.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the required tables if they don't exist.
func (s *Store) initialize() error {
	schema := `
	-- Chapter outline, one row per node
	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		word_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		expanded INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chapters_parent
	ON chapters(parent_id, position);

	-- Assistant conversation history
	CREATE TABLE IF NOT EXISTS conversation (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		chapter_id TEXT,
		timestamp INTEGER NOT NULL
	);

	-- Schema version for migrations
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveChapters replaces the stored outline with the given top-level
// chapters and their descendants, in a single transaction.
func (s *Store) SaveChapters(chapters []*types.Chapter) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chapters"); err != nil {
		return fmt.Errorf("failed to clear chapters: %w", err)
	}

	if err := insertChapters(tx, "", chapters); err != nil {
		return err
	}

	return tx.Commit()
}

func insertChapters(tx *sql.Tx, parentID string, chapters []*types.Chapter) error {
	for pos, ch := range chapters {
		expanded := 0
		if ch.Expanded {
			expanded = 1
		}
		_, err := tx.Exec(`
			INSERT INTO chapters (id, parent_id, position, title, content, word_count, status, expanded, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ch.ID, parentID, pos, ch.Title, ch.Content, ch.WordCount, ch.Status, expanded,
			ch.CreatedAt.Unix(), ch.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert chapter %s: %w", ch.ID, err)
		}
		if err := insertChapters(tx, ch.ID, ch.Children); err != nil {
			return err
		}
	}
	return nil
}

// LoadChapters reads the stored outline back as a tree of top-level
// chapters, siblings ordered as they were saved.
func (s *Store) LoadChapters() ([]*types.Chapter, error) {
	rows, err := s.db.Query(`
		SELECT id, parent_id, title, content, word_count, status, expanded, created_at, updated_at
		FROM chapters
		ORDER BY parent_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load chapters: %w", err)
	}
	defer rows.Close()

	byParent := make(map[string][]*types.Chapter)
	for rows.Next() {
		var (
			ch                   types.Chapter
			parentID             string
			expanded             int
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&ch.ID, &parentID, &ch.Title, &ch.Content, &ch.WordCount,
			&ch.Status, &expanded, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		ch.Expanded = expanded != 0
		ch.CreatedAt = time.Unix(createdAt, 0)
		ch.UpdatedAt = time.Unix(updatedAt, 0)
		byParent[parentID] = append(byParent[parentID], &ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var attach func(parentID string) []*types.Chapter
	attach = func(parentID string) []*types.Chapter {
		children := byParent[parentID]
		for _, ch := range children {
			ch.Children = attach(ch.ID)
		}
		return children
	}

	return attach(""), nil
}

// SaveMessage appends a message to the conversation history.
func (s *Store) SaveMessage(msg types.AIMessage) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(
		"INSERT INTO conversation (role, content, chapter_id, timestamp) VALUES (?, ?, ?, ?)",
		msg.Role, msg.Content, msg.ChapterID, ts.Unix(),
	)
	return err
}

// LoadMessages returns up to limit most recent conversation messages in
// chronological order.
func (s *Store) LoadMessages(limit int) ([]types.AIMessage, error) {
	rows, err := s.db.Query(`
		SELECT role, content, chapter_id, timestamp
		FROM conversation
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.AIMessage
	for rows.Next() {
		var (
			msg types.AIMessage
			ts  int64
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.ChapterID, &ts); err != nil {
			return nil, err
		}
		msg.Timestamp = time.Unix(ts, 0)
		messages = append(messages, msg)
	}

	// Reverse to get chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

// ClearMessages deletes the conversation history.
func (s *Store) ClearMessages() error {
	_, err := s.db.Exec("DELETE FROM conversation")
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
