// Package journal records the outcome of every dispatched message so
// operators can audit the bot's at-most-once behavior after the fact.
// It is observability only: the service loop never reads it back, and the
// poll cursor is deliberately not checkpointed here.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Outcome string

const (
	OutcomeReplied Outcome = "replied" // photo reply delivered
	OutcomeHelp    Outcome = "help"    // unrecognized command, help text sent
	OutcomeFailed  Outcome = "failed"  // pipeline or reply failure, message dropped
)

// Entry is one handled inbound message.
type Entry struct {
	Seq        int64
	ChatID     string
	Category   string
	QuestionID string
	Outcome    Outcome
	Error      string
	CreatedAt  time.Time
}

// Store is a SQLite-backed dispatch journal.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open journal database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dispatches (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		seq         INTEGER NOT NULL,
		chat_id     TEXT NOT NULL,
		category    TEXT,
		question_id TEXT,
		outcome     TEXT NOT NULL,
		error       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_dispatches_time ON dispatches(created_at);
	CREATE INDEX IF NOT EXISTS idx_dispatches_chat ON dispatches(chat_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends one dispatch entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches (seq, chat_id, category, question_id, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Seq, e.ChatID, e.Category, e.QuestionID, string(e.Outcome), e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, chat_id, category, question_id, outcome, error, created_at
		 FROM dispatches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.Seq, &e.ChatID, &e.Category, &e.QuestionID, &outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
