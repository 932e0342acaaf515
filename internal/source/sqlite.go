package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Log is a SQLite-backed message log. Channel adapters append observed
// messages; the diary core reads them back through the Fetcher
// interface.
type Log struct {
	db *sql.DB
	mu sync.Mutex
}

func NewLog(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	l := &Log{db: db}
	if err := l.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := l.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (l *Log) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			ts_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_window ON messages(conversation, ts_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends one observed message.
func (l *Log) Record(conversation string, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if strings.TrimSpace(conversation) == "" {
		return fmt.Errorf("record message: empty conversation")
	}
	_, err := l.db.Exec(`
		INSERT INTO messages (conversation, sender, content, ts_ms)
		VALUES (?, ?, ?, ?)
	`, conversation, strings.TrimSpace(msg.Sender), msg.Content, msg.Time.UnixMilli())
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// FetchRange implements Fetcher over the local log.
func (l *Log) FetchRange(ctx context.Context, conversation string, start, end time.Time, limit int, earliestFirst bool) ([]Message, error) {
	if limit <= 0 {
		limit = fetchBatchSize
	}
	order := "DESC"
	if earliestFirst {
		order = "ASC"
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT sender, content, ts_ms
		FROM messages
		WHERE conversation = ? AND ts_ms >= ? AND ts_ms < ?
		ORDER BY ts_ms `+order+`, id `+order+`
		LIMIT ?
	`, conversation, start.UnixMilli(), end.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	result := make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		var tsMs int64
		if err := rows.Scan(&msg.Sender, &msg.Content, &tsMs); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Time = time.UnixMilli(tsMs)
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return result, nil
}

// Prune deletes messages older than the cutoff across all
// conversations. Invoked from explicit maintenance only.
func (l *Log) Prune(cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(`DELETE FROM messages WHERE ts_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune messages: count affected rows: %w", err)
	}
	return n, nil
}
