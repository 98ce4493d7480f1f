package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a persistent Cache backed by a local SQLite file, so repeated
// grid-search runs across processes reuse completed-game results.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	// WAL lets concurrent workers read while one writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	c := &SQLite{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}
	return c, nil
}

func (c *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game_results (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_game_results_expires ON game_results(expires_at);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *SQLite) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var payload string
	var expiresAt time.Time

	row := c.db.QueryRowContext(ctx,
		"SELECT payload, expires_at FROM game_results WHERE key = ?", key)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}

	if time.Now().After(expiresAt) {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return &entry, true, nil
}

func (c *SQLite) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	now := time.Now()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO game_results (key, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload,
		 	created_at = excluded.created_at, expires_at = excluded.expires_at`,
		key, string(payload), now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Prune deletes expired entries and returns the number removed.
func (c *SQLite) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM game_results WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

func (c *SQLite) Close() error {
	return c.db.Close()
}
