package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keywarden/keywarden/pkg/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
	fingerprint     TEXT PRIMARY KEY,
	detections_json TEXT NOT NULL,
	cached_at       TEXT NOT NULL
);
`

// SQLiteCache persists results in an embedded SQLite database through the
// pure-Go driver. WAL keeps concurrent reader goroutines off the write
// path.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite cache at path. Use ":memory:" for
// tests.
func NewSQLite(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &SQLiteCache{db: db}, nil
}

// Get returns the cached result for a fingerprint, if present.
func (c *SQLiteCache) Get(key types.Fingerprint) (Result, bool, error) {
	var detectionsJSON string
	var cachedAt string

	err := c.db.QueryRow(
		"SELECT detections_json, cached_at FROM results WHERE fingerprint = ?",
		key.Hex(),
	).Scan(&detectionsJSON, &cachedAt)
	if err == sql.ErrNoRows {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("querying cache: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(detectionsJSON), &result.Detections); err != nil {
		return Result{}, false, fmt.Errorf("decoding cached detections: %w", err)
	}
	if result.CachedAt, err = time.Parse(time.RFC3339Nano, cachedAt); err != nil {
		return Result{}, false, fmt.Errorf("decoding cache timestamp: %w", err)
	}
	return result, true, nil
}

// Put stores the result for a fingerprint, replacing any prior entry.
func (c *SQLiteCache) Put(key types.Fingerprint, result Result) error {
	detectionsJSON, err := json.Marshal(result.Detections)
	if err != nil {
		return fmt.Errorf("encoding detections: %w", err)
	}

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO results (fingerprint, detections_json, cached_at) VALUES (?, ?, ?)",
		key.Hex(),
		string(detectionsJSON),
		result.CachedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting cache entry: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
