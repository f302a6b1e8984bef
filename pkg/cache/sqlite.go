package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCache persists measurement scores across campaigns against the same
// target binary on the same machine.
type SQLiteCache struct {
	db    *sql.DB
	mu    sync.Mutex
	stats Stats
}

// NewSQLiteCache creates a new SQLite-backed measurement cache.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if path == "" {
		path = "pathogen_cache.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	cache := &SQLiteCache{db: db}
	if err := cache.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	// WAL mode tolerates the concurrent reads during the measurement fan-out
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	cache.loadStats()

	return cache, nil
}

func (c *SQLiteCache) initDB() error {
	query := `
	CREATE TABLE IF NOT EXISTS measurements (
		key TEXT PRIMARY KEY,
		score INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := c.db.Exec(query)
	return err
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (int64, bool, error) {
	var score int64
	err := c.db.QueryRowContext(ctx,
		"SELECT score FROM measurements WHERE key = ?", key).Scan(&score)
	if err == sql.ErrNoRows {
		c.bump(func(s *Stats) { s.Misses++ })
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("cache lookup failed: %w", err)
	}

	c.bump(func(s *Stats) {
		s.Hits++
		s.LastAccess = time.Now()
	})
	return score, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, score int64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO measurements (key, score, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, score, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}

	c.bump(func(s *Stats) { s.Sets++ })
	return nil
}

func (c *SQLiteCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	var entries int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&entries); err == nil {
		stats.Entries = entries
	}
	return stats
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func (c *SQLiteCache) bump(fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

func (c *SQLiteCache) loadStats() {
	var entries int64
	if err := c.db.QueryRow("SELECT COUNT(*) FROM measurements").Scan(&entries); err == nil {
		c.stats.Entries = entries
	}
}
