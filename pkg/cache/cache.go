package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// MeasurementCache stores instruction-count scores for candidate texts that
// were already measured, so duplicate oracle output is not re-executed.
// Only successful measurements are cached; failures are always retried.
type MeasurementCache interface {
	// Get retrieves a cached score by key.
	Get(ctx context.Context, key string) (int64, bool, error)

	// Set stores a score with the given key.
	Set(ctx context.Context, key string, score int64) error

	// Stats returns cache statistics.
	Stats() Stats

	// Close releases any resources held by the cache.
	Close() error
}

// Stats contains cache performance statistics.
type Stats struct {
	Hits       int64     `json:"hits"`
	Misses     int64     `json:"misses"`
	Sets       int64     `json:"sets"`
	Entries    int64     `json:"entries"`
	LastAccess time.Time `json:"last_access"`
}

// Key derives a cache key from the target program identity and the candidate
// text. Scores are machine- and binary-specific, so the program path is part
// of the digest.
func Key(programPath, candidateText string) string {
	h := sha256.New()
	h.Write([]byte(programPath))
	h.Write([]byte{0})
	h.Write([]byte(candidateText))
	return hex.EncodeToString(h.Sum(nil))
}

// Config selects and sizes a cache backend.
type Config struct {
	// Type of cache: "memory" or "sqlite". Empty disables caching.
	Type string `yaml:"type" json:"type"`

	// Maximum number of entries held by the memory cache (0 = default)
	MaxEntries int `yaml:"max_entries" json:"max_entries"`

	// Path to the SQLite database file
	Path string `yaml:"path" json:"path"`
}

// New creates a cache instance based on the configuration. A nil return with
// nil error means caching is disabled.
func New(cfg Config) (MeasurementCache, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryCache(cfg.MaxEntries), nil
	case "sqlite":
		return NewSQLiteCache(cfg.Path)
	case "":
		return nil, nil
	default:
		return NewMemoryCache(cfg.MaxEntries), nil
	}
}
