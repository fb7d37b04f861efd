package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/keywarden/keywarden/pkg/types"
)

// Result is one cached detection pass: everything the detector produced
// for a unit's content, keyed by that content's fingerprint. Detections
// are content-relative, so a hit is correct for any unit with the same
// bytes regardless of path; the caller re-binds provenance.
type Result struct {
	Detections []types.Detection `json:"detections"`
	CachedAt   time.Time         `json:"cached_at"`
}

// Cache provides fingerprint-keyed persistence of detection results.
// A fingerprint is derived from content (and the ref pair, for diff
// scans), so a stale read is impossible: changed content is a new key.
type Cache interface {
	// Get returns the cached result for a fingerprint, if present.
	Get(key types.Fingerprint) (Result, bool, error)

	// Put stores the result for a fingerprint, replacing any prior entry.
	Put(key types.Fingerprint, result Result) error

	// Close flushes and releases the backend.
	Close() error
}

// Config for cache initialization.
type Config struct {
	// Path is the cache file. Empty selects the in-memory backend.
	// A .db or .sqlite suffix selects SQLite; anything else is the
	// JSON flat file.
	Path string
}

// New creates a Cache for the configured backend.
func New(cfg Config) (Cache, error) {
	switch {
	case cfg.Path == "":
		return NewMemory(), nil
	case strings.HasSuffix(cfg.Path, ".db") || strings.HasSuffix(cfg.Path, ".sqlite"):
		return NewSQLite(cfg.Path)
	default:
		return NewJSONFile(cfg.Path)
	}
}

// KeyMutex serializes work per fingerprint so two workers holding units
// with identical content do not both run detection: the second blocks,
// then sees the first's Put.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[types.Fingerprint]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyMutex creates an empty keyed mutex.
func NewKeyMutex() *KeyMutex {
	return &KeyMutex{locks: make(map[types.Fingerprint]*keyLock)}
}

// Lock acquires the mutex for one fingerprint.
func (k *KeyMutex) Lock(key types.Fingerprint) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the mutex for one fingerprint, dropping the entry when
// no other goroutine is waiting on it.
func (k *KeyMutex) Unlock(key types.Fingerprint) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic(fmt.Sprintf("unlock of unheld key %s", key.Hex()))
	}
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
