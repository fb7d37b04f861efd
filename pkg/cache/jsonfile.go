package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/keywarden/keywarden/pkg/types"
)

// JSONFileCache persists results as one flat JSON file, loaded fully on
// open and rewritten atomically (temp file + rename) on every Put. A
// crash mid-write leaves either the old file or the new one, never a
// torn mix.
type JSONFileCache struct {
	path string

	mu      sync.RWMutex
	results map[string]Result // hex fingerprint -> result
}

// NewJSONFile opens (or creates) a JSON flat-file cache at path.
func NewJSONFile(path string) (*JSONFileCache, error) {
	c := &JSONFileCache{
		path:    path,
		results: make(map[string]Result),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *JSONFileCache) load() error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading cache file %s: %w", c.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &c.results); err != nil {
		return fmt.Errorf("parsing cache file %s: %w", c.path, err)
	}
	return nil
}

// Get returns the cached result for a fingerprint, if present.
func (c *JSONFileCache) Get(key types.Fingerprint) (Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[key.Hex()]
	return result, ok, nil
}

// Put stores the result and rewrites the file.
func (c *JSONFileCache) Put(key types.Fingerprint, result Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key.Hex()] = result
	return c.flush()
}

// flush writes the whole map to a sibling temp file and renames it into
// place. Caller holds c.mu.
func (c *JSONFileCache) flush() error {
	data, err := json.MarshalIndent(c.results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// Close is a no-op; every Put already reached disk.
func (c *JSONFileCache) Close() error {
	return nil
}
