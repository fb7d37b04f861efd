// Package enum implements the content source adapters: working-tree
// files, git history commits, git branch diffs, and CI configuration.
// Every adapter yields a lazy, finite sequence of scannable units through
// the same contract; rescanning means calling Enumerate again.
package enum

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/keywarden/keywarden/pkg/types"
)

// UnitFunc receives each scannable unit. Returning an error aborts the
// enumeration.
type UnitFunc func(unit types.ScannableUnit) error

// Enumerator produces scannable units from one source.
type Enumerator interface {
	Enumerate(ctx context.Context, fn UnitFunc) error
}

// SkipFunc is notified of recoverable skips: an unreadable file or
// object is reported and enumeration continues. Failure to start the
// traversal at all is returned from Enumerate instead.
type SkipFunc func(path string, err error)

// Config is shared adapter configuration.
type Config struct {
	// Root is the directory or repository to enumerate.
	Root string

	// Excluder filters directories and file extensions. Nil disables
	// exclusion.
	Excluder Excluder

	// MaxFileSize caps blob size in bytes (0 = no limit).
	MaxFileSize int64

	// DisableIgnoreFiles stops the tree walk from honoring .gitignore
	// and .keywardenignore, so gitignored files get scanned too.
	DisableIgnoreFiles bool

	// MaxCommits bounds the history walk (0 = unbounded).
	MaxCommits int

	// OnSkip is called for recoverable skips. Nil means skips are only
	// logged.
	OnSkip SkipFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Excluder is the exclusion contract the adapters consume; pkg/config
// provides the compiled implementation.
type Excluder interface {
	ExcludesExtension(ext string) bool
	ExcludesDir(name string) bool
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// skip reports a recoverable skip through the warning log and the OnSkip
// hook.
func (c *Config) skip(path string, err error) {
	c.logger().Warn("skipping unreadable content", "path", path, "err", err)
	if c.OnSkip != nil {
		c.OnSkip(path, err)
	}
}

// isBinary sniffs for a NUL byte in the first 8 KB, the cheap test git
// itself uses.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(content[:n], 0) != -1
}
