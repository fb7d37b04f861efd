package enum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/keywarden/keywarden/pkg/types"
)

// ignoreFileName is honored alongside .gitignore.
const ignoreFileName = ".keywardenignore"

// FilesystemEnumerator walks a directory tree and yields one unit per
// readable text file.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a filesystem adapter rooted at
// config.Root.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// Enumerate walks the tree in two phases: collect eligible paths under
// the exclusion rules, then read them through a parallel reader pool.
// Directories are visited once by canonical path, so symlink cycles
// terminate.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, fn UnitFunc) error {
	info, err := os.Stat(e.config.Root)
	if err != nil {
		return fmt.Errorf("cannot open scan root %s: %w", e.config.Root, err)
	}

	if !info.IsDir() {
		return e.processFile(ctx, e.config.Root, fn)
	}

	ignore := e.loadIgnores()

	var files []string
	visited := make(map[string]bool)
	if err := e.walk(ctx, e.config.Root, ignore, visited, &files); err != nil {
		return err
	}

	readers := runtime.NumCPU()
	if readers < 1 {
		readers = 1
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	paths := make(chan string, readers*2)

	g.Go(func() error {
		defer close(paths)
		for _, p := range files {
			select {
			case paths <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < readers; i++ {
		g.Go(func() error {
			for p := range paths {
				if err := e.processFile(ctx, p, fn); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if origCtx.Err() != nil {
		return origCtx.Err()
	}
	return nil
}

// loadIgnores compiles .gitignore and .keywardenignore from the root, when
// present.
func (e *FilesystemEnumerator) loadIgnores() []*gitignore.GitIgnore {
	if e.config.DisableIgnoreFiles {
		return nil
	}
	var ignores []*gitignore.GitIgnore
	for _, name := range []string{".gitignore", ignoreFileName} {
		path := filepath.Join(e.config.Root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if ig, err := gitignore.CompileIgnoreFile(path); err == nil {
			ignores = append(ignores, ig)
		}
	}
	return ignores
}

// walk collects eligible file paths. Each directory counts once by its
// symlink-resolved path.
func (e *FilesystemEnumerator) walk(ctx context.Context, dir string, ignores []*gitignore.GitIgnore, visited map[string]bool, files *[]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		e.config.skip(dir, err)
		return nil
	}
	if visited[canonical] {
		return nil
	}
	visited[canonical] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		if dir == e.config.Root {
			return fmt.Errorf("cannot open scan root %s: %w", dir, err)
		}
		e.config.skip(dir, err)
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if target, err := os.Stat(path); err == nil && target.IsDir() {
				isDir = true
			}
		}

		if isDir {
			if name == ".git" {
				continue
			}
			if e.config.Excluder != nil && e.config.Excluder.ExcludesDir(name) {
				continue
			}
			if e.ignored(path, ignores) {
				continue
			}
			if err := e.walk(ctx, path, ignores, visited, files); err != nil {
				return err
			}
			continue
		}

		if e.config.Excluder != nil && e.config.Excluder.ExcludesExtension(filepath.Ext(name)) {
			continue
		}
		if e.ignored(path, ignores) {
			continue
		}
		if e.config.MaxFileSize > 0 {
			if fi, err := entry.Info(); err == nil && fi.Size() > e.config.MaxFileSize {
				continue
			}
		}

		*files = append(*files, path)
	}
	return nil
}

func (e *FilesystemEnumerator) ignored(path string, ignores []*gitignore.GitIgnore) bool {
	rel, err := filepath.Rel(e.config.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, ig := range ignores {
		if ig.MatchesPath(rel) {
			return true
		}
	}
	return false
}

// processFile reads one file and yields a unit unless the content is
// binary.
func (e *FilesystemEnumerator) processFile(ctx context.Context, path string, fn UnitFunc) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	content, err := os.ReadFile(path)
	if err != nil {
		e.config.skip(path, err)
		return nil
	}
	if isBinary(content) {
		return nil
	}

	rel, err := filepath.Rel(e.config.Root, path)
	if err != nil {
		rel = path
	}

	return fn(types.NewScannableUnit(content, types.FileProvenance{
		FilePath: filepath.ToSlash(rel),
	}))
}
