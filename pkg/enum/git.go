package enum

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/keywarden/keywarden/pkg/types"
)

// GitHistoryEnumerator walks commits newest-first and yields the blobs
// each commit changed against its first parent. Merge commits are skipped:
// their first-parent diff re-shows the merged branch's lines and would
// double-report. Cost stays proportional to total diff size, not commits
// times tree size.
type GitHistoryEnumerator struct {
	config Config

	// Ref is the revision the walk starts from. Defaults to HEAD.
	Ref string
}

// NewGitHistoryEnumerator creates a history adapter for the repository at
// config.Root.
func NewGitHistoryEnumerator(config Config) *GitHistoryEnumerator {
	return &GitHistoryEnumerator{config: config, Ref: "HEAD"}
}

// Enumerate walks the history. A repository that cannot be opened or a ref
// that does not resolve is fatal; a single unreadable object is a skip.
func (e *GitHistoryEnumerator) Enumerate(ctx context.Context, fn UnitFunc) error {
	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("cannot open git repository %s: %w", e.config.Root, err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(e.Ref))
	if err != nil {
		return fmt.Errorf("cannot resolve revision %s: %w", e.Ref, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: *hash})
	if err != nil {
		return fmt.Errorf("cannot walk history from %s: %w", e.Ref, err)
	}
	defer iter.Close()

	seen := make(map[plumbing.Hash]bool)
	commits := 0

	err = iter.ForEach(func(commit *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Merge commits are skipped, so they must not consume the
		// MaxCommits bound either.
		if commit.NumParents() > 1 {
			return nil
		}
		if e.config.MaxCommits > 0 && commits >= e.config.MaxCommits {
			return storer.ErrStop
		}
		commits++

		return e.scanCommit(commit, seen, fn)
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return err
	}
	return nil
}

// scanCommit diffs the commit against its first parent (or the empty tree
// for the initial commit) and yields each changed text blob once.
func (e *GitHistoryEnumerator) scanCommit(commit *object.Commit, seen map[plumbing.Hash]bool, fn UnitFunc) error {
	commitTree, err := commit.Tree()
	if err != nil {
		e.config.skip(commit.Hash.String(), err)
		return nil
	}

	var parentTree *object.Tree
	if commit.NumParents() == 1 {
		parent, err := commit.Parent(0)
		if err != nil {
			e.config.skip(commit.Hash.String(), err)
			return nil
		}
		parentTree, err = parent.Tree()
		if err != nil {
			e.config.skip(commit.Hash.String(), err)
			return nil
		}
	}

	changes, err := object.DiffTree(parentTree, commitTree)
	if err != nil {
		e.config.skip(commit.Hash.String(), err)
		return nil
	}

	meta := &types.CommitMetadata{
		CommitID:        commit.Hash.String(),
		AuthorName:      commit.Author.Name,
		AuthorEmail:     commit.Author.Email,
		AuthorTimestamp: commit.Author.When,
		Message:         commit.Message,
	}

	for _, change := range changes {
		// Deletions leave nothing to scan.
		if change.To.Name == "" {
			continue
		}
		if e.excluded(change.To.Name) {
			continue
		}
		if seen[change.To.TreeEntry.Hash] {
			continue
		}
		seen[change.To.TreeEntry.Hash] = true

		_, toFile, err := change.Files()
		if err != nil || toFile == nil {
			e.config.skip(change.To.Name, err)
			continue
		}
		if e.config.MaxFileSize > 0 && toFile.Size > e.config.MaxFileSize {
			continue
		}

		content, err := readBlob(toFile)
		if err != nil {
			e.config.skip(change.To.Name, err)
			continue
		}
		if isBinary(content) {
			continue
		}

		unit := types.NewScannableUnit(content, types.CommitProvenance{
			RepoPath: e.config.Root,
			Commit:   meta,
			BlobPath: change.To.Name,
		})
		if err := fn(unit); err != nil {
			return err
		}
	}
	return nil
}

func (e *GitHistoryEnumerator) excluded(path string) bool {
	if e.config.Excluder == nil {
		return false
	}
	return e.config.Excluder.ExcludesExtension(filepath.Ext(path))
}

// readBlob streams a blob's bytes.
func readBlob(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
