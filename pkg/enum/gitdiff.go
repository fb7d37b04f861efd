package enum

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/keywarden/keywarden/pkg/types"
)

// GitDiffEnumerator yields units built from the added lines between two
// refs. Deleted and unchanged lines are never scanned; the point of a diff
// scan is catching newly introduced exposures.
type GitDiffEnumerator struct {
	config  Config
	base    string
	compare string
}

// NewGitDiffEnumerator creates a diff adapter. Compare defaults to HEAD
// when empty.
func NewGitDiffEnumerator(config Config, base, compare string) *GitDiffEnumerator {
	if compare == "" {
		compare = "HEAD"
	}
	return &GitDiffEnumerator{config: config, base: base, compare: compare}
}

// Enumerate resolves both refs and walks the patch between them. Units
// carry a ref-pair fingerprint so diff results never share cache keys with
// plain content scans.
func (e *GitDiffEnumerator) Enumerate(ctx context.Context, fn UnitFunc) error {
	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("cannot open git repository %s: %w", e.config.Root, err)
	}

	baseCommit, err := e.resolve(repo, e.base)
	if err != nil {
		return err
	}
	compareCommit, err := e.resolve(repo, e.compare)
	if err != nil {
		return err
	}

	patch, err := baseCommit.PatchContext(ctx, compareCommit)
	if err != nil {
		return fmt.Errorf("cannot diff %s..%s: %w", e.base, e.compare, err)
	}

	for _, fp := range patch.FilePatches() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if fp.IsBinary() {
			continue
		}
		_, to := fp.Files()
		if to == nil {
			// File deleted in compare.
			continue
		}
		if e.config.Excluder != nil && e.config.Excluder.ExcludesExtension(filepath.Ext(to.Path())) {
			continue
		}

		added := addedLines(fp.Chunks())
		if added == "" {
			continue
		}

		unit := types.NewDiffScannableUnit([]byte(added), e.base, e.compare, types.DiffProvenance{
			RepoPath:   e.config.Root,
			BaseRef:    e.base,
			CompareRef: e.compare,
			FilePath:   to.Path(),
		})
		if err := fn(unit); err != nil {
			return err
		}
	}
	return nil
}

func (e *GitDiffEnumerator) resolve(repo *git.Repository, ref string) (*object.Commit, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve revision %s: %w", ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("cannot load commit %s: %w", ref, err)
	}
	return commit, nil
}

// addedLines joins a file patch's added chunks.
func addedLines(chunks []diff.Chunk) string {
	var sb strings.Builder
	for _, chunk := range chunks {
		if chunk.Type() != diff.Add {
			continue
		}
		sb.WriteString(chunk.Content())
		if !strings.HasSuffix(chunk.Content(), "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
