package types

import (
	"fmt"
	"time"
)

// Provenance tracks where a scannable unit came from.
type Provenance interface {
	Kind() SourceKind
	// Path returns the displayable path or reference
	Path() string
}

// FileProvenance for working-tree files.
type FileProvenance struct {
	FilePath string
}

// Kind returns SourceFile.
func (f FileProvenance) Kind() SourceKind {
	return SourceFile
}

// Path returns the file path.
func (f FileProvenance) Path() string {
	return f.FilePath
}

// CommitProvenance for blobs reached through a history walk.
type CommitProvenance struct {
	RepoPath string
	Commit   *CommitMetadata
	BlobPath string // path within repo at commit
}

// Kind returns SourceCommit.
func (c CommitProvenance) Kind() SourceKind {
	return SourceCommit
}

// Path returns "<short-commit>:<blob path>".
func (c CommitProvenance) Path() string {
	if c.Commit == nil {
		return c.BlobPath
	}
	return fmt.Sprintf("%s:%s", shortHash(c.Commit.CommitID), c.BlobPath)
}

// CommitMetadata holds git commit information.
type CommitMetadata struct {
	CommitID        string
	AuthorName      string
	AuthorEmail     string
	AuthorTimestamp time.Time
	Message         string
}

// DiffProvenance for added lines between two refs.
type DiffProvenance struct {
	RepoPath   string
	BaseRef    string
	CompareRef string
	FilePath   string
}

// Kind returns SourceDiff.
func (d DiffProvenance) Kind() SourceKind {
	return SourceDiff
}

// Path returns "<base>..<compare>:<file path>".
func (d DiffProvenance) Path() string {
	return fmt.Sprintf("%s..%s:%s", d.BaseRef, d.CompareRef, d.FilePath)
}

// CIProvenance for values pulled out of CI configuration, local or fetched.
type CIProvenance struct {
	System  string // "github-actions" or "gitlab-ci"
	Source  string // workflow file path or remote project reference
	Section string // e.g. "job 'build' step 2 env 'API_KEY'"
}

// Kind returns SourceCI.
func (c CIProvenance) Kind() SourceKind {
	return SourceCI
}

// Path returns "<source> (<section>)".
func (c CIProvenance) Path() string {
	if c.Section == "" {
		return c.Source
	}
	return fmt.Sprintf("%s (%s)", c.Source, c.Section)
}

func shortHash(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
