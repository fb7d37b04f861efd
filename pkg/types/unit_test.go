package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceKind_Rank(t *testing.T) {
	// tie-break order is part of the output contract
	assert.Less(t, SourceFile.Rank(), SourceCommit.Rank())
	assert.Less(t, SourceCommit.Rank(), SourceDiff.Rank())
	assert.Less(t, SourceDiff.Rank(), SourceCI.Rank())
}

func TestNewScannableUnit(t *testing.T) {
	content := []byte("API_KEY=something\n")
	unit := NewScannableUnit(content, FileProvenance{FilePath: "x.env"})

	assert.Equal(t, ComputeFingerprint(content), unit.Fingerprint)
	assert.Equal(t, SourceFile, unit.Provenance.Kind())
	assert.Equal(t, "x.env", unit.Provenance.Path())
}

func TestNewDiffScannableUnit(t *testing.T) {
	content := []byte("API_KEY=something\n")
	prov := DiffProvenance{BaseRef: "main", CompareRef: "HEAD", FilePath: "x.env"}
	unit := NewDiffScannableUnit(content, "main", "HEAD", prov)

	// diff units never share keys with plain content units
	assert.NotEqual(t, ComputeFingerprint(content), unit.Fingerprint)
	assert.Equal(t, SourceDiff, unit.Provenance.Kind())
}

func TestProvenance_Paths(t *testing.T) {
	file := FileProvenance{FilePath: "src/app.py"}
	assert.Equal(t, "src/app.py", file.Path())

	commit := CommitProvenance{
		Commit:   &CommitMetadata{CommitID: "0123456789abcdef0123456789abcdef01234567"},
		BlobPath: "src/app.py",
	}
	assert.Equal(t, "01234567:src/app.py", commit.Path())

	bare := CommitProvenance{BlobPath: "src/app.py"}
	assert.Equal(t, "src/app.py", bare.Path())

	diff := DiffProvenance{BaseRef: "main", CompareRef: "feature", FilePath: "src/app.py"}
	assert.Equal(t, "main..feature:src/app.py", diff.Path())

	ci := CIProvenance{System: "github-actions", Source: ".github/workflows/ci.yml", Section: "job 'build' env 'KEY'"}
	assert.Equal(t, ".github/workflows/ci.yml (job 'build' env 'KEY')", ci.Path())
}

func TestSnippet_Redacted(t *testing.T) {
	s := Snippet{
		Before:   []byte("OPENAI_API_KEY="),
		Matching: []byte("sk-live-abcdefghijklmnopqrstuvwxyz0123456789012345"),
		After:    []byte(" # prod"),
	}

	out := s.Redacted()
	assert.Equal(t, "OPENAI_API_KEY=[sk-live-...] # prod", out)
	assert.NotContains(t, out, string(s.Matching))
}
