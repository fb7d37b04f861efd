package enum

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keywarden/keywarden/pkg/types"
)

func skipIfNoGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test Author",
		"GIT_AUTHOR_EMAIL=author@example.com",
		"GIT_COMMITTER_NAME=Test Author",
		"GIT_COMMITTER_EMAIL=author@example.com",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
}

// setupTestGitRepo creates a repo with three commits: a config file, a
// rewrite of that file, and an unrelated addition.
func setupTestGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")

	writeFile(t, dir, "config.txt", []byte("first version\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial commit")

	writeFile(t, dir, "config.txt", []byte("second version\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "rewrite config")

	writeFile(t, dir, "notes.md", []byte("unrelated\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "add notes")

	return dir
}

func TestGitHistoryEnumerate(t *testing.T) {
	skipIfNoGit(t)
	dir := setupTestGitRepo(t)

	units := collectUnits(t, NewGitHistoryEnumerator(Config{Root: dir}))
	if len(units) != 3 {
		t.Fatalf("expected 3 blobs across history, got %d", len(units))
	}

	contents := make(map[string]bool)
	for _, u := range units {
		contents[string(u.Content)] = true
		if u.Provenance.Kind() != types.SourceCommit {
			t.Errorf("expected commit provenance, got %s", u.Provenance.Kind())
		}
		cp, ok := u.Provenance.(types.CommitProvenance)
		if !ok {
			t.Fatalf("unexpected provenance type %T", u.Provenance)
		}
		if cp.Commit == nil || cp.Commit.CommitID == "" || cp.Commit.AuthorEmail != "author@example.com" {
			t.Errorf("incomplete commit metadata: %+v", cp.Commit)
		}
	}
	for _, want := range []string{"first version\n", "second version\n", "unrelated\n"} {
		if !contents[want] {
			t.Errorf("missing blob content %q", want)
		}
	}
}

func TestGitHistoryDedupesBlobs(t *testing.T) {
	skipIfNoGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")

	writeFile(t, dir, "a.txt", []byte("shared content\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "add a")

	// Same bytes under a new path hash to the same blob.
	writeFile(t, dir, "b.txt", []byte("shared content\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "add b")

	units := collectUnits(t, NewGitHistoryEnumerator(Config{Root: dir}))
	if len(units) != 1 {
		t.Fatalf("expected identical blob scanned once, got %d units", len(units))
	}
}

func TestGitHistoryMaxCommits(t *testing.T) {
	skipIfNoGit(t)
	dir := setupTestGitRepo(t)

	// Newest-first: limiting to one commit sees only the notes addition.
	units := collectUnits(t, NewGitHistoryEnumerator(Config{Root: dir, MaxCommits: 1}))
	if len(units) != 1 {
		t.Fatalf("expected 1 unit with MaxCommits=1, got %d", len(units))
	}
	if string(units[0].Content) != "unrelated\n" {
		t.Errorf("expected newest commit's blob, got %q", units[0].Content)
	}
}

func TestGitHistorySkipsMergeCommits(t *testing.T) {
	skipIfNoGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")

	writeFile(t, dir, "base.txt", []byte("base\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "base")

	runGit(t, dir, "checkout", "-b", "feature")
	writeFile(t, dir, "feature.txt", []byte("feature work\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "feature")

	runGit(t, dir, "checkout", "main")
	writeFile(t, dir, "main.txt", []byte("main work\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "mainline")

	runGit(t, dir, "merge", "--no-ff", "feature", "-m", "merge feature")

	units := collectUnits(t, NewGitHistoryEnumerator(Config{Root: dir}))
	counts := make(map[string]int)
	for _, u := range units {
		counts[string(u.Content)]++
	}
	// The merge re-introduces feature.txt against first parent; skipping it
	// keeps each blob at one report.
	for content, n := range counts {
		if n != 1 {
			t.Errorf("blob %q reported %d times", content, n)
		}
	}
	if len(units) != 3 {
		t.Errorf("expected 3 distinct blobs, got %d", len(units))
	}
}

func TestGitHistoryMaxCommitsIgnoresMerges(t *testing.T) {
	skipIfNoGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")

	writeFile(t, dir, "base.txt", []byte("base\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "base")

	runGit(t, dir, "checkout", "-b", "feature")
	writeFile(t, dir, "feature.txt", []byte("feature work\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "feature")

	runGit(t, dir, "checkout", "main")
	writeFile(t, dir, "main.txt", []byte("main work\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "mainline")

	runGit(t, dir, "merge", "--no-ff", "feature", "-m", "merge feature")

	// The merge at HEAD is skipped, so the bound still covers two
	// content commits, not one.
	units := collectUnits(t, NewGitHistoryEnumerator(Config{Root: dir, MaxCommits: 2}))
	if len(units) != 2 {
		t.Fatalf("expected 2 units from 2 content commits, got %d", len(units))
	}
	contents := make(map[string]bool)
	for _, u := range units {
		contents[string(u.Content)] = true
	}
	if !contents["main work\n"] {
		t.Errorf("newest content commit missing, got %v", contents)
	}
}

func TestGitHistoryNotARepo(t *testing.T) {
	skipIfNoGit(t)
	e := NewGitHistoryEnumerator(Config{Root: t.TempDir()})
	err := e.Enumerate(context.Background(), func(types.ScannableUnit) error { return nil })
	if err == nil {
		t.Fatal("expected fatal error for non-repository root")
	}
}

func TestGitDiffEnumerate(t *testing.T) {
	skipIfNoGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")

	writeFile(t, dir, "app.py", []byte("line one\nline two\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "base")
	runGit(t, dir, "tag", "base-tag")

	writeFile(t, dir, "app.py", []byte("line one\nadded line\nline two\n"))
	writeFile(t, dir, "new.txt", []byte("entirely new\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "changes")

	units := collectUnits(t, NewGitDiffEnumerator(Config{Root: dir}, "base-tag", "HEAD"))
	if len(units) != 2 {
		t.Fatalf("expected 2 changed files, got %d", len(units))
	}

	byPath := make(map[string]types.ScannableUnit)
	for _, u := range units {
		dp, ok := u.Provenance.(types.DiffProvenance)
		if !ok {
			t.Fatalf("unexpected provenance type %T", u.Provenance)
		}
		if dp.BaseRef != "base-tag" || dp.CompareRef != "HEAD" {
			t.Errorf("wrong refs in provenance: %+v", dp)
		}
		byPath[dp.FilePath] = u
	}

	app, ok := byPath["app.py"]
	if !ok {
		t.Fatal("app.py diff missing")
	}
	if strings.Contains(string(app.Content), "line one") {
		t.Errorf("unchanged lines leaked into diff unit: %q", app.Content)
	}
	if !strings.Contains(string(app.Content), "added line") {
		t.Errorf("added line missing from diff unit: %q", app.Content)
	}

	if u, ok := byPath["new.txt"]; !ok {
		t.Error("new.txt diff missing")
	} else if !strings.Contains(string(u.Content), "entirely new") {
		t.Errorf("new file content missing: %q", u.Content)
	}
}

func TestGitDiffFingerprintFoldsRefs(t *testing.T) {
	skipIfNoGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")

	writeFile(t, dir, "f.txt", []byte("v1\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "one")
	runGit(t, dir, "tag", "v1")

	writeFile(t, dir, "f.txt", []byte("v1\nv2\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "two")

	units := collectUnits(t, NewGitDiffEnumerator(Config{Root: dir}, "v1", "HEAD"))
	if len(units) != 1 {
		t.Fatalf("expected 1 unit, got %d", len(units))
	}
	u := units[0]
	if u.Fingerprint == types.ComputeFingerprint(u.Content) {
		t.Error("diff fingerprint must differ from the plain content fingerprint")
	}
	if u.Fingerprint != types.ComputeDiffFingerprint("v1", "HEAD", u.Content) {
		t.Error("diff fingerprint does not match ref-pair computation")
	}
}

func TestGitDiffBadRef(t *testing.T) {
	skipIfNoGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	writeFile(t, dir, "f.txt", []byte("x\n"))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "one")

	e := NewGitDiffEnumerator(Config{Root: dir}, "no-such-ref", "HEAD")
	err := e.Enumerate(context.Background(), func(types.ScannableUnit) error { return nil })
	if err == nil {
		t.Fatal("expected fatal error for unresolvable base ref")
	}
}

func TestFilesystemIgnoreGitRepoContents(t *testing.T) {
	skipIfNoGit(t)
	dir := setupTestGitRepo(t)
	writeFile(t, dir, filepath.Join("extra.txt"), []byte("working tree file\n"))

	// A filesystem scan of a repo scans the working tree, not .git internals.
	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: dir}))
	for _, u := range units {
		if strings.HasPrefix(u.Provenance.Path(), ".git/") {
			t.Errorf(".git internals leaked: %s", u.Provenance.Path())
		}
	}
}
