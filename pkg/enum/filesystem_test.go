package enum

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/keywarden/keywarden/pkg/types"
)

type testExcluder struct {
	exts map[string]bool
	dirs map[string]bool
}

func (e testExcluder) ExcludesExtension(ext string) bool { return e.exts[ext] }
func (e testExcluder) ExcludesDir(name string) bool      { return e.dirs[name] }

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func collectUnits(t *testing.T, e Enumerator) []types.ScannableUnit {
	t.Helper()
	var units []types.ScannableUnit
	err := e.Enumerate(context.Background(), func(u types.ScannableUnit) error {
		units = append(units, u)
		return nil
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	return units
}

func unitPaths(units []types.ScannableUnit) map[string]bool {
	paths := make(map[string]bool)
	for _, u := range units {
		paths[u.Provenance.Path()] = true
	}
	return paths
}

func TestFilesystemEnumerateBasic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("alpha\n"))
	writeFile(t, root, "sub/b.txt", []byte("beta\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root}))
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}

	paths := unitPaths(units)
	if !paths["a.txt"] || !paths["sub/b.txt"] {
		t.Errorf("unexpected paths: %v", paths)
	}

	for _, u := range units {
		if u.Fingerprint != types.ComputeFingerprint(u.Content) {
			t.Errorf("fingerprint mismatch for %s", u.Provenance.Path())
		}
		if u.Provenance.Kind() != types.SourceFile {
			t.Errorf("expected file provenance, got %s", u.Provenance.Kind())
		}
	}
}

func TestFilesystemSkipsBinary(t *testing.T) {
	root := t.TempDir()

	// 512 KB of NUL-laced pseudo-image data: zero findings, zero errors.
	binary := bytes.Repeat([]byte{0x89, 0x50, 0x4e, 0x47, 0x00, 0x1a, 0x33, 0x71}, 64*1024)
	writeFile(t, root, "image.dat", binary)
	writeFile(t, root, "ok.txt", []byte("text\n"))

	var skips int
	units := collectUnits(t, NewFilesystemEnumerator(Config{
		Root:   root,
		OnSkip: func(string, error) { skips++ },
	}))
	if len(units) != 1 || units[0].Provenance.Path() != "ok.txt" {
		t.Fatalf("expected only ok.txt, got %d units", len(units))
	}
	if skips != 0 {
		t.Errorf("binary skip should not count as an error, got %d", skips)
	}
}

func TestFilesystemExclusions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.go", []byte("package keep\n"))
	writeFile(t, root, "skip.log", []byte("log line\n"))
	writeFile(t, root, "node_modules/dep.js", []byte("module\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{
		Root: root,
		Excluder: testExcluder{
			exts: map[string]bool{".log": true},
			dirs: map[string]bool{"node_modules": true},
		},
	}))

	paths := unitPaths(units)
	if !paths["keep.go"] {
		t.Error("keep.go missing")
	}
	if paths["skip.log"] || paths["node_modules/dep.js"] {
		t.Errorf("excluded paths leaked: %v", paths)
	}
}

func TestFilesystemGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte("ignored.txt\nignored-dir/\n"))
	writeFile(t, root, "ignored.txt", []byte("secret-ish\n"))
	writeFile(t, root, "ignored-dir/file.txt", []byte("hidden\n"))
	writeFile(t, root, "kept.txt", []byte("visible\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root}))
	paths := unitPaths(units)

	if !paths["kept.txt"] || !paths[".gitignore"] {
		t.Errorf("expected kept.txt and .gitignore, got %v", paths)
	}
	if paths["ignored.txt"] || paths["ignored-dir/file.txt"] {
		t.Errorf("gitignored paths leaked: %v", paths)
	}
}

func TestFilesystemDisableIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", []byte(".env\n"))
	writeFile(t, root, ".env", []byte("API_KEY=value\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root, DisableIgnoreFiles: true}))
	if !unitPaths(units)[".env"] {
		t.Error("gitignored file must be scanned when ignore files are disabled")
	}
}

func TestFilesystemKeywardenignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ignoreFileName, []byte("*.secret\n"))
	writeFile(t, root, "conf.secret", []byte("value\n"))
	writeFile(t, root, "conf.txt", []byte("value\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root}))
	paths := unitPaths(units)
	if paths["conf.secret"] {
		t.Error("keywardenignore pattern not honored")
	}
	if !paths["conf.txt"] {
		t.Error("conf.txt missing")
	}
}

func TestFilesystemSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks unreliable on windows")
	}

	root := t.TempDir()
	writeFile(t, root, "sub/file.txt", []byte("content\n"))
	if err := os.Symlink(root, filepath.Join(root, "sub", "loop")); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	// Must terminate and visit each directory once.
	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root}))
	count := 0
	for _, u := range units {
		if filepath.Base(u.Provenance.Path()) == "file.txt" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected file.txt exactly once, got %d", count)
	}
}

func TestFilesystemMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", bytes.Repeat([]byte("x"), 1024))
	writeFile(t, root, "small.txt", []byte("ok\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root, MaxFileSize: 100}))
	paths := unitPaths(units)
	if paths["big.txt"] {
		t.Error("oversized file leaked")
	}
	if !paths["small.txt"] {
		t.Error("small.txt missing")
	}
}

func TestFilesystemBadRootIsFatal(t *testing.T) {
	e := NewFilesystemEnumerator(Config{Root: filepath.Join(t.TempDir(), "absent")})
	err := e.Enumerate(context.Background(), func(types.ScannableUnit) error { return nil })
	if err == nil {
		t.Fatal("expected fatal error for missing root")
	}
}

func TestFilesystemSkipsDotGit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/config", []byte("[core]\n"))
	writeFile(t, root, "main.go", []byte("package main\n"))

	units := collectUnits(t, NewFilesystemEnumerator(Config{Root: root}))
	for _, u := range units {
		if filepath.Base(filepath.Dir(u.Provenance.Path())) == ".git" {
			t.Errorf(".git content leaked: %s", u.Provenance.Path())
		}
	}
}
