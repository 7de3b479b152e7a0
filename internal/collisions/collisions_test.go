package collisions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/partforge/partforge/internal/errs"
)

func TestCheckNoConflictOnPcFilesDifferingOnlyInPrefix(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	write(t, filepath.Join(a, "lib.pc"), "prefix=/a\nName: lib\n")
	write(t, filepath.Join(b, "lib.pc"), "prefix=/b\nName: lib\n")

	newPart := PartFiles{PartName: "a", InstallDir: a, Files: set("lib.pc")}
	prior := PartFiles{PartName: "b", InstallDir: b, Files: set("lib.pc")}

	if err := Check(newPart, []PartFiles{prior}); err != nil {
		t.Fatalf("expected no conflict for .pc files differing only in prefix=, got %v", err)
	}
}

func TestCheckConflictOnDivergentContent(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	write(t, filepath.Join(a, "lib.pc"), "prefix=/a\nName: lib-a\n")
	write(t, filepath.Join(b, "lib.pc"), "prefix=/b\nName: lib-b\n")

	newPart := PartFiles{PartName: "a", InstallDir: a, Files: set("lib.pc")}
	prior := PartFiles{PartName: "b", InstallDir: b, Files: set("lib.pc")}

	err := Check(newPart, []PartFiles{prior})
	if err == nil {
		t.Fatal("expected a conflict for diverging .pc contents")
	}
	if _, ok := err.(errs.ExitCoder); !ok {
		t.Errorf("expected a mapped exit-code error, got %T", err)
	}
}

func TestCheckConflictFileVsDir(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	write(t, filepath.Join(a, "bin"), "not a dir")
	if err := os.MkdirAll(filepath.Join(b, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}

	newPart := PartFiles{PartName: "a", InstallDir: a, Files: set("bin")}
	prior := PartFiles{PartName: "b", InstallDir: b, Dirs: set("bin")}

	if err := Check(newPart, []PartFiles{prior}); err == nil {
		t.Fatal("expected a conflict between a file and a directory at the same path")
	}
}

func TestRewritePrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.pc")
	write(t, path, "prefix=/old\nName: lib\n")

	if err := RewritePrefix(path, "/new/stage"); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "prefix=/new/stage\nName: lib\n"
	if string(got) != want {
		t.Errorf("RewritePrefix() = %q, want %q", got, want)
	}
}

func TestRewritePrefixIgnoresNonPcFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.txt")
	write(t, path, "prefix=/old\n")

	if err := RewritePrefix(path, "/new/stage"); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "prefix=/old\n" {
		t.Errorf("non-.pc file was modified: %q", got)
	}
}

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
