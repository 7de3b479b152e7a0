package organize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyRenamesFile(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "usr", "bin", "tool"), "binary")

	if err := Apply(dir, map[string]string{"usr/bin/tool": "bin/tool"}, false); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "usr", "bin", "tool")); !os.IsNotExist(err) {
		t.Errorf("source file still present after organize: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bin", "tool")); err != nil {
		t.Errorf("destination file missing: %v", err)
	}
}

func TestApplyGlobIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.so"), "x")
	mustWrite(t, filepath.Join(dir, "b.so"), "x")

	if err := Apply(dir, map[string]string{"*.so": "lib/"}, false); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"a.so", "b.so"} {
		if _, err := os.Stat(filepath.Join(dir, "lib", f)); err != nil {
			t.Errorf("%s missing from lib/: %v", f, err)
		}
	}
}

func TestApplyRejectsMultipleSourcesIntoNonDirectory(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.so"), "x")
	mustWrite(t, filepath.Join(dir, "b.so"), "x")

	err := Apply(dir, map[string]string{"*.so": "lib.so"}, false)
	if err == nil {
		t.Fatal("expected an error when multiple sources match a non-directory destination")
	}
}

func TestApplyRejectsExistingDestinationWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a"), "x")
	mustWrite(t, filepath.Join(dir, "b"), "y")

	if err := Apply(dir, map[string]string{"a": "b"}, false); err == nil {
		t.Fatal("expected an error when destination already exists and overwrite is false")
	}
}

func TestApplyOverwriteReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a"), "x")
	mustWrite(t, filepath.Join(dir, "b"), "y")

	if err := Apply(dir, map[string]string{"a": "b"}, true); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "b"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "x" {
		t.Errorf("destination = %q, want %q", got, "x")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
