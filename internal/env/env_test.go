package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDerivePicksUpExistingSubdirs(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "usr", "bin"))
	mustMkdir(t, filepath.Join(root, "usr", "include"))
	mustMkdir(t, filepath.Join(root, "usr", "lib"))
	stageDir := t.TempDir()

	got := Derive(root, stageDir, "x86_64-linux-gnu", "")

	if got["PATH"] != filepath.Join(root, "usr/bin") {
		t.Errorf("PATH = %q, want %q", got["PATH"], filepath.Join(root, "usr/bin"))
	}
	wantCFLAGS := "-isystem" + filepath.Join(root, "usr/include")
	if got["CFLAGS"] != wantCFLAGS {
		t.Errorf("CFLAGS = %q, want %q", got["CFLAGS"], wantCFLAGS)
	}
	if got["CXXFLAGS"] != wantCFLAGS {
		t.Errorf("CXXFLAGS = %q, want %q", got["CXXFLAGS"], wantCFLAGS)
	}
	wantLDFLAGS := "-L" + filepath.Join(root, "usr/lib")
	if got["LDFLAGS"] != wantLDFLAGS {
		t.Errorf("LDFLAGS = %q, want %q", got["LDFLAGS"], wantLDFLAGS)
	}
}

func TestDeriveIncludesStageDirContributions(t *testing.T) {
	root := t.TempDir()
	stageDir := t.TempDir()
	mustMkdir(t, filepath.Join(stageDir, "usr", "bin"))
	mustMkdir(t, filepath.Join(stageDir, "usr", "include"))
	mustMkdir(t, filepath.Join(stageDir, "usr", "lib"))

	got := Derive(root, stageDir, "x86_64-linux-gnu", "")

	wantPATH := filepath.Join(stageDir, "usr/bin")
	if got["PATH"] != wantPATH {
		t.Errorf("PATH = %q, want %q", got["PATH"], wantPATH)
	}
	wantCFLAGS := "-isystem" + filepath.Join(stageDir, "usr/include")
	if got["CFLAGS"] != wantCFLAGS {
		t.Errorf("CFLAGS = %q, want %q", got["CFLAGS"], wantCFLAGS)
	}
	wantLDFLAGS := "-L" + filepath.Join(stageDir, "usr/lib")
	if got["LDFLAGS"] != wantLDFLAGS {
		t.Errorf("LDFLAGS = %q, want %q", got["LDFLAGS"], wantLDFLAGS)
	}
}

func TestDeriveOmitsAbsentDirs(t *testing.T) {
	root := t.TempDir()
	stageDir := t.TempDir()

	got := Derive(root, stageDir, "x86_64-linux-gnu", "")
	for _, key := range []string{"PATH", "CFLAGS", "LDFLAGS", "PKG_CONFIG_PATH"} {
		if _, ok := got[key]; ok {
			t.Errorf("%s present despite no matching subdir: %q", key, got[key])
		}
	}
}

func TestMergeLaterWins(t *testing.T) {
	got := Merge(
		map[string]string{"FOO": "1", "BAR": "1"},
		map[string]string{"FOO": "2"},
		map[string]string{"FOO": "3"},
	)
	want := map[string]string{"FOO": "3", "BAR": "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestAsSliceSortedDeterministic(t *testing.T) {
	got := AsSlice(map[string]string{"B": "2", "A": "1", "C": "3"})
	want := []string{"A=1", "B=2", "C=3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AsSlice() mismatch (-want +got):\n%s", diff)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}
