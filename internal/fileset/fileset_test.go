package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIncludesExcludes(t *testing.T) {
	f := New([]string{"bin", `\-weird`, "-usr/share/doc", "*"})

	gotIncludes := f.Includes()
	wantIncludes := []string{"bin", "-weird", "*"}
	if diff := cmp.Diff(wantIncludes, gotIncludes); diff != "" {
		t.Errorf("Includes() mismatch (-want +got):\n%s", diff)
	}

	gotExcludes := f.Excludes()
	wantExcludes := []string{"usr/share/doc"}
	if diff := cmp.Diff(wantExcludes, gotExcludes); diff != "" {
		t.Errorf("Excludes() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewDefaultsToStar(t *testing.T) {
	f := New(nil)
	if diff := cmp.Diff([]string{"*"}, f.Entries); diff != "" {
		t.Errorf("New(nil) mismatch (-want +got):\n%s", diff)
	}
}

func TestCombine(t *testing.T) {
	for _, test := range []struct {
		desc  string
		f     []string
		other []string
		want  []string
	}{
		{
			desc:  "unspecified prime merges with stage",
			f:     []string{"bin", "lib"},
			other: []string{"*"},
			want:  []string{"bin", "lib"},
		},
		{
			desc:  "exclude-only prime merges with stage",
			f:     []string{"bin", "lib"},
			other: []string{"-usr/share/doc"},
			want:  []string{"bin", "lib", "-usr/share/doc"},
		},
		{
			desc:  "explicit prime overrides stage entirely",
			f:     []string{"bin", "lib"},
			other: []string{"usr/bin/foo"},
			want:  []string{"usr/bin/foo"},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			f := New(test.f)
			f.Combine(New(test.other))
			if diff := cmp.Diff(test.want, f.Entries); diff != "" {
				t.Errorf("Combine() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	mustMkdir(t, filepath.Join(dir, "bin"))
	mustMkdir(t, filepath.Join(dir, "usr", "share", "doc"))
	mustWrite(t, filepath.Join(dir, "bin", "tool"), "x")
	mustWrite(t, filepath.Join(dir, "usr", "share", "doc", "README"), "x")
	mustWrite(t, filepath.Join(dir, "usr", "share", "doc", "COPYING"), "x")

	f := New([]string{"*", "-usr/share/doc"})
	files, dirs, err := Resolve(f, dir)
	if err != nil {
		t.Fatal(err)
	}

	if files["usr/share/doc/README"] || files["usr/share/doc/COPYING"] {
		t.Errorf("excluded directory's files leaked into result: %v", files)
	}
	if !files["bin/tool"] {
		t.Errorf("bin/tool missing from resolved files: %v", files)
	}
	if !dirs["bin"] {
		t.Errorf("bin missing from resolved dirs: %v", dirs)
	}
}

func TestResolveRejectsAbsolutePattern(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Resolve(New([]string{"/etc/passwd"}), dir); err == nil {
		t.Fatal("expected an error for an absolute fileset entry")
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
