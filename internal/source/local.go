package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/partforge/partforge/internal/migrate"
)

// Local copies a local directory tree into the part's source directory.
type Local struct {
	spec Spec
}

func NewLocal(spec Spec) *Local { return &Local{spec: spec} }

func (l *Local) Pull(ctx context.Context, destDir string) error {
	src := l.spec.Source
	if l.spec.Subdir != "" {
		src = filepath.Join(src, l.spec.Subdir)
	}
	if err := migrate.CopyTree(src, destDir); err != nil {
		return err
	}
	// A marker file records the pull, written atomically so a crash
	// mid-copy never looks like a completed pull (google/renameio, as
	// distr1-distri's internal/install uses for its own metadata).
	return renameio.WriteFile(filepath.Join(destDir, ".partforge-pulled"), []byte(src), 0o644)
}

func (l *Local) Check(ctx context.Context, destDir string, assets map[string]interface{}) (bool, error) {
	src := l.spec.Source
	fi, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	want, _ := assets["source_mtime"].(string)
	got := fi.ModTime().String()
	return want != got, nil
}

func (l *Local) Update(ctx context.Context, destDir string) error {
	return l.Pull(ctx, destDir)
}

func (l *Local) SourceDetails() map[string]interface{} {
	fi, err := os.Stat(l.spec.Source)
	details := map[string]interface{}{"source": l.spec.Source}
	if err == nil {
		details["source_mtime"] = fi.ModTime().String()
	}
	return details
}
