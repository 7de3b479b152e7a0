// Package migrate implements file migration between part trees
// (install -> stage -> prime) with collision-free hard-link-or-copy
// semantics. Grounded on craft_parts/executor/step_handler.py's file
// migration helpers and distr1-distri's internal/install copyFile/link
// handling.
package migrate

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/partforge/partforge/internal/errs"
)

// Fixup is invoked once per migrated file, with its final destination path
// (e.g. for pkg-config prefix rewriting in STAGE, spec.md §4.5).
type Fixup func(destPath string) error

// Migrate copies/links files and dirs from srcdir to destdir, following
// spec.md §4.10:
//  1. create each directory (sorted) mirroring source mode
//  2. pre-scan files for destdir conflicts, abort on any
//  3. hard-link (falling back to copy) each file, sorted; leave existing
//     symlinks alone, otherwise remove-then-place
//  4. call fixup on each migrated file's destination path
func Migrate(files, dirs map[string]bool, srcdir, destdir string, fixup Fixup) error {
	sortedDirs := sortedKeys(dirs)
	for _, d := range sortedDirs {
		srcPath := filepath.Join(srcdir, d)
		destPath := filepath.Join(destdir, d)
		fi, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(destPath, fi.Mode().Perm()); err != nil {
			return err
		}
	}

	sortedFiles := sortedKeys(files)
	var conflicts []string
	for _, f := range sortedFiles {
		destPath := filepath.Join(destdir, f)
		if fi, err := os.Lstat(destPath); err == nil {
			// A pre-existing symlink at the destination is not a conflict;
			// it is left untouched as the fast-path in step 3 below.
			if fi.Mode()&os.ModeSymlink == 0 {
				conflicts = append(conflicts, f)
			}
		}
	}
	if len(conflicts) > 0 {
		return errs.StageFilesConflictError(conflicts)
	}

	for _, f := range sortedFiles {
		srcPath := filepath.Join(srcdir, f)
		destPath := filepath.Join(destdir, f)

		if fi, err := os.Lstat(destPath); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			// Leave pre-existing symlinks alone.
		} else {
			if err == nil {
				if err := os.Remove(destPath); err != nil {
					return err
				}
			}
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return err
			}
			if err := linkOrCopy(srcPath, destPath); err != nil {
				return err
			}
		}

		if fixup != nil {
			if err := fixup(destPath); err != nil {
				return err
			}
		}
	}

	return nil
}

// linkOrCopy attempts link(2) first, falling back to a full copy across
// filesystem boundaries; symlinks are recreated, never dereferenced.
func linkOrCopy(src, dst string) error {
	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	return copyFile(src, dst, fi.Mode().Perm())
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyTree link-or-copies an entire directory subtree from src to dst,
// preserving symlinks, used by organize's non-glob directory case.
func CopyTree(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dst, rel)
		if info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
			return os.MkdirAll(destPath, info.Mode().Perm())
		}
		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return err
		}
		return linkOrCopy(p, destPath)
	})
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
