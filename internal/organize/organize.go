// Package organize implements the post-build `organize` remapping of files
// within a part's install directory. Grounded on
// craft_parts/executor/organize.py.
package organize

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/migrate"
)

// Apply applies the organize mapping (src pattern -> dst) inside installDir.
// Non-glob entries are applied before glob entries (spec.md §4.7).
func Apply(installDir string, mapping map[string]string, overwrite bool) error {
	type entry struct {
		src, dst string
		isGlob   bool
	}
	var entries []entry
	for src, dst := range mapping {
		entries = append(entries, entry{src: src, dst: dst, isGlob: strings.ContainsAny(src, "*?[")})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isGlob != entries[j].isGlob {
			return !entries[i].isGlob // non-glob first
		}
		return entries[i].src < entries[j].src
	})

	for _, e := range entries {
		if err := applyOne(installDir, e.src, e.dst, e.isGlob, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(installDir, srcPattern, dst string, isGlob, overwrite bool) error {
	matches, err := expandRecursive(installDir, srcPattern, isGlob)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return errs.FileOrganizeError("no matches for %q", srcPattern)
	}

	dstIsDir := strings.HasSuffix(dst, "/")
	if !dstIsDir && len(matches) > 1 {
		return errs.FileOrganizeError("multiple sources %v match non-directory destination %q", matches, dst)
	}

	for _, m := range matches {
		srcPath := filepath.Join(installDir, m)
		var dstPath string
		if dstIsDir {
			dstPath = filepath.Join(installDir, dst, filepath.Base(m))
		} else {
			dstPath = filepath.Join(installDir, dst)
		}

		if _, err := os.Lstat(dstPath); err == nil && !overwrite {
			return errs.FileOrganizeError("destination %q already exists", dstPath)
		}

		fi, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			return err
		}

		if fi.IsDir() && fi.Mode()&os.ModeSymlink == 0 && !isGlob {
			// Non-glob directory pattern: link-or-copy the subtree, then
			// remove the source, matching spec.md §4.7's "when src is a
			// directory and pattern is non-glob" clause.
			if err := migrate.CopyTree(srcPath, dstPath); err != nil {
				return err
			}
			if err := os.RemoveAll(srcPath); err != nil {
				return err
			}
			continue
		}

		if overwrite {
			os.Remove(dstPath)
		}
		if err := os.Rename(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// expandRecursive expands srcPattern under installDir: a glob pattern is
// expanded with filepath.Glob; a literal pattern that exists is returned
// as-is, and a directory it names is later moved as a whole subtree.
func expandRecursive(installDir, pattern string, isGlob bool) ([]string, error) {
	if isGlob {
		matches, err := filepath.Glob(filepath.Join(installDir, pattern))
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			rel, err := filepath.Rel(installDir, m)
			if err != nil {
				continue
			}
			out = append(out, rel)
		}
		return out, nil
	}
	if _, err := os.Lstat(filepath.Join(installDir, pattern)); err != nil {
		return nil, nil
	}
	return []string{pattern}, nil
}
