// Package fileset resolves include/exclude glob patterns against a tree
// into concrete file/directory sets, and implements Fileset.combine.
// Grounded on craft_parts/filesets.py.
package fileset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/partforge/partforge/internal/errs"
)

// Fileset is an ordered list of include/exclude patterns. Entries prefixed
// with "-" are excludes; "\" escapes a literal leading "-"; a bare "*" is an
// implicit include. An empty Fileset behaves as ["*"].
type Fileset struct {
	Entries []string
}

// New constructs a Fileset, defaulting empty entries to ["*"].
func New(entries []string) Fileset {
	if len(entries) == 0 {
		return Fileset{Entries: []string{"*"}}
	}
	return Fileset{Entries: append([]string(nil), entries...)}
}

// Includes returns the include entries (leading "\" stripped).
func (f Fileset) Includes() []string {
	var out []string
	for _, e := range f.Entries {
		if strings.HasPrefix(e, "-") {
			continue
		}
		out = append(out, strings.TrimPrefix(e, `\`))
	}
	return out
}

// Excludes returns the exclude entries (leading "-" stripped).
func (f Fileset) Excludes() []string {
	var out []string
	for _, e := range f.Entries {
		if strings.HasPrefix(e, "-") {
			out = append(out, strings.TrimPrefix(e, "-"))
		}
	}
	return out
}

// remove deletes the first occurrence of item from f's entries.
func (f *Fileset) remove(item string) {
	for i, e := range f.Entries {
		if e == item {
			f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
			return
		}
	}
}

// Combine merges other into f, following craft_parts.filesets.Fileset.combine:
// if other contains a bare "*", or consists solely of excludes, f becomes
// the union of both (the stage fileset "merges" into an unspecified prime
// fileset); otherwise f is replaced by a copy of other (an explicit prime
// fileset overrides the stage fileset entirely).
//
// Contradictions between f's excludes and other's includes are, as in the
// original, silently ignored — this is a preserved open question
// (spec.md §9/§4.11), not a bug to fix.
func (f *Fileset) Combine(other Fileset) {
	toCombine := false

	otherCopy := New(other.Entries)
	for _, e := range otherCopy.Entries {
		if e == "*" {
			toCombine = true
			otherCopy.remove("*")
			break
		}
	}

	allExcludes := len(otherCopy.Entries) > 0
	for _, e := range otherCopy.Entries {
		if !strings.HasPrefix(e, "-") {
			allExcludes = false
			break
		}
	}
	if allExcludes {
		toCombine = true
	}

	if toCombine {
		seen := make(map[string]bool)
		var merged []string
		for _, e := range append(append([]string(nil), f.Entries...), otherCopy.Entries...) {
			if !seen[e] {
				seen[e] = true
				merged = append(merged, e)
			}
		}
		f.Entries = merged
	} else {
		f.Entries = append([]string(nil), otherCopy.Entries...)
	}
}

// Resolve returns the files and directories under srcdir selected by f,
// following spec.md §4.11:
//  1. partition into includes/excludes
//  2. expand globs under srcdir; walk matched directories recursively
//  3. subtract excluded files, and any file under an excluded directory
//  4. separate dirs from files, add resolved parent dirs of surviving files
//  5. resolve all paths through symlinks relative to srcdir
func Resolve(f Fileset, srcdir string) (files map[string]bool, dirs map[string]bool, err error) {
	includes := f.Includes()
	excludes := f.Excludes()

	for _, e := range append(append([]string{}, includes...), excludes...) {
		if filepath.IsAbs(e) {
			return nil, nil, errs.FilesetError("absolute path not allowed: %q", e)
		}
	}

	includeSet, err := expand(srcdir, includes)
	if err != nil {
		return nil, nil, err
	}
	excludeFiles, excludeDirs, err := expand(srcdir, excludes)
	if err != nil {
		return nil, nil, err
	}

	selected := make(map[string]bool, len(includeSet))
	for p := range includeSet {
		if excludeFiles[p] {
			continue
		}
		excludedByDir := false
		for d := range excludeDirs {
			if strings.HasPrefix(p, d+"/") {
				excludedByDir = true
				break
			}
		}
		if !excludedByDir {
			selected[p] = true
		}
	}

	dirs = make(map[string]bool)
	files = make(map[string]bool)
	for p := range selected {
		full := filepath.Join(srcdir, p)
		fi, statErr := os.Lstat(full)
		if statErr == nil && fi.IsDir() && fi.Mode()&os.ModeSymlink == 0 {
			dirs[p] = true
		} else {
			files[p] = true
		}
	}

	for p := range files {
		resolved := resolvedRelative(p, srcdir)
		dirname := filepath.Dir(resolved)
		for dirname != "." && dirname != "/" && dirname != "" {
			dirs[dirname] = true
			dirname = filepath.Dir(dirname)
		}
	}

	resolvedDirs := make(map[string]bool, len(dirs))
	for d := range dirs {
		resolvedDirs[resolvedRelative(d, srcdir)] = true
	}
	resolvedFiles := make(map[string]bool, len(files))
	for fl := range files {
		resolvedFiles[resolvedRelative(fl, srcdir)] = true
	}

	return resolvedFiles, resolvedDirs, nil
}

// expand walks each include/exclude pattern: glob entries are expanded
// under srcdir, non-glob entries become literal paths, and every matched
// directory is walked recursively so a sibling exclude ("*/*.so") can reach
// under an include ("lib").
func expand(srcdir string, patterns []string) (files map[string]bool, dirs map[string]bool, err error) {
	files = make(map[string]bool)
	dirs = make(map[string]bool)

	for _, pattern := range patterns {
		var matches []string
		if strings.ContainsAny(pattern, "*?[") {
			matched, globErr := filepath.Glob(filepath.Join(srcdir, pattern))
			if globErr != nil {
				return nil, nil, globErr
			}
			matches = matched
		} else {
			matches = []string{filepath.Join(srcdir, pattern)}
		}

		for _, m := range matches {
			rel, relErr := filepath.Rel(srcdir, m)
			if relErr != nil {
				continue
			}
			fi, statErr := os.Lstat(m)
			if statErr != nil {
				continue // pattern matched nothing real yet; fine for excludes/prime
			}
			if fi.IsDir() && fi.Mode()&os.ModeSymlink == 0 {
				dirs[rel] = true
				walkErr := filepath.Walk(m, func(p string, info os.FileInfo, werr error) error {
					if werr != nil {
						return werr
					}
					if p == m {
						return nil
					}
					r, rerr := filepath.Rel(srcdir, p)
					if rerr != nil {
						return nil
					}
					if info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
						dirs[r] = true
					} else {
						files[r] = true
					}
					return nil
				})
				if walkErr != nil {
					return nil, nil, walkErr
				}
			} else {
				files[rel] = true
			}
		}
	}
	return files, dirs, nil
}

// resolvedRelative resolves path (relative to srcdir) through symlinks,
// falling back to the original relative path if resolution fails (e.g. the
// target doesn't exist yet, which is normal for exclude-only entries).
func resolvedRelative(relPath, srcdir string) string {
	full := filepath.Join(srcdir, relPath)
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return filepath.Clean(relPath)
	}
	rel, err := filepath.Rel(srcdir, resolved)
	if err != nil {
		return filepath.Clean(relPath)
	}
	return filepath.Clean(rel)
}

// SortedKeys returns the keys of a string set in sorted order, used
// wherever migration order must be deterministic (spec.md §4.10).
func SortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
