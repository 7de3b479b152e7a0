// Package collisions implements stage-time collision detection between
// parts' migratable file sets (spec.md §4.8). Grounded on
// craft_parts/executor/collisions.py.
package collisions

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/partforge/partforge/internal/errs"
)

// PartFiles is one part's resolved migratable files/dirs, rooted at its
// install directory, for collision comparison against parts staged earlier.
type PartFiles struct {
	PartName string
	InstallDir string
	Files    map[string]bool
	Dirs     map[string]bool
}

// Check compares newPart's files/dirs against every part in priorParts,
// returning a PartConflictError naming both parts and the offending files
// on the first conflict found. No migration should occur until this
// returns nil for every part in the stage plan.
func Check(newPart PartFiles, priorParts []PartFiles) error {
	for _, prior := range priorParts {
		var conflicts []string
		for path := range newPart.Files {
			if !prior.Files[path] {
				continue
			}
			collide, err := filesCollide(
				filepath.Join(newPart.InstallDir, path),
				filepath.Join(prior.InstallDir, path),
			)
			if err != nil {
				return err
			}
			if collide {
				conflicts = append(conflicts, path)
			}
		}
		for path := range newPart.Dirs {
			if prior.Files[path] {
				conflicts = append(conflicts, path) // one is a dir, one a file
			}
		}
		for path := range newPart.Files {
			if prior.Dirs[path] {
				conflicts = append(conflicts, path)
			}
		}
		if len(conflicts) > 0 {
			return errs.PartConflictError(newPart.PartName, prior.PartName, conflicts)
		}
	}
	return nil
}

// filesCollide implements the four collision rules from spec.md §4.8 for a
// single path present in both parts' file sets.
func filesCollide(a, b string) (bool, error) {
	fiA, errA := os.Lstat(a)
	fiB, errB := os.Lstat(b)
	if errA != nil || errB != nil {
		return false, nil // one doesn't exist (yet); nothing to compare
	}

	aSym := fiA.Mode()&os.ModeSymlink != 0
	bSym := fiB.Mode()&os.ModeSymlink != 0

	if aSym && bSym {
		ta, err := os.Readlink(a)
		if err != nil {
			return false, err
		}
		tb, err := os.Readlink(b)
		if err != nil {
			return false, err
		}
		return ta != tb, nil
	}
	if aSym != bSym {
		return true, nil
	}

	aDir := fiA.IsDir()
	bDir := fiB.IsDir()
	if aDir != bDir {
		return true, nil
	}
	if aDir && bDir {
		return false, nil
	}

	// Both regular files: compare contents, ignoring `prefix=` lines for
	// *.pc files — a known quirk (order-sensitive, no normalisation) kept
	// exactly as the original implements it (spec.md §9).
	contentA, err := os.ReadFile(a)
	if err != nil {
		return false, err
	}
	contentB, err := os.ReadFile(b)
	if err != nil {
		return false, err
	}
	if strings.HasSuffix(a, ".pc") {
		return !pkgConfigEqual(contentA, contentB), nil
	}
	return string(contentA) != string(contentB), nil
}

// pkgConfigEqual drops every line beginning with "prefix=" from each .pc
// file's contents, then compares the remaining lines in order.
func pkgConfigEqual(a, b []byte) bool {
	la := strings.Split(string(a), "\n")
	lb := strings.Split(string(b), "\n")
	fa := filterPrefixLines(la)
	fb := filterPrefixLines(lb)
	if len(fa) != len(fb) {
		return false
	}
	for i := range fa {
		if fa[i] != fb[i] {
			return false
		}
	}
	return true
}

func filterPrefixLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.HasPrefix(l, "prefix=") {
			continue
		}
		out = append(out, l)
	}
	return out
}

// RewritePrefix rewrites the hard-coded install prefix in a .pc file's
// `prefix=` line to point at newPrefix (the stage directory), applied as a
// migration Fixup (spec.md §4.5 step 4).
func RewritePrefix(path, newPrefix string) error {
	if !strings.HasSuffix(path, ".pc") {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	changed := false
	for i, l := range lines {
		if strings.HasPrefix(l, "prefix=") {
			lines[i] = "prefix=" + newPrefix
			changed = true
		}
	}
	if !changed {
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), fi.Mode().Perm())
}
