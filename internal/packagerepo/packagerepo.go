// Package packagerepo defines the PackageRepository contract that fetches
// a part's build-packages/stage-packages into its per-part pool, and a
// minimal local-directory implementation. Per spec.md §1, concrete
// platform package managers are an external collaborator; this
// implementation exists so PULL is runnable end-to-end in tests without a
// live package manager. Grounded on distr1-distri's internal/build
// Glob1/Resolve highest-revision-wins logic, generalized from
// package-revision strings to github.com/Masterminds/semver/v3.
package packagerepo

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/partforge/partforge/internal/errs"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Resolved names one package actually fetched, with the version chosen.
type Resolved struct {
	Name    string
	Version string
	Path    string
}

// Repository fetches a set of packages into destDir.
type Repository interface {
	Fetch(ctx context.Context, names []string, destDir string) ([]Resolved, error)
}

// LocalPool resolves "<name>-<version>.pkg" files out of a directory,
// picking the highest semver version per name — the same shape as
// distr1-distri's Glob1 (pick highest package revision) generalized to
// real semantic versions.
type LocalPool struct {
	Dir string
	// Concurrency bounds how many packages are fetched (copied) at once
	// within a single PULL action; fetching a part's declared package set
	// is independent I/O per spec.md §5 and does not violate the
	// sequential-actions guarantee at the Action-list granularity.
	Concurrency int

	// ShowProgress renders a per-package progress bar to stderr while
	// copying, the CLI's feedback for a potentially large stage-packages
	// set (spec.md §6.2).
	ShowProgress bool
}

func (p *LocalPool) Fetch(ctx context.Context, names []string, destDir string) ([]Resolved, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}

	resolved := make([]Resolved, len(names))
	g, ctx := errgroup.WithContext(ctx)
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	sem := make(chan struct{}, concurrency)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			r, err := p.resolveOne(name)
			if err != nil {
				return errs.PackageFetchError(name, err)
			}
			dest := filepath.Join(destDir, filepath.Base(r.Path))
			if err := p.copyFile(r.Path, dest, name); err != nil {
				return errs.PackageFetchError(name, err)
			}
			resolved[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (p *LocalPool) resolveOne(name string) (Resolved, error) {
	pattern := filepath.Join(p.Dir, name+"-*.pkg")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return Resolved{}, err
	}
	if len(matches) == 0 {
		return Resolved{}, errs.PackageNotFound(name)
	}

	type candidate struct {
		path    string
		version *semver.Version
	}
	var candidates []candidate
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".pkg")
		versionStr := strings.TrimPrefix(base, name+"-")
		v, err := semver.NewVersion(versionStr)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: m, version: v})
	}
	if len(candidates) == 0 {
		return Resolved{}, errs.PackageNotFound(name)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].version.LessThan(candidates[j].version) })
	best := candidates[len(candidates)-1]
	return Resolved{Name: name, Version: best.version.String(), Path: best.path}, nil
}

func (p *LocalPool) copyFile(src, dst, label string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	var w io.Writer = out
	if p.ShowProgress {
		bar := progressbar.DefaultBytes(fi.Size(), "fetching "+label)
		defer bar.Finish()
		w = io.MultiWriter(out, bar)
	}

	_, err = io.Copy(w, in)
	return err
}

// AssetsMap renders resolved packages into the map[string]any stored in
// PartState.Assets for PULL (spec.md §3).
func AssetsMap(resolved []Resolved) map[string]interface{} {
	versions := make(map[string]interface{}, len(resolved))
	for _, r := range resolved {
		versions[r.Name] = r.Version
	}
	return map[string]interface{}{"stage_packages": versions}
}

func (r Resolved) String() string { return fmt.Sprintf("%s-%s", r.Name, r.Version) }
