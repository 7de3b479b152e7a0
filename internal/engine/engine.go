// Package engine is partforge's top-level façade: it loads a parts
// specification, wires the Sequencer, State Manager and Executor together
// behind a small Plan/Run/Clean API, matching the shape of
// craft_parts/lifecycle_manager.py's LifecycleManager.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/partforge/partforge/internal/callback"
	"github.com/partforge/partforge/internal/config"
	"github.com/partforge/partforge/internal/executor"
	"github.com/partforge/partforge/internal/packagerepo"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/sequencer"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/specfile"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/step"
	"go.uber.org/zap"
)

// Engine is a single lifecycle run over one loaded parts specification.
type Engine struct {
	Parts     []*part.Part
	Config    *config.Config
	Callbacks *callback.Registry
	Sources   *source.Registry
	Packages  packagerepo.Repository
	Logger    *zap.Logger

	stageDir string
	primeDir string

	store     *state.Store
	manager   *state.Manager
	sequencer *sequencer.Sequencer
	executor  *executor.Executor
}

// New loads partsFile under cfg.WorkDir and wires up the Manager, Sequencer
// and Executor. callbacks/sources/packages may be nil to use sensible
// defaults (an empty callback registry, the built-in source registry, and a
// package repository pointed at <work_dir>/packages).
func New(cfg *config.Config, callbacks *callback.Registry, sources *source.Registry, packages packagerepo.Repository, logger *zap.Logger) (*Engine, error) {
	data, err := os.ReadFile(cfg.PartsFile)
	if err != nil {
		return nil, err
	}
	parts, err := specfile.Load(data, cfg.WorkDir)
	if err != nil {
		return nil, err
	}

	if callbacks == nil {
		callbacks = callback.NewRegistry()
	}
	if sources == nil {
		sources = source.NewRegistry()
	}
	if packages == nil {
		packages = &packagerepo.LocalPool{Dir: filepath.Join(cfg.WorkDir, "packages")}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proj := cfg.Project()
	stageDir := filepath.Join(cfg.WorkDir, "stage")
	primeDir := filepath.Join(cfg.WorkDir, "prime")

	store := &state.Store{WorkDir: cfg.WorkDir}
	checker := &sourceChecker{parts: parts, sources: sources}
	mgr, err := state.NewManager(store, parts, proj, checker)
	if err != nil {
		return nil, err
	}

	seq, err := sequencer.New(parts, mgr)
	if err != nil {
		return nil, err
	}

	exec := executor.New(parts, cfg.WorkDir, stageDir, primeDir, cfg.ArchTriplet(), proj, sources, packages, callbacks, mgr, store, logger)

	return &Engine{
		Parts: parts, Config: cfg, Callbacks: callbacks, Sources: sources,
		Packages: packages, Logger: logger,
		stageDir: stageDir, primeDir: primeDir,
		store: store, manager: mgr, sequencer: seq, executor: exec,
	}, nil
}

// Plan returns the action list to reach target for partNames (all parts if
// empty), without executing anything. preferUpdate mirrors the CLI's
// --update flag (spec.md §6.2).
func (e *Engine) Plan(target step.Step, partNames []string, preferUpdate bool) ([]step.Action, error) {
	return e.sequencer.Plan(target, partNames, preferUpdate)
}

// Run plans and executes in one call, the common case for the CLI's
// pull/build/stage/prime commands.
func (e *Engine) Run(ctx context.Context, target step.Step, partNames []string, preferUpdate bool) ([]step.Action, error) {
	actions, err := e.Plan(target, partNames, preferUpdate)
	if err != nil {
		return nil, err
	}
	if err := e.executor.Execute(ctx, actions); err != nil {
		return actions, err
	}
	return actions, nil
}

// Clean removes the persisted state and on-disk artifacts for partNames
// (all parts if empty) from target onward, the `partforge clean` command.
func (e *Engine) Clean(target step.Step, partNames []string) error {
	names := partNames
	if len(names) == 0 {
		for _, p := range e.Parts {
			names = append(names, p.Name)
		}
	}
	for _, name := range names {
		p, err := part.ByName(name, e.Parts)
		if err != nil {
			return err
		}
		// cleanArtifacts must read the pre-clean STAGE/PRIME state before
		// CleanPart removes it (state.Manager.CleanPart's contract).
		if err := e.cleanArtifacts(p, target); err != nil {
			return err
		}
		if err := e.manager.CleanPart(name, target); err != nil {
			return err
		}
	}
	return nil
}

// cleanArtifacts removes on-disk artifacts for p from target onward. PULL
// and BUILD own a private per-part directory and can be wiped outright;
// STAGE and PRIME share one directory across every part, so only the files
// and directories this part actually migrated there are removed (the same
// logic as handler.removeMigrated).
func (e *Engine) cleanArtifacts(p *part.Part, target step.Step) error {
	d := p.Dirs()
	for _, st := range append([]step.Step{target}, target.NextSteps()...) {
		switch st {
		case step.Pull:
			if err := os.RemoveAll(d.Src); err != nil {
				return err
			}
		case step.Build:
			if err := os.RemoveAll(d.Build); err != nil {
				return err
			}
			if err := os.RemoveAll(d.Install); err != nil {
				return err
			}
		case step.Stage:
			if err := e.removeMigrated(p.Name, step.Stage, e.stageDir); err != nil {
				return err
			}
		case step.Prime:
			if err := e.removeMigrated(p.Name, step.Prime, e.primeDir); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeMigrated deletes the files and (now-empty) directories that
// partName's persisted st state recorded as migrated into root.
func (e *Engine) removeMigrated(partName string, st step.Step, root string) error {
	ps, err := e.store.Load(partName, st)
	if err != nil || ps == nil {
		return err
	}
	for _, f := range ps.Files {
		os.Remove(filepath.Join(root, f))
	}
	dirs := append([]string(nil), ps.Directories...)
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		os.Remove(filepath.Join(root, d)) // no-op unless now empty
	}
	return nil
}

// sourceChecker adapts the source Registry into state.SourceChecker,
// resolving each part's Handler lazily (spec.md §9's outdated_report
// resolution for PULL).
type sourceChecker struct {
	parts   []*part.Part
	sources *source.Registry
}

func (c *sourceChecker) Check(partName string, assets map[string]interface{}) (bool, error) {
	p, err := part.ByName(partName, c.parts)
	if err != nil {
		return false, err
	}
	if p.Source == "" {
		return false, nil
	}
	h, err := c.sources.For(source.Spec{
		Source:   p.Source,
		Type:     p.SourceType,
		Branch:   p.SourceBranch,
		Tag:      p.SourceTag,
		Commit:   p.SourceCommit,
		Depth:    p.SourceDepth,
		Checksum: p.SourceChecksum,
		Subdir:   p.SourceSubdir,
	})
	if err != nil {
		return false, err
	}
	return h.Check(context.Background(), p.Dirs().Src, assets)
}
