// Package executor orchestrates Part Handlers across a planned action list:
// it builds (and caches) one Handler per part and dispatches each Action to
// its handler in order. Grounded on craft_parts/executor/executor.py.
package executor

import (
	"context"
	"fmt"

	"github.com/partforge/partforge/internal/callback"
	"github.com/partforge/partforge/internal/collisions"
	"github.com/partforge/partforge/internal/fileset"
	"github.com/partforge/partforge/internal/handler"
	"github.com/partforge/partforge/internal/options"
	"github.com/partforge/partforge/internal/packagerepo"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/step"
	"go.uber.org/zap"
)

// Executor runs a planned action list end to end.
type Executor struct {
	Parts       []*part.Part
	WorkDir     string
	StageDir    string
	PrimeDir    string
	ArchTriplet string
	Project     options.Project

	Sources   *source.Registry
	Packages  packagerepo.Repository
	Callbacks *callback.Registry
	Manager   *state.Manager
	Store     *state.Store
	Logger    *zap.Logger

	handlers map[string]*handler.Handler
}

// New builds an Executor over parts, sharing the given collaborators.
func New(parts []*part.Part, workDir, stageDir, primeDir, archTriplet string, proj options.Project, sources *source.Registry, packages packagerepo.Repository, callbacks *callback.Registry, mgr *state.Manager, store *state.Store, logger *zap.Logger) *Executor {
	return &Executor{
		Parts: parts, WorkDir: workDir, StageDir: stageDir, PrimeDir: primeDir,
		ArchTriplet: archTriplet, Project: proj,
		Sources: sources, Packages: packages, Callbacks: callbacks,
		Manager: mgr, Store: store, Logger: logger,
		handlers: make(map[string]*handler.Handler),
	}
}

// Execute runs every action in order, dispatching each to its part's
// handler.
func (e *Executor) Execute(ctx context.Context, actions []step.Action) error {
	for _, a := range actions {
		h, err := e.handlerFor(a.PartName)
		if err != nil {
			return err
		}

		prior, err := e.priorStaged(a.PartName)
		if err != nil {
			return err
		}
		if _, err := h.Run(ctx, a, prior); err != nil {
			return fmt.Errorf("%s: %w", a, err)
		}
	}
	return nil
}

// priorStaged recomputes, for every other part in the project, the exact
// file/directory set its stage fileset currently resolves to against its
// own install directory — not merely the parts that have themselves
// already completed a STAGE action. check_for_stage_collisions in
// craft_parts/executor/collisions.py compares a newly staging part against
// the full project part list every time, so that staging a single part
// still catches a conflict against another part's built-but-unstaged
// output (spec.md §4.8).
func (e *Executor) priorStaged(excludePart string) ([]collisions.PartFiles, error) {
	out := make([]collisions.PartFiles, 0, len(e.Parts))
	for _, p := range e.Parts {
		if p.Name == excludePart {
			continue
		}
		d := p.Dirs()
		files, dirs, err := fileset.Resolve(p.Stage, d.Install)
		if err != nil {
			return nil, err
		}
		out = append(out, collisions.PartFiles{
			PartName:   p.Name,
			InstallDir: d.Install,
			Files:      files,
			Dirs:       dirs,
		})
	}
	return out, nil
}

func (e *Executor) handlerFor(name string) (*handler.Handler, error) {
	if h, ok := e.handlers[name]; ok {
		return h, nil
	}
	p, err := part.ByName(name, e.Parts)
	if err != nil {
		return nil, err
	}
	h, err := handler.New(p, e.WorkDir, e.StageDir, e.PrimeDir, e.ArchTriplet, e.Project, e.Sources, e.Packages, e.Callbacks, e.Manager, e.Store, e.Logger)
	if err != nil {
		return nil, err
	}
	e.handlers[name] = h
	return h, nil
}
