// Package handler executes a single Action for one part end-to-end: the
// Part Handler of spec.md §2/§4.5. Grounded on
// craft_parts/executor/part_handler.py and craft_parts/executor/runner.py,
// wiring together the plugin, source, packagerepo, scriptlet, migrate,
// organize, collisions, env and state packages the way
// craft_parts.executor.part_handler.PartHandler composes its own
// collaborators.
package handler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/partforge/partforge/internal/callback"
	"github.com/partforge/partforge/internal/collisions"
	"github.com/partforge/partforge/internal/env"
	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/fileset"
	"github.com/partforge/partforge/internal/migrate"
	"github.com/partforge/partforge/internal/options"
	"github.com/partforge/partforge/internal/organize"
	"github.com/partforge/partforge/internal/packagerepo"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/plugin"
	"github.com/partforge/partforge/internal/scriptlet"
	"github.com/partforge/partforge/internal/source"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/step"
	"go.uber.org/zap"
)

// Handler runs PULL/BUILD/STAGE/PRIME actions for a single part.
type Handler struct {
	Part *part.Part

	WorkDir     string
	StageDir    string
	PrimeDir    string
	ArchTriplet string
	Project     options.Project

	Plugin        plugin.Plugin
	SourceHandler source.Handler // nil if the part has no `source`
	Packages      packagerepo.Repository

	Callbacks *callback.Registry
	Manager   *state.Manager
	Store     *state.Store

	Logger *zap.Logger
}

// New builds a Handler for p, constructing its plugin and, if p declares a
// source, its source handler.
func New(p *part.Part, workDir, stageDir, primeDir, archTriplet string, proj options.Project, sources *source.Registry, packages packagerepo.Repository, callbacks *callback.Registry, mgr *state.Manager, store *state.Store, logger *zap.Logger) (*Handler, error) {
	pl, err := plugin.New(p.PluginName(), plugin.Options(p.PluginOptions))
	if err != nil {
		return nil, err
	}

	var sh source.Handler
	if p.Source != "" && sources != nil {
		sh, err = sources.For(source.Spec{
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
			return nil, err
		}
	}

	return &Handler{
		Part: p, WorkDir: workDir, StageDir: stageDir, PrimeDir: primeDir,
		ArchTriplet: archTriplet, Project: proj,
		Plugin: pl, SourceHandler: sh, Packages: packages,
		Callbacks: callbacks, Manager: mgr, Store: store, Logger: logger,
	}, nil
}

// Run executes a on the handler's part, given the collision sets of the
// project's other parts resolved against their install directories (only
// consulted for STAGE), returning this part's own collision set when it
// stages.
func (h *Handler) Run(ctx context.Context, a step.Action, priorStaged []collisions.PartFiles) (*collisions.PartFiles, error) {
	if h.Logger != nil {
		h.Logger.Debug("executing action", zap.String("part", a.PartName), zap.String("step", a.Step.String()), zap.String("kind", a.Kind.String()))
	}

	if a.Kind == step.Skip {
		return nil, nil
	}

	info := callback.Info{PartName: h.Part.Name, Step: a.Step}
	if h.Callbacks != nil {
		if err := h.Callbacks.RunPre(ctx, info); err != nil {
			return nil, err
		}
	}

	if a.Kind == step.Rerun {
		if err := h.cleanOnDisk(a.Step); err != nil {
			return nil, err
		}
		if err := h.Manager.CleanPart(h.Part.Name, a.Step); err != nil {
			return nil, err
		}
	}

	var pf *collisions.PartFiles
	var err error
	switch a.Kind {
	case step.Update:
		err = h.update(ctx, a.Step)
	default: // Run, Rerun
		pf, err = h.execute(ctx, a.Step, priorStaged)
	}
	if err != nil {
		return nil, err
	}

	if h.Callbacks != nil {
		if err := h.Callbacks.RunPost(ctx, info); err != nil {
			return nil, err
		}
	}
	return pf, nil
}

func (h *Handler) dirs() part.Dirs { return h.Part.Dirs() }

// cleanOnDisk removes the on-disk artifacts for a RERUN, mirroring
// craft_parts.lifecycle_manager.clean: PULL wipes src, BUILD wipes
// build+install, STAGE/PRIME remove only the files/dirs this part
// previously migrated (read from the about-to-be-cleaned state, per
// spec.md §4.4's CleanPart ordering note).
func (h *Handler) cleanOnDisk(st step.Step) error {
	d := h.dirs()
	switch st {
	case step.Pull:
		return os.RemoveAll(d.Src)
	case step.Build:
		if err := os.RemoveAll(d.Build); err != nil {
			return err
		}
		return os.RemoveAll(d.Install)
	case step.Stage:
		return h.removeMigrated(step.Stage, h.StageDir)
	case step.Prime:
		return h.removeMigrated(step.Prime, h.PrimeDir)
	}
	return nil
}

func (h *Handler) removeMigrated(st step.Step, root string) error {
	ps, err := h.Store.Load(h.Part.Name, st)
	if err != nil || ps == nil {
		return err
	}
	for _, f := range ps.Files {
		os.Remove(filepath.Join(root, f))
	}
	dirs := fileset.SortedKeys(toSet(ps.Directories))
	for i := len(dirs) - 1; i >= 0; i-- {
		os.Remove(filepath.Join(root, dirs[i])) // no-op unless now empty
	}
	return nil
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func (h *Handler) execute(ctx context.Context, st step.Step, priorStaged []collisions.PartFiles) (*collisions.PartFiles, error) {
	switch st {
	case step.Pull:
		return nil, h.runPull(ctx)
	case step.Build:
		return nil, h.runBuild(ctx)
	case step.Stage:
		pf, err := h.runStage(ctx, priorStaged)
		return pf, err
	case step.Prime:
		return nil, h.runPrime(ctx)
	}
	return nil, errs.InternalError("unknown step %s", st)
}

func (h *Handler) update(ctx context.Context, st step.Step) error {
	switch st {
	case step.Pull:
		return h.updatePull(ctx)
	case step.Build:
		return h.updateBuild(ctx)
	default:
		return errs.InvalidAction(st.String())
	}
}

// --- PULL ---

func (h *Handler) runPull(ctx context.Context) error {
	d := h.dirs()
	if err := os.RemoveAll(d.Src); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Src, 0o755); err != nil {
		return err
	}

	assets := make(map[string]interface{})

	if h.Part.OverridePull != "" {
		if err := h.runScriptlet("override-pull", h.Part.OverridePull, d.Src, nil, assets); err != nil {
			return err
		}
	} else if h.SourceHandler != nil {
		if err := h.SourceHandler.Pull(ctx, d.Src); err != nil {
			return errs.PullError(h.Part.Name, err)
		}
	}
	if h.SourceHandler != nil {
		for k, v := range h.SourceHandler.SourceDetails() {
			assets[k] = v
		}
	}

	if len(h.Part.StagePackages) > 0 && h.Packages != nil {
		resolved, err := h.Packages.Fetch(ctx, h.Part.StagePackages, d.StagePackages)
		if err != nil {
			return err
		}
		assets["stage_packages"] = packagerepo.AssetsMap(resolved)["stage_packages"]
	}
	if len(h.Part.StageSnaps) > 0 && h.Packages != nil {
		resolved, err := h.Packages.Fetch(ctx, h.Part.StageSnaps, d.StageSnaps)
		if err != nil {
			return err
		}
		assets["stage_snaps"] = packagerepo.AssetsMap(resolved)["stage_packages"]
	}

	props, opts := state.Snapshot(h.Part, step.Pull, h.Project)
	ps := &state.PartState{Properties: props, ProjectOptions: opts, Assets: assets, Timestamp: now()}
	return h.save(step.Pull, ps)
}

func (h *Handler) updatePull(ctx context.Context) error {
	d := h.dirs()
	if h.SourceHandler == nil {
		return errs.SourceUpdateUnsupported(h.Part.SourceType)
	}
	if err := h.SourceHandler.Update(ctx, d.Src); err != nil {
		return errs.PullError(h.Part.Name, err)
	}
	ps, err := h.Store.Load(h.Part.Name, step.Pull)
	if err != nil {
		return err
	}
	if ps == nil {
		ps = &state.PartState{}
	}
	if ps.Assets == nil {
		ps.Assets = make(map[string]interface{})
	}
	for k, v := range h.SourceHandler.SourceDetails() {
		ps.Assets[k] = v
	}
	ps.Timestamp = now()
	return h.save(step.Pull, ps)
}

// --- BUILD ---

func (h *Handler) runBuild(ctx context.Context) error {
	d := h.dirs()
	if err := os.MkdirAll(d.Build, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Install, 0o755); err != nil {
		return err
	}

	if !h.Plugin.OutOfSourceBuild() {
		if err := migrate.CopyTree(d.Src, d.Build); err != nil {
			return err
		}
	}

	if !h.Part.DisableStagePackagesInstall {
		if _, err := os.Stat(d.StagePackages); err == nil {
			if err := migrate.CopyTree(d.StagePackages, d.Install); err != nil {
				return err
			}
		}
	}

	buildCwd := d.Build
	if h.Part.SourceSubdir != "" {
		buildCwd = filepath.Join(d.Build, h.Part.SourceSubdir)
	}

	buildEnv := env.Merge(
		env.Derive(d.Install, h.StageDir, h.ArchTriplet, os.Getenv("PATH")),
		h.Plugin.GetBuildEnvironment(),
		part.EnvMap(h.Part.BuildEnvironment),
	)
	buildEnv["CRAFT_PART_INSTALL"] = d.Install
	buildEnv["CRAFT_PART_BUILD"] = d.Build
	buildEnv["CRAFT_PART_SRC"] = d.Src
	buildEnv["CRAFT_STAGE"] = h.StageDir

	if h.Part.OverrideBuild != "" {
		if err := h.runScriptlet("override-build", h.Part.OverrideBuild, buildCwd, buildEnv, nil); err != nil {
			return err
		}
	} else {
		commands := h.Plugin.GetBuildCommands()
		body := "set -e; set -x;\n" + strings.Join(commands, "\n")
		if err := runShell(ctx, "build", body, buildCwd, env.AsSlice(buildEnv)); err != nil {
			return err
		}
	}

	if len(h.Part.Organize) > 0 {
		if err := organize.Apply(d.Install, h.Part.Organize, false); err != nil {
			return err
		}
	}

	props, opts := state.Snapshot(h.Part, step.Build, h.Project)
	ps := &state.PartState{Properties: props, ProjectOptions: opts, Timestamp: now()}
	return h.save(step.Build, ps)
}

func (h *Handler) updateBuild(ctx context.Context) error {
	d := h.dirs()
	buildCwd := d.Build
	if h.Part.SourceSubdir != "" {
		buildCwd = filepath.Join(d.Build, h.Part.SourceSubdir)
	}
	if !h.Plugin.OutOfSourceBuild() {
		if err := migrate.CopyTree(d.Src, d.Build); err != nil {
			return err
		}
	}

	buildEnv := env.Merge(
		env.Derive(d.Install, h.StageDir, h.ArchTriplet, os.Getenv("PATH")),
		h.Plugin.GetBuildEnvironment(),
		part.EnvMap(h.Part.BuildEnvironment),
	)
	buildEnv["CRAFT_PART_INSTALL"] = d.Install
	buildEnv["CRAFT_PART_BUILD"] = d.Build
	buildEnv["CRAFT_PART_SRC"] = d.Src
	buildEnv["CRAFT_STAGE"] = h.StageDir

	if h.Part.OverrideBuild != "" {
		if err := h.runScriptlet("override-build", h.Part.OverrideBuild, buildCwd, buildEnv, nil); err != nil {
			return err
		}
	} else {
		commands := h.Plugin.GetBuildCommands()
		body := "set -e; set -x;\n" + strings.Join(commands, "\n")
		if err := runShell(ctx, "build", body, buildCwd, env.AsSlice(buildEnv)); err != nil {
			return err
		}
	}

	ps, err := h.Store.Load(h.Part.Name, step.Build)
	if err != nil {
		return err
	}
	if ps == nil {
		ps = &state.PartState{}
	}
	ps.Timestamp = now()
	return h.save(step.Build, ps)
}

// --- STAGE ---

func (h *Handler) runStage(ctx context.Context, priorStaged []collisions.PartFiles) (*collisions.PartFiles, error) {
	d := h.dirs()

	files, dirs, err := fileset.Resolve(h.Part.Stage, d.Install)
	if err != nil {
		return nil, err
	}

	mine := collisions.PartFiles{PartName: h.Part.Name, InstallDir: d.Install, Files: files, Dirs: dirs}
	if err := collisions.Check(mine, priorStaged); err != nil {
		return nil, err
	}

	if h.Part.OverrideStage != "" {
		if err := h.runScriptlet("override-stage", h.Part.OverrideStage, d.Install, nil, nil); err != nil {
			return nil, err
		}
	} else {
		fixup := func(destPath string) error {
			return collisions.RewritePrefix(destPath, h.StageDir)
		}
		if err := migrate.Migrate(files, dirs, d.Install, h.StageDir, fixup); err != nil {
			return nil, err
		}
	}

	props, opts := state.Snapshot(h.Part, step.Stage, h.Project)
	ps := &state.PartState{
		Properties: props, ProjectOptions: opts, Timestamp: now(),
		Files: fileset.SortedKeys(files), Directories: fileset.SortedKeys(dirs),
	}
	if err := h.save(step.Stage, ps); err != nil {
		return nil, err
	}
	return &mine, nil
}

// --- PRIME ---

func (h *Handler) runPrime(ctx context.Context) error {
	d := h.dirs()

	primeSet := h.Part.Prime
	if isDefaultFileset(primeSet) {
		primeSet.Combine(h.Part.Stage)
	}

	files, dirs, err := fileset.Resolve(primeSet, d.Install)
	if err != nil {
		return err
	}

	if err := migrate.Migrate(files, dirs, h.StageDir, h.PrimeDir, nil); err != nil {
		return err
	}

	props, opts := state.Snapshot(h.Part, step.Prime, h.Project)
	ps := &state.PartState{
		Properties: props, ProjectOptions: opts, Timestamp: now(),
		Files: fileset.SortedKeys(files), Directories: fileset.SortedKeys(dirs),
	}
	return h.save(step.Prime, ps)
}

// isDefaultFileset reports whether f is unspecified ("*" or empty), the
// condition under which PRIME's fileset combines with STAGE's rather than
// overriding it (spec.md §4.5 step 1 / §4.11's Fileset.combine).
func isDefaultFileset(f fileset.Fileset) bool {
	if len(f.Entries) == 0 {
		return true
	}
	for _, e := range f.Entries {
		if e == "*" {
			return true
		}
	}
	return false
}

// --- shared helpers ---

func (h *Handler) save(st step.Step, ps *state.PartState) error {
	if err := h.Store.Save(h.Part.Name, st, ps); err != nil {
		return err
	}
	h.Manager.SetState(h.Part.Name, st, ps)
	return nil
}

// runScriptlet runs an override-* scriptlet with the control-API dispatcher
// wired to this handler's own step actions (spec.md §4.9's "scriptlet may
// call back pull/build/stage/prime").
func (h *Handler) runScriptlet(name, body, cwd string, extraEnv map[string]string, assets map[string]interface{}) error {
	dispatch := func(call scriptlet.Call) error {
		ctx := context.Background()
		switch call.Function {
		case "pull":
			if h.SourceHandler == nil {
				return errs.InternalError("scriptlet called pull but part %q has no source", h.Part.Name)
			}
			if err := h.SourceHandler.Pull(ctx, cwd); err != nil {
				return err
			}
			if assets != nil {
				for k, v := range h.SourceHandler.SourceDetails() {
					assets[k] = v
				}
			}
			return nil
		case "build":
			commands := h.Plugin.GetBuildCommands()
			return runShell(ctx, "build", strings.Join(commands, "\n"), cwd, nil)
		case "stage":
			files, dirs, err := fileset.Resolve(h.Part.Stage, cwd)
			if err != nil {
				return err
			}
			return migrate.Migrate(files, dirs, cwd, h.StageDir, nil)
		case "prime":
			files, dirs, err := fileset.Resolve(h.Part.Prime, cwd)
			if err != nil {
				return err
			}
			return migrate.Migrate(files, dirs, cwd, h.PrimeDir, nil)
		}
		return errs.InvalidControlAPICall(call.Function)
	}
	return scriptlet.Run(name, body, extraEnv, cwd, dispatch)
}

func runShell(ctx context.Context, name, body, cwd string, envSlice []string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", body)
	cmd.Dir = cwd
	if envSlice != nil {
		cmd.Env = append(os.Environ(), envSlice...)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return errs.PluginBuildError(name, exitErr.ExitCode())
		}
		return err
	}
	return nil
}

func now() time.Time { return time.Now() }
