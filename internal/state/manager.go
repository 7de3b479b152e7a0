package state

import (
	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/options"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/step"
)

// ephemeral is an in-memory overlay of per-(part,step) state, used to track
// "ran during this planning/execution pass" without touching disk.
type ephemeral struct {
	byPart map[string]map[step.Step]*PartState
}

func newEphemeral() *ephemeral {
	return &ephemeral{byPart: make(map[string]map[step.Step]*PartState)}
}

func (e *ephemeral) set(partName string, st step.Step, ps *PartState) {
	if ps == nil {
		e.remove(partName, st)
		return
	}
	if e.byPart[partName] == nil {
		e.byPart[partName] = make(map[step.Step]*PartState)
	}
	e.byPart[partName][st] = ps
}

func (e *ephemeral) remove(partName string, st step.Step) {
	delete(e.byPart[partName], st)
}

func (e *ephemeral) get(partName string, st step.Step) (*PartState, bool) {
	m, ok := e.byPart[partName]
	if !ok {
		return nil, false
	}
	ps, ok := m[st]
	return ps, ok
}

// SourceChecker abstracts SourceHandler.Check (spec.md §6.5), used to decide
// outdated_report for PULL per spec.md §9's resolved open question.
type SourceChecker interface {
	Check(partName string, assets map[string]interface{}) (changed bool, err error)
}

// Manager keeps track of parts execution state: a persistent view loaded
// from disk plus an ephemeral view updated during planning and after each
// successful execution. Grounded on craft_parts/state_manager/manager.py.
type Manager struct {
	Store   *Store
	Parts   []*part.Part
	Project options.Project
	Checker SourceChecker

	eph *ephemeral
}

// NewManager loads persisted state for every part/step into the manager's
// views.
func NewManager(store *Store, parts []*part.Part, proj options.Project, checker SourceChecker) (*Manager, error) {
	m := &Manager{Store: store, Parts: parts, Project: proj, Checker: checker, eph: newEphemeral()}
	for _, p := range parts {
		for _, st := range step.All {
			ps, err := store.Load(p.Name, st)
			if err != nil {
				return nil, err
			}
			if ps != nil {
				m.eph.set(p.Name, st, ps)
			}
		}
	}
	return m, nil
}

// SetState records a newly-produced state for (partName, st) in the
// ephemeral view (and, via the caller, on disk).
func (m *Manager) SetState(partName string, st step.Step, ps *PartState) {
	m.eph.set(partName, st, ps)
}

// HasRun reports whether (partName, st) has a recorded state.
func (m *Manager) HasRun(partName string, st step.Step) bool {
	_, ok := m.eph.get(partName, st)
	return ok
}

// ShouldRun implements should_step_run: true if the step hasn't run, is
// dirty, is outdated, or any earlier step of the part should run.
func (m *Manager) ShouldRun(partName string, st step.Step) (bool, error) {
	if !m.HasRun(partName, st) {
		return true, nil
	}
	dr, err := m.DirtyReport(partName, st)
	if err != nil {
		return false, err
	}
	if dr != nil {
		return true, nil
	}
	or, err := m.OutdatedReport(partName, st)
	if err != nil {
		return false, err
	}
	if or != nil {
		return true, nil
	}
	if prev, ok := st.Previous(); ok {
		return m.ShouldRun(partName, prev)
	}
	return false, nil
}

// CleanPart removes the persisted and ephemeral state for st and every step
// after it, for partName. It does not touch on-disk artifacts — that is the
// executor/handler's job (spec.md §4.4), which must read the pre-clean
// STAGE/PRIME state (Files/Directories) before calling CleanPart.
//
// Only the executor/handler, at actual execution time, should call this:
// it deletes the real persisted state file. Planning-time callers that
// merely preview a rerun must use CleanPartEphemeral instead, or a
// --plan-only run would destroy real state for work it never redid.
func (m *Manager) CleanPart(partName string, st step.Step) error {
	steps := append([]step.Step{st}, st.NextSteps()...)
	for _, s := range steps {
		if err := m.Store.Remove(partName, s); err != nil {
			return err
		}
		m.eph.remove(partName, s)
	}
	return nil
}

// CleanPartEphemeral clears st and every step after it from the in-memory
// view only, leaving persisted state on disk untouched. This is what
// planning uses to represent "this step will be rerun": craft_parts'
// sequencer makes the same clean_part call against its in-memory
// _EphemeralState and never touches disk during planning; the real clean
// happens once the executor actually reruns the step.
func (m *Manager) CleanPartEphemeral(partName string, st step.Step) {
	for _, s := range append([]step.Step{st}, st.NextSteps()...) {
		m.eph.remove(partName, s)
	}
}

// DirtyReport implements dirty_report: null for PULL by design (v2 plugins
// don't repull on dependency changes); otherwise property dirtiness,
// project-option dirtiness, and dependency dirtiness.
func (m *Manager) DirtyReport(partName string, st step.Step) (*DirtyReport, error) {
	if st == step.Pull {
		return nil, nil
	}

	this, ok := m.eph.get(partName, st)
	if !ok {
		return nil, errs.InternalError("%s:%s should already have been run", partName, st)
	}

	p, err := part.ByName(partName, m.Parts)
	if err != nil {
		return nil, err
	}

	currentProps, currentOpts := Snapshot(p, st, m.Project)
	dirtyProps := DiffKeys(this.Properties, currentProps)
	dirtyOpts := DiffKeys(this.ProjectOptions, currentOpts)

	prereqStep, hasPrereq := st.DependencyPrerequisite()
	var changedDeps []Dependency
	if hasPrereq {
		deps, err := part.Dependencies(partName, m.Parts, true)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			prereqState, ok := m.eph.get(dep.Name, prereqStep)
			var depChanged bool
			if ok {
				depChanged = this.Timestamp.Before(prereqState.Timestamp)
			} else {
				depChanged = true
			}
			shouldRun, err := m.ShouldRun(dep.Name, prereqStep)
			if err != nil {
				return nil, err
			}
			if depChanged || shouldRun {
				changedDeps = append(changedDeps, Dependency{PartName: dep.Name, Step: prereqStep})
			}
		}
	}

	if len(dirtyProps) == 0 && len(dirtyOpts) == 0 && len(changedDeps) == 0 {
		return nil, nil
	}
	return &DirtyReport{
		DirtyProperties:     dirtyProps,
		DirtyProjectOptions: dirtyOpts,
		ChangedDependencies: changedDeps,
	}, nil
}

// OutdatedReport implements outdated_report: non-nil if an earlier step has
// a newer timestamp, or (for PULL) the source tree changed on disk since
// PULL — resolved via SourceChecker per spec.md §9's open question.
func (m *Manager) OutdatedReport(partName string, st step.Step) (*OutdatedReport, error) {
	this, ok := m.eph.get(partName, st)
	if !ok {
		return nil, nil
	}

	if prev, hasPrev := st.Previous(); hasPrev {
		prevState, ok := m.eph.get(partName, prev)
		if ok && prevState.Timestamp.After(this.Timestamp) {
			return &OutdatedReport{PreviousStepChanged: true}, nil
		}
	}

	if st == step.Pull && m.Checker != nil {
		changed, err := m.Checker.Check(partName, this.Assets)
		if err != nil {
			return nil, err
		}
		if changed {
			return &OutdatedReport{SourceChanged: true}, nil
		}
	}

	return nil, nil
}
