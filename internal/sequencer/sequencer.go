// Package sequencer implements the dependency-ordered action planner:
// given a target step and optional part filter, it produces the exact
// sequence of actions (RUN, RERUN, SKIP, UPDATE) needed to reach the
// target. Grounded on craft_parts/sequencer.py.
package sequencer

import (
	"fmt"

	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/step"
)

// Sequencer obtains a list of actions from the parts specification.
type Sequencer struct {
	allParts []*part.Part
	sm       *state.Manager

	actions      []step.Action
	preferUpdate bool
}

// New sorts parts into a stable dependency order and wires up the state
// manager used to plan.
func New(parts []*part.Part, sm *state.Manager) (*Sequencer, error) {
	sorted, err := part.Sort(parts)
	if err != nil {
		return nil, err
	}
	return &Sequencer{allParts: sorted, sm: sm}, nil
}

// Plan determines the list of actions to execute for target across
// partNames (all parts, if empty/nil). preferUpdate implements the CLI's
// --update flag: an explicitly-requested PULL/BUILD step that would
// otherwise always RERUN instead gets UPDATE when the step allows it.
func (s *Sequencer) Plan(target step.Step, partNames []string, preferUpdate bool) ([]step.Action, error) {
	if len(partNames) > 0 {
		for _, n := range partNames {
			if _, err := part.ByName(n, s.allParts); err != nil {
				return nil, err
			}
		}
	}
	s.actions = nil
	s.preferUpdate = preferUpdate
	if err := s.addAllActions(target, partNames, ""); err != nil {
		return nil, err
	}
	return s.actions, nil
}

func (s *Sequencer) selectedParts(partNames []string) []*part.Part {
	if len(partNames) == 0 {
		return s.allParts
	}
	set := make(map[string]bool, len(partNames))
	for _, n := range partNames {
		set[n] = true
	}
	var out []*part.Part
	for _, p := range s.allParts {
		if set[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

func (s *Sequencer) addAllActions(target step.Step, partNames []string, reason string) error {
	selected := s.selectedParts(partNames)
	for _, current := range append(target.PreviousSteps(), target) {
		for _, p := range selected {
			if err := s.addStepActions(current, target, p, partNames, reason); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sequencer) addStepActions(current, target step.Step, p *part.Part, partNames []string, reason string) error {
	if !s.sm.HasRun(p.Name, current) {
		return s.runStep(p, current, reason)
	}

	// 1. Explicitly requested (p, S): rerun, unless --update asked for the
	// cheaper UPDATE and this step allows it (PULL/BUILD only).
	if len(partNames) > 0 && current == target && contains(partNames, p.Name) {
		if s.preferUpdate && step.Update.ValidForStep(current) {
			return s.updateStep(p, current, "requested step")
		}
		return s.rerunStep(p, current, "requested step")
	}

	// 2. Dirty: rerun with the dirty report's summary as the reason.
	dr, err := s.sm.DirtyReport(p.Name, current)
	if err != nil {
		return err
	}
	if dr != nil {
		return s.rerunStep(p, current, dr.Summary())
	}

	// 3. Outdated: UPDATE for PULL/BUILD, RERUN for STAGE/PRIME.
	or, err := s.sm.OutdatedReport(p.Name, current)
	if err != nil {
		return err
	}
	if or != nil {
		if current == step.Pull || current == step.Build {
			return s.updateStep(p, current, or.Summary())
		}
		return s.rerunStep(p, current, or.Summary())
	}

	// 4. Otherwise, skip.
	s.addAction(p, current, step.Skip, "already ran")
	return nil
}

// prepareStep recursively plans the prerequisite step of each dependency
// that still needs to run, breadth-first over the dependency subgraph; the
// has-run/not-dirty checks in addStepActions naturally deduplicate repeat
// visits within one Plan call.
func (s *Sequencer) prepareStep(p *part.Part, st step.Step) error {
	prereq, ok := st.DependencyPrerequisite()
	if !ok {
		return nil
	}
	deps, err := part.Dependencies(p.Name, s.allParts, false)
	if err != nil {
		return err
	}
	var need []string
	for _, d := range deps {
		should, err := s.sm.ShouldRun(d.Name, prereq)
		if err != nil {
			return err
		}
		if should {
			need = append(need, d.Name)
		}
	}
	for _, depName := range need {
		reason := fmt.Sprintf("required to %s %s", st.Verb(), p.Name)
		if err := s.addAllActions(prereq, []string{depName}, reason); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) runStep(p *part.Part, st step.Step, reason string) error {
	if err := s.prepareStep(p, st); err != nil {
		return err
	}
	s.addAction(p, st, step.Run, reason)
	s.markPlanned(p, st)
	return nil
}

func (s *Sequencer) rerunStep(p *part.Part, st step.Step, reason string) error {
	// Planning only previews a rerun; it must not delete the real persisted
	// state before the executor has actually redone the work (--plan-only
	// would otherwise destroy state it never rebuilt).
	s.sm.CleanPartEphemeral(p.Name, st)
	if err := s.prepareStep(p, st); err != nil {
		return err
	}
	s.addAction(p, st, step.Rerun, reason)
	s.markPlanned(p, st)
	return nil
}

func (s *Sequencer) updateStep(p *part.Part, st step.Step, reason string) error {
	if !step.Update.ValidForStep(st) {
		return errs.InvalidAction(st.String())
	}
	if err := s.prepareStep(p, st); err != nil {
		return err
	}
	s.addAction(p, st, step.Update, reason)
	s.markPlanned(p, st)
	return nil
}

// markPlanned records an ephemeral placeholder state for (p, st) using its
// current property snapshot, so that replanning without an intervening
// execution (e.g. a second --plan-only call) doesn't see every property as
// having changed relative to an empty placeholder. The executor overwrites
// this with the step's real recorded state once it actually runs.
func (s *Sequencer) markPlanned(p *part.Part, st step.Step) {
	props, opts := state.Snapshot(p, st, s.sm.Project)
	s.sm.SetState(p.Name, st, &state.PartState{Properties: props, ProjectOptions: opts})
}

func (s *Sequencer) addAction(p *part.Part, st step.Step, kind step.ActionKind, reason string) {
	s.actions = append(s.actions, step.Action{PartName: p.Name, Step: st, Kind: kind, Reason: reason})
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
