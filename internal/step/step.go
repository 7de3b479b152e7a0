// Package step defines the lifecycle step enumeration and the ordering
// rules the rest of partforge builds on.
package step

import "fmt"

// Step is one of the four phases a part traverses, in a closed total order.
type Step int

const (
	Pull Step = iota
	Build
	Stage
	Prime
)

// All lists every step in lifecycle order.
var All = []Step{Pull, Build, Stage, Prime}

func (s Step) String() string {
	switch s {
	case Pull:
		return "pull"
	case Build:
		return "build"
	case Stage:
		return "stage"
	case Prime:
		return "prime"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Verb returns the imperative verb used in sequencer reasons ("required to
// build bar").
func (s Step) Verb() string {
	switch s {
	case Pull:
		return "pull"
	case Build:
		return "build"
	case Stage:
		return "stage"
	case Prime:
		return "prime"
	default:
		return s.String()
	}
}

// PreviousSteps returns the steps strictly before s, in lifecycle order.
func (s Step) PreviousSteps() []Step {
	out := make([]Step, 0, int(s))
	for _, c := range All {
		if c < s {
			out = append(out, c)
		}
	}
	return out
}

// NextSteps returns the steps strictly after s, in lifecycle order.
func (s Step) NextSteps() []Step {
	out := make([]Step, 0, len(All)-int(s)-1)
	for _, c := range All {
		if c > s {
			out = append(out, c)
		}
	}
	return out
}

// Previous returns the step immediately before s, or (_, false) if s is Pull.
func (s Step) Previous() (Step, bool) {
	if s == Pull {
		return 0, false
	}
	return s - 1, true
}

// DependencyPrerequisite returns the step of a part's dependency that must
// have run before step s of the depending part can run.
//
//	prereq(PULL)  = none
//	prereq(BUILD) = STAGE
//	prereq(STAGE) = STAGE
//	prereq(PRIME) = PRIME
//
// v2 plugins don't need their dependencies staged just to be pulled, which is
// why PULL has no prerequisite: a part builds against its dependencies'
// staged outputs and primes alongside them.
func (s Step) DependencyPrerequisite() (Step, bool) {
	switch s {
	case Pull:
		return 0, false
	case Build:
		return Stage, true
	case Stage:
		return Stage, true
	case Prime:
		return Prime, true
	default:
		return 0, false
	}
}

// ActionKind is the kind of operation an Action represents.
type ActionKind int

const (
	Run ActionKind = iota
	Rerun
	Skip
	Update
)

func (k ActionKind) String() string {
	switch k {
	case Run:
		return "Run"
	case Rerun:
		return "Rerun"
	case Skip:
		return "Skip"
	case Update:
		return "Update"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// ValidForStep reports whether this action kind may legally target step s.
// UPDATE is only valid for PULL and BUILD.
func (k ActionKind) ValidForStep(s Step) bool {
	if k != Update {
		return true
	}
	return s == Pull || s == Build
}

// Action is an immutable planned operation, produced by the sequencer and
// consumed by the executor.
type Action struct {
	PartName string
	Step     Step
	Kind     ActionKind
	Reason   string
}

func (a Action) String() string {
	if a.Reason == "" {
		return fmt.Sprintf("%s:%s(%s)", a.PartName, a.Step, a.Kind)
	}
	return fmt.Sprintf("%s:%s(%s) [%s]", a.PartName, a.Step, a.Kind, a.Reason)
}

// Verb returns the plan-only display verb from spec.md §6.2, e.g. "Rebuild",
// "Skip stage".
func (a Action) Verb() string {
	switch a.Step {
	case Pull:
		switch a.Kind {
		case Run:
			return "Pull"
		case Rerun:
			return "Repull"
		case Update:
			return "Update sources for"
		case Skip:
			return "Skip pull"
		}
	case Build:
		switch a.Kind {
		case Run:
			return "Build"
		case Rerun:
			return "Rebuild"
		case Update:
			return "Update build for"
		case Skip:
			return "Skip build"
		}
	case Stage:
		switch a.Kind {
		case Run:
			return "Stage"
		case Rerun:
			return "Restage"
		case Skip:
			return "Skip stage"
		}
	case Prime:
		switch a.Kind {
		case Run:
			return "Prime"
		case Rerun:
			return "Re-prime"
		case Skip:
			return "Skip prime"
		}
	}
	return fmt.Sprintf("%s %s", a.Kind, a.Step)
}
