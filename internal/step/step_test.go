package step

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPreviousAndNextSteps(t *testing.T) {
	if diff := cmp.Diff([]Step{Pull, Build}, Stage.PreviousSteps()); diff != "" {
		t.Errorf("Stage.PreviousSteps() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Step{Stage, Prime}, Build.NextSteps()); diff != "" {
		t.Errorf("Build.NextSteps() mismatch (-want +got):\n%s", diff)
	}
	if len(Pull.PreviousSteps()) != 0 {
		t.Errorf("Pull.PreviousSteps() = %v, want empty", Pull.PreviousSteps())
	}
	if len(Prime.NextSteps()) != 0 {
		t.Errorf("Prime.NextSteps() = %v, want empty", Prime.NextSteps())
	}
}

func TestValidForStepUpdateOnlyPullBuild(t *testing.T) {
	for _, tt := range []struct {
		s    Step
		want bool
	}{
		{Pull, true},
		{Build, true},
		{Stage, false},
		{Prime, false},
	} {
		if got := Update.ValidForStep(tt.s); got != tt.want {
			t.Errorf("Update.ValidForStep(%s) = %v, want %v", tt.s, got, tt.want)
		}
	}
	if !Run.ValidForStep(Stage) {
		t.Error("Run.ValidForStep(Stage) = false, want true")
	}
}

func TestActionVerb(t *testing.T) {
	for _, tt := range []struct {
		a    Action
		want string
	}{
		{Action{Step: Pull, Kind: Run}, "Pull"},
		{Action{Step: Pull, Kind: Rerun}, "Repull"},
		{Action{Step: Pull, Kind: Update}, "Update sources for"},
		{Action{Step: Build, Kind: Skip}, "Skip build"},
		{Action{Step: Stage, Kind: Rerun}, "Restage"},
		{Action{Step: Prime, Kind: Run}, "Prime"},
	} {
		if got := tt.a.Verb(); got != tt.want {
			t.Errorf("%+v.Verb() = %q, want %q", tt.a, got, tt.want)
		}
	}
}

func TestDependencyPrerequisite(t *testing.T) {
	if _, ok := Pull.DependencyPrerequisite(); ok {
		t.Error("Pull.DependencyPrerequisite() should have no prerequisite")
	}
	for _, tt := range []struct {
		s    Step
		want Step
	}{
		{Build, Stage},
		{Stage, Stage},
		{Prime, Prime},
	} {
		got, ok := tt.s.DependencyPrerequisite()
		if !ok || got != tt.want {
			t.Errorf("%s.DependencyPrerequisite() = (%s, %v), want (%s, true)", tt.s, got, ok, tt.want)
		}
	}
}
