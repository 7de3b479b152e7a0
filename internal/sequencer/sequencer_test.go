package sequencer

import (
	"testing"

	"github.com/partforge/partforge/internal/options"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/state"
	"github.com/partforge/partforge/internal/step"
)

func newManager(t *testing.T, parts []*part.Part) *state.Manager {
	t.Helper()
	store := &state.Store{WorkDir: t.TempDir()}
	mgr, err := state.NewManager(store, parts, options.Project{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return mgr
}

func TestPlanFreshRunRunsEveryStepInOrder(t *testing.T) {
	parts := []*part.Part{{Name: "foo"}}
	seq, err := New(parts, newManager(t, parts))
	if err != nil {
		t.Fatal(err)
	}

	actions, err := seq.Plan(step.Prime, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 4 {
		t.Fatalf("Plan() on a fresh part = %v, want 4 RUN actions", actions)
	}
	for i, want := range step.All {
		if actions[i].Step != want || actions[i].Kind != step.Run {
			t.Errorf("actions[%d] = %s, want Run at %s", i, actions[i], want)
		}
	}
}

func TestPlanPullsDependencyBeforeDependent(t *testing.T) {
	parts := []*part.Part{
		{Name: "app", After: []string{"lib"}},
		{Name: "lib"},
	}
	seq, err := New(parts, newManager(t, parts))
	if err != nil {
		t.Fatal(err)
	}

	actions, err := seq.Plan(step.Build, []string{"app"}, false)
	if err != nil {
		t.Fatal(err)
	}

	libStaged := -1
	appBuilt := -1
	for i, a := range actions {
		if a.PartName == "lib" && a.Step == step.Stage {
			libStaged = i
		}
		if a.PartName == "app" && a.Step == step.Build {
			appBuilt = i
		}
	}
	if libStaged == -1 || appBuilt == -1 || libStaged > appBuilt {
		t.Fatalf("lib must be staged before app builds: %v", actions)
	}
}

func TestPlanSecondRunSkipsUnchangedParts(t *testing.T) {
	parts := []*part.Part{{Name: "foo"}}
	mgr := newManager(t, parts)
	seq, err := New(parts, mgr)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := seq.Plan(step.Prime, nil, false); err != nil {
		t.Fatal(err)
	}

	actions, err := seq.Plan(step.Prime, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range actions {
		if a.Kind != step.Skip {
			t.Errorf("second Plan() over an unchanged part = %s, want Skip", a)
		}
	}
}

func TestPlanRequestedPartAlwaysReruns(t *testing.T) {
	parts := []*part.Part{{Name: "foo"}}
	mgr := newManager(t, parts)
	seq, err := New(parts, mgr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seq.Plan(step.Prime, nil, false); err != nil {
		t.Fatal(err)
	}

	actions, err := seq.Plan(step.Build, []string{"foo"}, false)
	if err != nil {
		t.Fatal(err)
	}
	var sawRerun bool
	for _, a := range actions {
		if a.PartName == "foo" && a.Step == step.Build {
			if a.Kind != step.Rerun {
				t.Errorf("explicitly requested build = %s, want Rerun", a)
			}
			sawRerun = true
		}
	}
	if !sawRerun {
		t.Fatalf("expected a build action for foo: %v", actions)
	}
}

func TestPlanPreferUpdateRequestsUpdateInsteadOfRerun(t *testing.T) {
	parts := []*part.Part{{Name: "foo"}}
	mgr := newManager(t, parts)
	seq, err := New(parts, mgr)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seq.Plan(step.Prime, nil, false); err != nil {
		t.Fatal(err)
	}

	actions, err := seq.Plan(step.Build, []string{"foo"}, true)
	if err != nil {
		t.Fatal(err)
	}
	var sawUpdate bool
	for _, a := range actions {
		if a.PartName == "foo" && a.Step == step.Build {
			if a.Kind != step.Update {
				t.Errorf("requested build with --update = %s, want Update", a)
			}
			sawUpdate = true
		}
	}
	if !sawUpdate {
		t.Fatalf("expected a build action for foo: %v", actions)
	}

	// --update has no effect on STAGE/PRIME, where UPDATE is invalid.
	actions, err = seq.Plan(step.Stage, []string{"foo"}, true)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range actions {
		if a.PartName == "foo" && a.Step == step.Stage && a.Kind != step.Rerun {
			t.Errorf("requested stage with --update = %s, want Rerun (Update invalid on Stage)", a)
		}
	}
}

func TestPlanRejectsUnknownPartName(t *testing.T) {
	parts := []*part.Part{{Name: "foo"}}
	seq, err := New(parts, newManager(t, parts))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := seq.Plan(step.Prime, []string{"missing"}, false); err == nil {
		t.Fatal("expected an error for an unknown part name")
	}
}
