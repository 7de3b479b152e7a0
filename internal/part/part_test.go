package part

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestByNameUsesValueEquality(t *testing.T) {
	parts := []*Part{{Name: "foo"}, {Name: "bar"}}
	got, err := ByName("foo", parts)
	if err != nil {
		t.Fatal(err)
	}
	if got != parts[0] {
		t.Errorf("ByName returned a different pointer than the original slice entry")
	}

	// A freshly-built Part sharing the same name string must also match —
	// regression guard for the original's `is`-based identity comparison
	// (spec.md §9).
	other := &Part{Name: string([]byte{'f', 'o', 'o'})}
	if got2, err := ByName(other.Name, parts); err != nil || got2.Name != "foo" {
		t.Errorf("ByName did not match an equal-but-distinct name string: %v, %v", got2, err)
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("missing", []*Part{{Name: "foo"}}); err == nil {
		t.Fatal("expected an error for an unknown part name")
	}
}

func TestEnvMapLaterWins(t *testing.T) {
	got := EnvMap([]EnvVar{{Name: "FOO", Value: "1"}, {Name: "FOO", Value: "2"}, {Name: "BAR", Value: "3"}})
	want := map[string]string{"FOO": "2", "BAR": "3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EnvMap() mismatch (-want +got):\n%s", diff)
	}
}

func TestSortOrdersDependenciesFirst(t *testing.T) {
	parts := []*Part{
		{Name: "app", After: []string{"lib"}},
		{Name: "lib", After: []string{"base"}},
		{Name: "base"},
	}
	sorted, err := Sort(parts)
	if err != nil {
		t.Fatal(err)
	}
	pos := make(map[string]int, len(sorted))
	for i, p := range sorted {
		pos[p.Name] = i
	}
	if pos["base"] > pos["lib"] || pos["lib"] > pos["app"] {
		t.Errorf("Sort() did not order dependencies before dependents: %v", names(sorted))
	}
}

func TestSortDetectsCycle(t *testing.T) {
	parts := []*Part{
		{Name: "a", After: []string{"b"}},
		{Name: "b", After: []string{"a"}},
	}
	if _, err := Sort(parts); err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestValidateRejectsUnknownDependency(t *testing.T) {
	parts := []*Part{{Name: "app", After: []string{"missing"}}}
	if err := Validate(parts); err == nil {
		t.Fatal("expected an error for a dependency on an undeclared part")
	}
}

func TestValidateRejectsReservedName(t *testing.T) {
	parts := []*Part{{Name: "plugins"}}
	if err := Validate(parts); err == nil {
		t.Fatal("expected an error for the reserved part name \"plugins\"")
	}
}

func TestDependenciesRecursive(t *testing.T) {
	parts := []*Part{
		{Name: "app", After: []string{"lib"}},
		{Name: "lib", After: []string{"base"}},
		{Name: "base"},
	}
	deps, err := Dependencies("app", parts, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Fatalf("Dependencies(recursive) = %v, want 2 entries", names(deps))
	}
}

func names(parts []*Part) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.Name
	}
	return out
}
