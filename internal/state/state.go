// Package state implements per-(part,step) persisted state records, the
// on-disk store, and the change-detection reports (dirty/outdated) that
// drive re-execution decisions. Grounded on craft_parts/state_manager and
// the donor's PartState-equivalent timestamp/property tracking.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/partforge/partforge/internal/step"
	"gopkg.in/yaml.v3"
)

// PartState is the persisted record for one (part, step).
type PartState struct {
	// Timestamp is the mtime of the state file at load time, monotone
	// within one lifecycle run (spec.md §3 invariants). It is derived, not
	// stored in the YAML body (spec.md §6.3).
	Timestamp time.Time `yaml:"-"`

	Properties     map[string]interface{} `yaml:"properties"`
	ProjectOptions map[string]interface{} `yaml:"project_options"`

	// Files/Directories are populated for STAGE/PRIME only: the exact set
	// migrated by that step.
	Files       []string `yaml:"files,omitempty"`
	Directories []string `yaml:"directories,omitempty"`

	// Assets holds step-specific data, e.g. PULL's resolved package
	// versions.
	Assets map[string]interface{} `yaml:"assets,omitempty"`
}

// Equal reports whether two states are semantically identical, ignoring
// Timestamp.
func Equal(a, b *PartState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return mapsEqual(a.Properties, b.Properties) &&
		mapsEqual(a.ProjectOptions, b.ProjectOptions) &&
		stringsEqual(a.Files, b.Files) &&
		stringsEqual(a.Directories, b.Directories) &&
		mapsEqual(a.Assets, b.Assets)
}

func mapsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || fmt.Sprint(v) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Store persists and loads PartState records under
// <work_dir>/parts/<name>/state/<step>.yaml (spec.md §6.3).
type Store struct {
	WorkDir string
}

func (s *Store) path(partName string, st step.Step) string {
	return filepath.Join(s.WorkDir, "parts", partName, "state", st.String()+".yaml")
}

// Load reads the persisted state for (partName, st), or (nil, nil) if none
// exists.
func (s *Store) Load(partName string, st step.Step) (*PartState, error) {
	p := s.path(partName, st)
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var ps PartState
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", p, err)
	}
	ps.Timestamp = fi.ModTime()
	return &ps, nil
}

// Save atomically writes ps as the persisted state for (partName, st),
// using google/renameio the way distr1-distri's internal/install does for
// its own metadata files, so a crash mid-write never leaves a torn state
// file that would violate the "state is written only after a step's
// on-disk effects are complete" invariant (spec.md §7).
func (s *Store) Save(partName string, st step.Step, ps *PartState) error {
	dir := filepath.Join(s.WorkDir, "parts", partName, "state")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(ps)
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.path(partName, st), data, 0o644)
}

// Remove deletes the persisted state for (partName, st), if any.
func (s *Store) Remove(partName string, st step.Step) error {
	err := os.Remove(s.path(partName, st))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dependency names a (part, step) pair whose change made a dependent step
// dirty, matching craft_parts.state_manager.dependencies.Dependency.
type Dependency struct {
	PartName string
	Step     step.Step
}

// DirtyReport explains why a step needs to be cleaned and rerun.
type DirtyReport struct {
	DirtyProperties     []string
	DirtyProjectOptions []string
	ChangedDependencies []Dependency
}

// Summary concatenates the reasons, matching the style of
// spec.md scenario 5: "'source' property changed".
func (r *DirtyReport) Summary() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, p := range r.DirtyProperties {
		parts = append(parts, fmt.Sprintf("'%s' property changed", p))
	}
	for _, o := range r.DirtyProjectOptions {
		parts = append(parts, fmt.Sprintf("'%s' option changed", o))
	}
	for _, d := range r.ChangedDependencies {
		parts = append(parts, fmt.Sprintf("dependency %q:%s changed", d.PartName, d.Step))
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "; "
		}
		out += p
	}
	return out
}

// OutdatedReport explains why a step needs to be updated/remigrated without
// being fully cleaned.
type OutdatedReport struct {
	PreviousStepChanged bool
	SourceChanged        bool
}

func (r *OutdatedReport) Summary() string {
	if r == nil {
		return ""
	}
	if r.SourceChanged {
		return "source tree changed on disk"
	}
	if r.PreviousStepChanged {
		return "earlier step ran more recently"
	}
	return "outdated"
}
