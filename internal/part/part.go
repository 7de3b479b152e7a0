// Package part models a declared software part and the ordering rules
// among a set of parts. Grounded on craft_parts/parts.py, generalized onto
// a gonum dependency graph the way distr1-distri's internal/batch orders a
// package build graph.
package part

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/fileset"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

var nameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9+-]*$`)

// ValidName reports whether name is a legal, non-reserved part name.
func ValidName(name string) bool {
	return name != "plugins" && nameRE.MatchString(name)
}

// Part is a single declared unit of source, build and filesets.
type Part struct {
	Name   string
	Plugin string // defaults to Name if empty

	Source         string
	SourceType     string
	SourceBranch   string
	SourceTag      string
	SourceCommit   string
	SourceDepth    int
	SourceChecksum string
	SourceSubdir   string

	After []string

	BuildPackages []string
	StagePackages []string
	BuildSnaps    []string
	StageSnaps    []string

	Stage    fileset.Fileset
	Prime    fileset.Fileset
	Organize map[string]string

	OverridePull  string
	OverrideBuild string
	OverrideStage string
	OverridePrime string

	// BuildEnvironment is the user's declared `build-environment` list,
	// applied as the top (highest-priority) layer over the default part
	// environment and the plugin's own GetBuildEnvironment() (spec.md
	// §4.5 step 3). Kept as an ordered list, not a map, since craft-parts
	// represents it as a YAML list of single-key mappings and a later
	// duplicate key must win over an earlier one.
	BuildEnvironment []EnvVar

	// DisableStagePackagesInstall skips unpacking stage-packages into
	// part/install during BUILD (spec.md §4.5 step 2, "unless disabled").
	DisableStagePackagesInstall bool

	// PluginOptions carries plugin-specific keys verbatim, validated by the
	// plugin's own schema fragment (spec.md §6.4).
	PluginOptions map[string]interface{}

	// BuildAttributes and DisableParallel affect the BUILD property
	// snapshot (spec.md §3).
	BuildAttributes []string
	DisableParallel bool

	// ParseInfo affects the PULL property snapshot.
	ParseInfo []string

	// WorkDir is the root all derived directories are computed under.
	WorkDir string
}

// EnvVar is one "NAME: value" entry of a build-environment list.
type EnvVar struct {
	Name  string
	Value string
}

// EnvMap flattens an ordered EnvVar list into a map, later entries with the
// same name overriding earlier ones.
func EnvMap(vars []EnvVar) map[string]string {
	out := make(map[string]string, len(vars))
	for _, v := range vars {
		out[v.Name] = v.Value
	}
	return out
}

// PluginName returns the part's plugin, defaulting to its own name.
func (p *Part) PluginName() string {
	if p.Plugin != "" {
		return p.Plugin
	}
	return p.Name
}

// Dirs holds the derived directories for one part (spec.md §3).
type Dirs struct {
	Root          string
	Src           string
	Build         string
	Install       string
	State         string
	Run           string
	StagePackages string
	StageSnaps    string
}

// Dirs computes the derived directories for this part under WorkDir.
func (p *Part) Dirs() Dirs {
	root := filepath.Join(p.WorkDir, "parts", p.Name)
	return Dirs{
		Root:          root,
		Src:           filepath.Join(root, "src"),
		Build:         filepath.Join(root, "build"),
		Install:       filepath.Join(root, "install"),
		State:         filepath.Join(root, "state"),
		Run:           filepath.Join(root, "run"),
		StagePackages: filepath.Join(root, "stage_packages"),
		StageSnaps:    filepath.Join(root, "stage_snaps"),
	}
}

// ByName returns the part named name from parts, using value equality.
//
// The original Python implementation (craft_parts/parts.py) compared names
// with `is` rather than `==`, a latent identity-equality bug noted in
// spec.md §9's open questions. This rewrite uses value equality throughout,
// as instructed, and TestByNameUsesValueEquality guards the regression.
func ByName(name string, parts []*Part) (*Part, error) {
	for _, p := range parts {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, errs.InvalidPartName(name)
}

// Dependencies returns the set of parts that partName depends on (its
// `after` list), optionally expanded transitively.
func Dependencies(partName string, parts []*Part, recursive bool) ([]*Part, error) {
	p, err := ByName(partName, parts)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []*Part
	var walk func(names []string) error
	walk = func(names []string) error {
		for _, n := range names {
			if seen[n] {
				continue
			}
			seen[n] = true
			dep, err := ByName(n, parts)
			if err != nil {
				return err
			}
			out = append(out, dep)
			if recursive {
				if err := walk(dep.After); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(p.After); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// node adapts a *Part onto a gonum graph.Node.
type node struct {
	id int64
	p  *Part
}

func (n *node) ID() int64 { return n.id }

// Sort returns parts in a deterministic topological order: repeatedly pick a
// part that no remaining part depends on, tie-breaking by name descending,
// matching craft_parts.parts.sort_parts exactly. A gonum DirectedGraph is
// built first purely to assert acyclicity (topo.Sort) up front with a clear
// error, the way distr1-distri's internal/batch builds a graph.simple graph
// over its package dependency set before building.
func Sort(parts []*Part) ([]*Part, error) {
	if err := checkAcyclic(parts); err != nil {
		return nil, err
	}

	all := make([]*Part, len(parts))
	copy(all, parts)
	sort.Slice(all, func(i, j int) bool { return all[i].Name > all[j].Name })

	var sorted []*Part
	for len(all) > 0 {
		var top *Part
		topIdx := -1
		for i, p := range all {
			mentioned := false
			for _, other := range all {
				for _, a := range other.After {
					if a == p.Name {
						mentioned = true
						break
					}
				}
				if mentioned {
					break
				}
			}
			if !mentioned {
				top = p
				topIdx = i
				break
			}
		}
		if top == nil {
			return nil, errs.PartDependencyCycle()
		}
		sorted = append([]*Part{top}, sorted...)
		all = append(all[:topIdx], all[topIdx+1:]...)
	}
	return sorted, nil
}

func checkAcyclic(parts []*Part) error {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(parts))
	nodes := make(map[string]*node, len(parts))
	for i, p := range parts {
		n := &node{id: int64(i), p: p}
		ids[p.Name] = n.id
		nodes[p.Name] = n
		g.AddNode(n)
	}
	for _, p := range parts {
		for _, dep := range p.After {
			depID, ok := ids[dep]
			if !ok {
				return errs.InvalidPartName(dep)
			}
			g.SetEdge(g.NewEdge(nodes[p.Name], simpleNodeFor(g, depID)))
		}
	}
	if _, err := topo.Sort(g); err != nil {
		return errs.PartDependencyCycle()
	}
	return nil
}

func simpleNodeFor(g *simple.DirectedGraph, id int64) *node {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	return n.(*node)
}

// Validate checks the structural invariants from spec.md §3/§6.1: unique,
// well-formed names and an acyclic `after` graph.
func Validate(parts []*Part) error {
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		if !ValidName(p.Name) {
			return errs.SchemaValidation("invalid part name %q", p.Name)
		}
		if seen[p.Name] {
			return errs.SchemaValidation("duplicate part name %q", p.Name)
		}
		seen[p.Name] = true
	}
	for _, p := range parts {
		for _, dep := range p.After {
			if !seen[dep] {
				return errs.SchemaValidation("part %q declares unknown dependency %q", p.Name, dep)
			}
		}
	}
	_, err := Sort(parts)
	return err
}

func (p *Part) String() string { return fmt.Sprintf("Part(%s)", p.Name) }
