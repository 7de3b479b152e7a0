package state

import (
	"fmt"

	"github.com/partforge/partforge/internal/options"
	"github.com/partforge/partforge/internal/part"
	"github.com/partforge/partforge/internal/step"
)

// properties lists, per spec.md §3's table, the part property keys relevant
// to each step's dirty/outdated comparison.
var properties = map[step.Step][]string{
	step.Pull: {
		"override-pull", "parse-info", "plugin", "source", "source-commit",
		"source-depth", "source-tag", "source-type", "source-branch",
		"source-subdir", "stage-packages",
	},
	step.Build: {
		"after", "build-attributes", "build-environment", "build-packages",
		"disable-parallel", "disable-stage-packages-install", "organize",
		"override-build",
	},
	step.Stage: {"filesets", "override-stage", "stage"},
	step.Prime: {"override-prime", "prime"},
}

// projectOptionKeys lists, per spec.md §3, which project options matter to
// each step.
var projectOptionKeys = map[step.Step][]string{
	step.Pull:  {"target_arch"},
	step.Build: {"target_arch"},
	step.Stage: nil,
	step.Prime: nil,
}

// PropertyKeys returns the property keys snapshotted for st.
func PropertyKeys(st step.Step) []string { return properties[st] }

// Snapshot renders the current value of p's step-relevant properties and
// the current project options into comparable maps, used both to populate a
// freshly-written PartState and to compare against a previously persisted
// one in dirty_report.
func Snapshot(p *part.Part, st step.Step, proj options.Project) (props map[string]interface{}, opts map[string]interface{}) {
	props = make(map[string]interface{})
	for _, key := range properties[st] {
		switch key {
		case "override-pull":
			props[key] = p.OverridePull
		case "parse-info":
			props[key] = p.ParseInfo
		case "plugin":
			props[key] = p.PluginName()
		case "source":
			props[key] = p.Source
		case "source-commit":
			props[key] = p.SourceCommit
		case "source-depth":
			props[key] = p.SourceDepth
		case "source-tag":
			props[key] = p.SourceTag
		case "source-type":
			props[key] = p.SourceType
		case "source-branch":
			props[key] = p.SourceBranch
		case "source-subdir":
			props[key] = p.SourceSubdir
		case "stage-packages":
			props[key] = p.StagePackages
		case "after":
			props[key] = p.After
		case "build-attributes":
			props[key] = p.BuildAttributes
		case "build-environment":
			props[key] = p.BuildEnvironment
		case "build-packages":
			props[key] = p.BuildPackages
		case "disable-parallel":
			props[key] = p.DisableParallel
		case "disable-stage-packages-install":
			props[key] = p.DisableStagePackagesInstall
		case "organize":
			props[key] = p.Organize
		case "override-build":
			props[key] = p.OverrideBuild
		case "filesets":
			props[key] = p.Stage.Entries
		case "override-stage":
			props[key] = p.OverrideStage
		case "stage":
			props[key] = p.Stage.Entries
		case "override-prime":
			props[key] = p.OverridePrime
		case "prime":
			props[key] = p.Prime.Entries
		}
	}
	opts = proj.Map(projectOptionKeys[st])
	return props, opts
}

// DiffKeys returns the keys present in either map whose values differ,
// sorted for deterministic reason strings.
func DiffKeys(old, current map[string]interface{}) []string {
	var changed []string
	seen := make(map[string]bool)
	check := func(k string) {
		if seen[k] {
			return
		}
		seen[k] = true
		ov, ook := old[k]
		cv, cok := current[k]
		if ook != cok || fmtEqual(ov, cv) == false {
			changed = append(changed, k)
		}
	}
	for k := range old {
		check(k)
	}
	for k := range current {
		check(k)
	}
	return changed
}

func fmtEqual(a, b interface{}) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}
