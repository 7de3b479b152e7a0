// Package specfile loads and validates a parts.yaml document into the
// in-memory []*part.Part representation (spec.md §6.1). Grounded on
// craft_parts/schemas.py's key-set validation, rendered with gopkg.in/yaml.v3
// the way bartekus-stagecraft loads its own declarative pipeline files.
package specfile

import (
	"sort"

	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/fileset"
	"github.com/partforge/partforge/internal/part"
	"gopkg.in/yaml.v3"
)

// document is the raw top-level shape: `parts: { <name>: <part-spec> }`.
type document struct {
	Parts map[string]rawPart `yaml:"parts"`
}

type rawEnvVar map[string]string

type rawPart struct {
	Plugin string `yaml:"plugin"`

	Source         string `yaml:"source"`
	SourceType     string `yaml:"source-type"`
	SourceBranch   string `yaml:"source-branch"`
	SourceTag      string `yaml:"source-tag"`
	SourceCommit   string `yaml:"source-commit"`
	SourceDepth    int    `yaml:"source-depth"`
	SourceChecksum string `yaml:"source-checksum"`
	SourceSubdir   string `yaml:"source-subdir"`

	After []string `yaml:"after"`

	BuildPackages []string `yaml:"build-packages"`
	StagePackages []string `yaml:"stage-packages"`
	BuildSnaps    []string `yaml:"build-snaps"`
	StageSnaps    []string `yaml:"stage-snaps"`

	Stage    []string          `yaml:"stage"`
	Prime    []string          `yaml:"prime"`
	Organize map[string]string `yaml:"organize"`

	OverridePull  string `yaml:"override-pull"`
	OverrideBuild string `yaml:"override-build"`
	OverrideStage string `yaml:"override-stage"`
	OverridePrime string `yaml:"override-prime"`

	BuildEnvironment            []rawEnvVar `yaml:"build-environment"`
	BuildAttributes             []string    `yaml:"build-attributes"`
	DisableParallel             bool        `yaml:"disable-parallel"`
	DisableStagePackagesInstall bool        `yaml:"disable-stage-packages-install"`
	ParseInfo                   []string    `yaml:"parse-info"`

	// Extra captures every remaining key, which becomes the plugin's
	// PluginOptions — plugin-specific keys are validated by the plugin's
	// own schema fragment, not here (spec.md §6.4).
	Extra map[string]interface{} `yaml:",inline"`
}

// knownKeys lists every key specfile itself understands; anything else
// falls into a part's PluginOptions via the Extra inline map.
var knownKeys = map[string]bool{
	"plugin": true, "source": true, "source-type": true, "source-branch": true,
	"source-tag": true, "source-commit": true, "source-depth": true,
	"source-checksum": true, "source-subdir": true, "after": true,
	"build-packages": true, "stage-packages": true, "build-snaps": true,
	"stage-snaps": true, "stage": true, "prime": true, "organize": true,
	"override-pull": true, "override-build": true, "override-stage": true,
	"override-prime": true, "build-environment": true, "build-attributes": true,
	"disable-parallel": true, "disable-stage-packages-install": true,
	"parse-info": true,
}

// Load parses data as a parts.yaml document and returns the declared parts,
// rooted at workDir, sorted by name (not yet dependency-sorted).
func Load(data []byte, workDir string) ([]*part.Part, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.SchemaValidation("parsing parts document: %v", err)
	}

	names := make([]string, 0, len(doc.Parts))
	for name := range doc.Parts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]*part.Part, 0, len(names))
	for _, name := range names {
		if !part.ValidName(name) {
			return nil, errs.SchemaValidation("invalid part name %q", name)
		}
		raw := doc.Parts[name]

		var pluginOpts map[string]interface{}
		for k, v := range raw.Extra {
			if knownKeys[k] {
				continue
			}
			if pluginOpts == nil {
				pluginOpts = make(map[string]interface{})
			}
			pluginOpts[k] = v
		}

		var envVars []part.EnvVar
		for _, entry := range raw.BuildEnvironment {
			for k, v := range entry {
				envVars = append(envVars, part.EnvVar{Name: k, Value: v})
			}
		}

		p := &part.Part{
			Name:   name,
			Plugin: raw.Plugin,

			Source:         raw.Source,
			SourceType:     raw.SourceType,
			SourceBranch:   raw.SourceBranch,
			SourceTag:      raw.SourceTag,
			SourceCommit:   raw.SourceCommit,
			SourceDepth:    raw.SourceDepth,
			SourceChecksum: raw.SourceChecksum,
			SourceSubdir:   raw.SourceSubdir,

			After: raw.After,

			BuildPackages: raw.BuildPackages,
			StagePackages: raw.StagePackages,
			BuildSnaps:    raw.BuildSnaps,
			StageSnaps:    raw.StageSnaps,

			Stage:    fileset.New(raw.Stage),
			Prime:    fileset.New(raw.Prime),
			Organize: raw.Organize,

			OverridePull:  raw.OverridePull,
			OverrideBuild: raw.OverrideBuild,
			OverrideStage: raw.OverrideStage,
			OverridePrime: raw.OverridePrime,

			PluginOptions: pluginOpts,

			BuildEnvironment:            envVars,
			BuildAttributes:             raw.BuildAttributes,
			DisableParallel:             raw.DisableParallel,
			DisableStagePackagesInstall: raw.DisableStagePackagesInstall,
			ParseInfo:                   raw.ParseInfo,

			WorkDir: workDir,
		}
		parts = append(parts, p)
	}

	if err := part.Validate(parts); err != nil {
		return nil, err
	}
	return parts, nil
}
