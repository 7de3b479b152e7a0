package plugin

import "fmt"

// MakeOptions are the make-plugin-specific options accepted under a part's
// plugin-specific keys (spec.md §6.4).
type MakeOptions struct {
	MakeParameters []string
	MakeTargets    []string
}

// MakePlugin drives `make` (and `make install`). GetBuildEnvironment
// contributes no variables, and no parallel-job flag is passed to make.
type MakePlugin struct {
	opts MakeOptions
}

// NewMakePlugin validates and extracts make's plugin-specific options from
// the generic Options map (spec.md §6.4 properties_class.unmarshal).
func NewMakePlugin(raw Options) (*MakePlugin, error) {
	var opts MakeOptions
	if v, ok := raw["make-parameters"]; ok {
		params, ok := toStringSlice(v)
		if !ok {
			return nil, fmt.Errorf("make-parameters must be a list of strings")
		}
		opts.MakeParameters = params
	}
	if v, ok := raw["make-targets"]; ok {
		targets, ok := toStringSlice(v)
		if !ok {
			return nil, fmt.Errorf("make-targets must be a list of strings")
		}
		opts.MakeTargets = targets
	}
	return &MakePlugin{opts: opts}, nil
}

func (p *MakePlugin) GetBuildSnaps() []string     { return nil }
func (p *MakePlugin) GetBuildPackages() []string   { return []string{"make", "gcc", "libc-dev"} }

func (p *MakePlugin) GetBuildEnvironment() map[string]string { return nil }

func (p *MakePlugin) GetBuildCommands() []string {
	targets := p.opts.MakeTargets
	if len(targets) == 0 {
		targets = []string{""}
	}
	cmds := make([]string, 0, len(targets)+1)
	for _, t := range targets {
		cmd := "make"
		for _, param := range p.opts.MakeParameters {
			cmd += " " + param
		}
		if t != "" {
			cmd += " " + t
		}
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, fmt.Sprintf(`make install DESTDIR="${CRAFT_PART_INSTALL}" PREFIX=/usr`))
	return cmds
}

func (p *MakePlugin) OutOfSourceBuild() bool { return false }

func toStringSlice(v interface{}) ([]string, bool) {
	list, ok := v.([]interface{})
	if !ok {
		if strs, ok := v.([]string); ok {
			return strs, true
		}
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
