// Package plugin defines the plugin contract (spec.md §6.4) and a registry
// of built-in plugins. Grounded on craft_parts/plugins/plugin_v2.py and
// craft_parts/plugins/dump_plugin.py, generalizing distr1-distri's
// one-file-per-backend dispatch (buildc.go, buildcmake.go, buildmeson.go)
// into an explicit registry.
package plugin

import (
	"sync"

	"github.com/partforge/partforge/internal/errs"
)

// Options carries a plugin's validated, plugin-specific part options
// (spec.md §6.4's properties_class.unmarshal).
type Options map[string]interface{}

// Plugin is the contract every build backend implements.
type Plugin interface {
	// GetBuildSnaps returns snap names required on the build host.
	GetBuildSnaps() []string
	// GetBuildPackages returns package names required on the build host.
	GetBuildPackages() []string
	// GetBuildEnvironment returns environment variables this plugin
	// contributes, layered over the default part environment (spec.md §4.5/§4.6).
	GetBuildEnvironment() map[string]string
	// GetBuildCommands returns the shell commands (joined with newlines)
	// that build and install the part, run with `set -e; set -x;` already
	// prefixed by the caller.
	GetBuildCommands() []string
	// OutOfSourceBuild reports whether this plugin builds into a directory
	// separate from its source tree (skipping the src->build hard-link/copy
	// step, spec.md §4.5).
	OutOfSourceBuild() bool
}

// registry is the process-wide, read-only-during-a-run plugin registry
// (spec.md §5's "process-wide mutable state").
var registry = struct {
	sync.Mutex
	ctors map[string]func(Options) (Plugin, error)
}{ctors: make(map[string]func(Options) (Plugin, error))}

// Register adds a plugin constructor under name. Registering a name that is
// already present replaces its constructor without error; duplicates are not
// rejected.
func Register(name string, ctor func(Options) (Plugin, error)) {
	registry.Lock()
	defer registry.Unlock()
	registry.ctors[name] = ctor
}

// Clear removes every registered plugin constructor.
func Clear() {
	registry.Lock()
	defer registry.Unlock()
	registry.ctors = make(map[string]func(Options) (Plugin, error))
}

// New constructs the named plugin with the given options.
func New(name string, opts Options) (Plugin, error) {
	registry.Lock()
	ctor, ok := registry.ctors[name]
	registry.Unlock()
	if !ok {
		return nil, errs.InvalidPlugin(name)
	}
	return ctor(opts)
}

func init() {
	Register("nil", func(Options) (Plugin, error) { return &NilPlugin{}, nil })
	Register("dump", func(Options) (Plugin, error) { return &DumpPlugin{}, nil })
	Register("make", func(opts Options) (Plugin, error) { return NewMakePlugin(opts) })
}
