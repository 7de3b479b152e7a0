package plugin

// NilPlugin does nothing: no build commands, in-source build. Used for
// parts whose entire contribution is their source tree (e.g. staged
// assets with no compilation step), mirroring
// craft_parts/plugins/v2/nil.py.
type NilPlugin struct{}

func (p *NilPlugin) GetBuildSnaps() []string              { return nil }
func (p *NilPlugin) GetBuildPackages() []string            { return nil }
func (p *NilPlugin) GetBuildEnvironment() map[string]string { return nil }
func (p *NilPlugin) GetBuildCommands() []string            { return nil }
func (p *NilPlugin) OutOfSourceBuild() bool                { return false }
