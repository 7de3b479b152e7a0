package plugin

// DumpPlugin copies the part's unpacked source tree into its install
// directory verbatim. It builds out-of-source so the part handler does not
// hard-link src into build first; the copy itself happens via the shell
// commands below, matching craft_parts/plugins/dump_plugin.py.
type DumpPlugin struct{}

func (p *DumpPlugin) GetBuildSnaps() []string              { return nil }
func (p *DumpPlugin) GetBuildPackages() []string            { return nil }
func (p *DumpPlugin) GetBuildEnvironment() map[string]string { return nil }

func (p *DumpPlugin) GetBuildCommands() []string {
	return []string{
		`cp --archive --link --no-dereference "${CRAFT_PART_SRC}/." "${CRAFT_PART_INSTALL}"`,
	}
}

func (p *DumpPlugin) OutOfSourceBuild() bool { return true }
