// Package config loads and merges partforge's project options (work
// directory, target architecture, plugin search path) from flags,
// environment variables, and an optional config file, the way
// jmylchreest-tvarr layers spf13/viper under spf13/cobra. This generalizes
// distr1-distri's internal/env single DISTRIROOT-environment-variable
// convention into a small typed config surface.
package config

import (
	"os"
	"path/filepath"

	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/options"
	"github.com/spf13/viper"
)

// SupportedArches lists the architectures partforge knows how to target,
// mirroring distr1-distri's archs.go Architectures map.
var SupportedArches = map[string]bool{
	"amd64": true,
	"arm64": true,
	"i386":  true,
}

// ArchTriplets maps a target arch to its GNU triplet, used by internal/env
// to probe arch-specific include/lib subdirectories (spec.md §4.6).
var ArchTriplets = map[string]string{
	"amd64": "x86_64-linux-gnu",
	"arm64": "aarch64-linux-gnu",
	"i386":  "i386-linux-gnu",
}

// Config is partforge's resolved, process-wide configuration.
type Config struct {
	PartsFile  string
	WorkDir    string
	TargetArch string
	PluginPath []string
}

// Load builds a Config from viper, which has already been populated with
// flags/env/file by the CLI layer.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		PartsFile:  v.GetString("file"),
		WorkDir:    v.GetString("work-dir"),
		TargetArch: v.GetString("target-arch"),
		PluginPath: v.GetStringSlice("plugin-path"),
	}
	if cfg.PartsFile == "" {
		cfg.PartsFile = "parts.yaml"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = defaultWorkDir()
	}
	if cfg.TargetArch == "" {
		cfg.TargetArch = "amd64"
	}
	if !SupportedArches[cfg.TargetArch] {
		return nil, errs.InvalidArchitecture(cfg.TargetArch)
	}
	return cfg, nil
}

func defaultWorkDir() string {
	if env := os.Getenv("PARTFORGE_WORK_DIR"); env != "" {
		return env
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Join(cwd, "parts_work")
}

// Project renders the cross-cutting project options snapshot used by the
// state manager (spec.md §3's "Project options" column).
func (c *Config) Project() options.Project {
	return options.Project{TargetArch: c.TargetArch}
}

// ArchTriplet returns the GNU triplet for the config's target arch.
func (c *Config) ArchTriplet() string {
	return ArchTriplets[c.TargetArch]
}
