// Package env derives the default build environment (PATH, CFLAGS,
// LDFLAGS, PKG_CONFIG_PATH) for a part, by probing existing subdirectories
// of its install dir and the shared stage tree. Grounded on
// craft_parts/executor/environment.py, generalizing distr1-distri's own
// internal/env package (which only resolved a single DISTRIROOT from an
// environment variable) into a per-root, per-arch-triplet probe.
package env

import (
	"os"
	"path/filepath"
	"strings"
)

// exists reports whether dir/sub exists.
func exists(dir, sub string) bool {
	_, err := os.Stat(filepath.Join(dir, sub))
	return err == nil
}

// Derive builds the default environment variables for a part compiling
// against root (typically part/install) and the shared stage tree, for the
// given arch triplet (e.g. "x86_64-linux-gnu").
func Derive(root, stageDir, archTriplet string, existingPath string) map[string]string {
	out := make(map[string]string)

	var pathDirs []string
	for _, base := range []string{root, stageDir} {
		for _, d := range []string{"usr/sbin", "usr/bin", "sbin", "bin"} {
			if exists(base, d) {
				pathDirs = append(pathDirs, filepath.Join(base, d))
			}
		}
	}
	if existingPath != "" {
		pathDirs = append(pathDirs, existingPath)
	}
	if len(pathDirs) > 0 {
		out["PATH"] = strings.Join(pathDirs, ":")
	}

	var includeDirs []string
	for _, base := range []string{root, stageDir} {
		for _, d := range []string{"include", "usr/include", filepath.Join("include", archTriplet), filepath.Join("usr/include", archTriplet)} {
			if exists(base, d) {
				includeDirs = append(includeDirs, "-isystem"+filepath.Join(base, d))
			}
		}
	}
	if len(includeDirs) > 0 {
		flags := strings.Join(includeDirs, " ")
		out["CFLAGS"] = flags
		out["CXXFLAGS"] = flags
		out["CPPFLAGS"] = flags
	}

	var libDirs []string
	for _, base := range []string{root, stageDir} {
		for _, d := range []string{"lib", "usr/lib", filepath.Join("lib", archTriplet), filepath.Join("usr/lib", archTriplet)} {
			if exists(base, d) {
				libDirs = append(libDirs, "-L"+filepath.Join(base, d))
			}
		}
	}
	if len(libDirs) > 0 {
		out["LDFLAGS"] = strings.Join(libDirs, " ")
	}

	var pkgConfigDirs []string
	for _, base := range []string{root, stageDir} {
		for _, d := range []string{
			"usr/lib/pkgconfig", "usr/lib/" + archTriplet + "/pkgconfig",
			"usr/share/pkgconfig", "usr/local/lib/pkgconfig",
			"usr/local/lib/" + archTriplet + "/pkgconfig", "usr/local/share/pkgconfig",
			"lib/pkgconfig", "lib/" + archTriplet + "/pkgconfig",
		} {
			if exists(base, d) {
				pkgConfigDirs = append(pkgConfigDirs, filepath.Join(base, d))
			}
		}
	}
	if len(pkgConfigDirs) > 0 {
		out["PKG_CONFIG_PATH"] = strings.Join(pkgConfigDirs, ":")
	}

	return out
}

// Merge layers environment maps in increasing priority: later maps win.
// Used to compose default-env, plugin.GetBuildEnvironment(), and the user's
// build-environment, per spec.md §4.5 step 3.
func Merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// AsSlice renders an environment map as "KEY=VALUE" entries suitable for
// exec.Cmd.Env, sorted for determinism.
func AsSlice(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}
