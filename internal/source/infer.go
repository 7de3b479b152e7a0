package source

import "strings"

// inferType guesses a source type from its URI/path suffix, the way
// craft_parts.sources.sources.get_source_type_from_uri does, recognising
// tar and git suffixes before falling back to "local".
func inferType(uri string) string {
	switch {
	case strings.HasSuffix(uri, ".tar"), strings.HasSuffix(uri, ".tar.gz"),
		strings.HasSuffix(uri, ".tgz"), strings.HasSuffix(uri, ".tar.bz2"),
		strings.HasSuffix(uri, ".tar.xz"), strings.HasSuffix(uri, ".tar.zst"):
		return "tar"
	case strings.HasSuffix(uri, ".git"):
		return "git"
	default:
		return "local"
	}
}
