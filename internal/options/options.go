// Package options defines cross-cutting project options snapshotted into
// part state alongside per-step properties (spec.md §3's "Project options"
// column).
package options

// Project holds the options that can make a step dirty independent of any
// single part's own declared properties.
type Project struct {
	TargetArch string
}

// Map renders the options relevant to the given set of keys into a
// comparable snapshot.
func (p Project) Map(keys []string) map[string]interface{} {
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		switch k {
		case "target_arch":
			out[k] = p.TargetArch
		}
	}
	return out
}
