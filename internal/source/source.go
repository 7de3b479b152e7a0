// Package source defines the SourceHandler contract (spec.md §6.5) and
// provides minimal concrete implementations (local directory, tar
// archives). Per spec.md §1, concrete source fetchers are an external
// collaborator — these implementations exist only so the engine is
// runnable end-to-end without a live network fetcher, not as the spec's
// primary concern. Grounded on craft_parts/sources/base.py and
// craft_parts/sources/tar.py.
package source

import "context"

// Handler fetches and updates a part's source tree.
type Handler interface {
	// Pull fetches the source into destDir.
	Pull(ctx context.Context, destDir string) error
	// Check reports whether the source has changed since it was last
	// pulled, without modifying anything; must be called before Update.
	Check(ctx context.Context, destDir string, assets map[string]interface{}) (changed bool, err error)
	// Update refreshes destDir in place. Preconditions: Check has been
	// called and returned changed=true.
	Update(ctx context.Context, destDir string) error
	// SourceDetails returns a snapshot of resolved source details (e.g.
	// resolved commit hash) to persist into PartState.Assets.
	SourceDetails() map[string]interface{}
}

// Spec is the subset of a Part's declared source-* fields a Handler needs.
type Spec struct {
	Source         string
	Type           string
	Branch         string
	Tag            string
	Commit         string
	Depth          int
	Checksum       string
	Subdir         string
}

// Registry maps a source-type string to a constructor, the way the plugin
// registry maps plugin names (spec.md §6.4/§9 "dynamic dispatch").
type Registry struct {
	ctors map[string]func(Spec) (Handler, error)
}

// NewRegistry returns a Registry pre-populated with the built-in local and
// tar handlers.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]func(Spec) (Handler, error))}
	r.Register("local", func(s Spec) (Handler, error) { return NewLocal(s), nil })
	r.Register("tar", func(s Spec) (Handler, error) { return NewTar(s), nil })
	return r
}

// Register adds or replaces the constructor for a source type.
func (r *Registry) Register(sourceType string, ctor func(Spec) (Handler, error)) {
	r.ctors[sourceType] = ctor
}

// For returns a Handler for the given spec, inferring the source type from
// the source string's suffix when Type is unset (mirroring
// craft_parts.sources.sources.get_source_type_from_uri).
func (r *Registry) For(s Spec) (Handler, error) {
	t := s.Type
	if t == "" {
		t = inferType(s.Source)
	}
	ctor, ok := r.ctors[t]
	if !ok {
		return nil, errInvalidSourceType(t)
	}
	return ctor(s)
}
