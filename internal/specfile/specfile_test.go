package specfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const doc = `
parts:
  lib:
    plugin: make
    source: https://example.com/lib.tar.gz
    stage-packages: [libfoo1]
    build-environment:
      - FOO: bar
      - FOO: baz
  app:
    after: [lib]
    plugin: dump
    source: .
    make-parameters: ["-j4"]
`

func TestLoadParsesPartsInNameOrder(t *testing.T) {
	parts, err := Load([]byte(doc), "/work")
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("Load() = %d parts, want 2", len(parts))
	}
	if parts[0].Name != "app" || parts[1].Name != "lib" {
		t.Fatalf("Load() name order = [%s, %s], want [app, lib]", parts[0].Name, parts[1].Name)
	}
}

func TestLoadRoutesUnknownKeysToPluginOptions(t *testing.T) {
	parts, err := Load([]byte(doc), "/work")
	if err != nil {
		t.Fatal(err)
	}
	var appOpts map[string]interface{}
	var found bool
	for _, p := range parts {
		if p.Name == "app" {
			appOpts = p.PluginOptions
			found = true
		}
	}
	if !found {
		t.Fatal("part \"app\" missing from Load() result")
	}
	want := map[string]interface{}{"make-parameters": []interface{}{"-j4"}}
	if diff := cmp.Diff(want, appOpts); diff != "" {
		t.Errorf("PluginOptions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadKeepsBuildEnvironmentInDeclaredOrder(t *testing.T) {
	parts, err := Load([]byte(doc), "/work")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range parts {
		if p.Name != "lib" {
			continue
		}
		if len(p.BuildEnvironment) != 2 {
			t.Fatalf("lib.BuildEnvironment = %v, want 2 ordered entries", p.BuildEnvironment)
		}
		if p.BuildEnvironment[0].Value != "bar" || p.BuildEnvironment[1].Value != "baz" {
			t.Errorf("lib.BuildEnvironment = %v, want [FOO:bar FOO:baz] in declared order", p.BuildEnvironment)
		}
	}
}

func TestLoadRejectsUnknownDependency(t *testing.T) {
	_, err := Load([]byte(`
parts:
  app:
    after: [missing]
`), "/work")
	if err == nil {
		t.Fatal("expected an error for a dependency on an undeclared part")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load([]byte("parts: [this is not a mapping"), "/work"); err == nil {
		t.Fatal("expected a schema-validation error for malformed YAML")
	}
}
