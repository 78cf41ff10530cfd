package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/me/quarry/pkg/model"
)

const sampleTreeYAML = `kind: group
name: root
enabled: true
children:
  - kind: group
    name: pools
    enabled: true
    priority: 2
    children:
      - kind: http
        name: pool-a
        enabled: true
        url: http://upstream/work
        yield_rate: 1200
  - kind: synthetic
    name: local-gen
    enabled: false
    priority: 0
    batch_units: 4
`

func TestParseTreeFile(t *testing.T) {
	desc, err := ParseTreeFile([]byte(sampleTreeYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if desc.Kind != model.SourceKindGroup {
		t.Errorf("root kind = %q, want group", desc.Kind)
	}
	if desc.CountNodes() != 4 {
		t.Errorf("node count = %d, want 4", desc.CountNodes())
	}

	pools := desc.Children[0]
	if pools.Config.Priority != 2 {
		t.Errorf("pools priority = %v, want 2", pools.Config.Priority)
	}
	poolA := pools.Children[0]
	if poolA.Kind != model.SourceKindHTTP {
		t.Errorf("pool-a kind = %q, want http", poolA.Kind)
	}
	if poolA.Config.URL != "http://upstream/work" {
		t.Errorf("pool-a url = %q", poolA.Config.URL)
	}
	if poolA.Config.YieldRate != 1200 {
		t.Errorf("pool-a yield_rate = %v, want 1200", poolA.Config.YieldRate)
	}
	// pool-a omits priority, so the default applies on decode.
	if poolA.Config.Priority != model.DefaultPriority {
		t.Errorf("pool-a priority = %v, want default %v", poolA.Config.Priority, model.DefaultPriority)
	}

	gen := desc.Children[1]
	if gen.Config.Enabled {
		t.Error("local-gen must parse as disabled")
	}
	if gen.Config.BatchUnits != 4 {
		t.Errorf("local-gen batch_units = %v, want 4", gen.Config.BatchUnits)
	}
	// An explicit zero weight is not the same as an absent one.
	if gen.Config.Priority != 0 {
		t.Errorf("local-gen priority = %v, want explicit 0 preserved", gen.Config.Priority)
	}

	// Seed files carry no IDs; they are assigned on inflation.
	if desc.ID != "" || poolA.ID != "" {
		t.Error("tree file nodes must not carry IDs")
	}
}

func TestParseTreeFileLeafRoot(t *testing.T) {
	if _, err := ParseTreeFile([]byte("kind: http\nname: x\nurl: http://y\n")); err == nil {
		t.Fatal("leaf root accepted")
	}
}

func TestParseTreeFileMissingKind(t *testing.T) {
	yaml := `kind: group
name: root
children:
  - name: orphan
`
	if _, err := ParseTreeFile([]byte(yaml)); err == nil {
		t.Fatal("node without kind accepted")
	}
}

func TestParseTreeFileUnknownKind(t *testing.T) {
	yaml := `kind: group
name: root
children:
  - kind: carrier-pigeon
    name: x
`
	if _, err := ParseTreeFile([]byte(yaml)); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestParseTreeFileLeafWithChildren(t *testing.T) {
	yaml := `kind: group
name: root
children:
  - kind: synthetic
    name: gen
    children:
      - kind: synthetic
        name: nested
`
	if _, err := ParseTreeFile([]byte(yaml)); err == nil {
		t.Fatal("leaf with children accepted")
	}
}

func TestParseTreeFileBadYAML(t *testing.T) {
	if _, err := ParseTreeFile([]byte("kind: [unclosed")); err == nil {
		t.Fatal("malformed YAML accepted")
	}
}

func TestLoadTreeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	if err := os.WriteFile(path, []byte(sampleTreeYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	desc, err := LoadTreeFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if desc.CountNodes() != 4 {
		t.Errorf("node count = %d, want 4", desc.CountNodes())
	}
}

func TestLoadTreeFileMissing(t *testing.T) {
	if _, err := LoadTreeFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
