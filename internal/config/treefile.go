package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/me/quarry/pkg/model"
)

// TreeFileNode is one node in a YAML seed tree file. Config fields are
// inlined, so a node reads like:
//
//	kind: group
//	name: pools
//	enabled: true
//	children:
//	  - kind: http
//	    name: pool-a
//	    enabled: true
//	    url: http://upstream/work
type TreeFileNode struct {
	Kind     model.SourceKind   `yaml:"kind"`
	Config   model.SourceConfig `yaml:",inline"`
	Children []TreeFileNode     `yaml:"children,omitempty"`
}

// UnmarshalYAML decodes a node with the priority pre-seeded, so a node
// that omits the field gets the default while an explicit "priority: 0"
// keeps its meaning (throughput credit only, no proportional share).
func (n *TreeFileNode) UnmarshalYAML(value *yaml.Node) error {
	type plain TreeFileNode
	node := plain{Config: model.SourceConfig{Priority: model.DefaultPriority}}
	if err := value.Decode(&node); err != nil {
		return err
	}
	*n = TreeFileNode(node)
	return nil
}

// LoadTreeFile parses a YAML seed tree. The root node must be a group.
// Node IDs are not part of the file; they are assigned on inflation.
func LoadTreeFile(path string) (*model.NodeDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree file: %w", err)
	}
	return ParseTreeFile(data)
}

// ParseTreeFile parses YAML seed tree content.
func ParseTreeFile(data []byte) (*model.NodeDescriptor, error) {
	var root TreeFileNode
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse tree file: %w", err)
	}
	if !root.Kind.IsGroup() {
		return nil, fmt.Errorf("tree file root must have kind \"group\", got %q", root.Kind)
	}
	desc, err := root.descriptor()
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func (n TreeFileNode) descriptor() (model.NodeDescriptor, error) {
	if n.Kind == "" {
		return model.NodeDescriptor{}, fmt.Errorf("node %q: missing kind", n.Config.Name)
	}
	if !n.Kind.IsGroup() && !n.Kind.IsLeaf() {
		return model.NodeDescriptor{}, fmt.Errorf("node %q: unknown kind %q", n.Config.Name, n.Kind)
	}
	if !n.Kind.IsGroup() && len(n.Children) > 0 {
		return model.NodeDescriptor{}, fmt.Errorf("node %q: leaf kind %q cannot have children", n.Config.Name, n.Kind)
	}

	desc := model.NodeDescriptor{
		Kind:   n.Kind,
		Config: n.Config,
	}
	for _, child := range n.Children {
		childDesc, err := child.descriptor()
		if err != nil {
			return model.NodeDescriptor{}, err
		}
		desc.Children = append(desc.Children, childDesc)
	}
	return desc, nil
}
