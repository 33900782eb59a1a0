package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solhaga/threatlens/internal/core/domain"
)

// nodeEntry is the wire shape of an attack tree node: either
// {"type":"threat","id":"T1"} or {"type":"and"|"or","children":[...]}.
type nodeEntry struct {
	Type     string      `json:"type" yaml:"type"`
	ID       string      `json:"id,omitempty" yaml:"id,omitempty"`
	Children []nodeEntry `json:"children,omitempty" yaml:"children,omitempty"`
}

// LoadTree reads and parses an attack tree file and validates it against the
// catalog. See ParseTree.
func LoadTree(path string, catalog *domain.Catalog) (domain.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attack tree file: %w", err)
	}
	return ParseTree(data, catalog)
}

// ParseTree decodes a single rooted attack tree document (JSON first, YAML
// fallback) into the closed node types and runs full structural validation
// against the catalog. Dangling leaf references, empty gates and unknown node
// types are all rejected here, before any evaluation.
func ParseTree(data []byte, catalog *domain.Catalog) (domain.Node, error) {
	var entry nodeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		if yamlErr := yaml.Unmarshal(data, &entry); yamlErr != nil {
			return nil, fmt.Errorf("attack tree is neither valid JSON nor valid YAML: %w", yamlErr)
		}
	}

	root, err := entry.toDomain()
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateTree(root, catalog); err != nil {
		return nil, err
	}

	return root, nil
}

func (e nodeEntry) toDomain() (domain.Node, error) {
	switch e.Type {
	case "threat":
		if e.ID == "" {
			return nil, &domain.ValidationError{Field: "id", Reason: "threat node requires a threat id"}
		}
		return &domain.Leaf{ThreatID: e.ID}, nil
	case "and", "or":
		children := make([]domain.Node, 0, len(e.Children))
		for _, child := range e.Children {
			node, err := child.toDomain()
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
		if e.Type == "and" {
			return &domain.AndNode{Children: children}, nil
		}
		return &domain.OrNode{Children: children}, nil
	case "":
		return nil, &domain.ValidationError{Field: "type", Reason: "attack tree node is missing its type"}
	default:
		return nil, &domain.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown attack tree node type %q", e.Type)}
	}
}
