package domain

// Node is one node of an attack tree. The set of implementations is closed:
// Leaf, AndNode and OrNode. Evaluators switch exhaustively over these three,
// so a future combinator (e.g. k-of-n threshold) becomes a compile-checked
// extension point rather than a stringly-typed branch.
type Node interface {
	// kind returns the node label used in error reporting ("threat", "and", "or").
	kind() string
}

// Leaf references a catalog threat by id. The leaf's probability is the
// referenced record's standalone probability.
type Leaf struct {
	ThreatID string
}

// AndNode succeeds when all of its children succeed.
type AndNode struct {
	Children []Node
}

// OrNode succeeds when at least one of its children succeeds.
type OrNode struct {
	Children []Node
}

func (*Leaf) kind() string    { return "threat" }
func (*AndNode) kind() string { return "and" }
func (*OrNode) kind() string  { return "or" }

// ValidateTree checks the structural invariants of an attack tree against a
// catalog before any evaluation runs:
//   - every leaf threat id resolves to a catalog record (DanglingReferenceError)
//   - every AND/OR node has at least one child (EmptyNodeError)
//   - the structure contains no cycle (CycleError)
//
// The same validated tree is reused by both the analytic evaluator and the
// Monte Carlo simulator.
func ValidateTree(root Node, catalog *Catalog) error {
	if root == nil {
		return &ValidationError{Field: "root", Reason: "attack tree has no root node"}
	}
	onStack := make(map[Node]bool)
	return walkValidate(root, catalog, onStack, []string{root.kind()})
}

func walkValidate(n Node, catalog *Catalog, onStack map[Node]bool, path []string) error {
	if n == nil {
		return &ValidationError{Field: "children", Reason: "attack tree contains a nil node"}
	}
	if onStack[n] {
		return &CycleError{Path: append([]string(nil), path...)}
	}

	switch node := n.(type) {
	case *Leaf:
		if _, ok := catalog.Get(node.ThreatID); !ok {
			return &DanglingReferenceError{ThreatID: node.ThreatID}
		}
		return nil
	case *AndNode:
		if len(node.Children) == 0 {
			return &EmptyNodeError{Gate: "and"}
		}
		onStack[n] = true
		for _, child := range node.Children {
			childPath := path
			if child != nil {
				childPath = append(path, child.kind())
			}
			if err := walkValidate(child, catalog, onStack, childPath); err != nil {
				return err
			}
		}
		delete(onStack, n)
		return nil
	case *OrNode:
		if len(node.Children) == 0 {
			return &EmptyNodeError{Gate: "or"}
		}
		onStack[n] = true
		for _, child := range node.Children {
			childPath := path
			if child != nil {
				childPath = append(path, child.kind())
			}
			if err := walkValidate(child, catalog, onStack, childPath); err != nil {
				return err
			}
		}
		delete(onStack, n)
		return nil
	default:
		return &ValidationError{Field: "type", Reason: "unknown attack tree node type"}
	}
}

// LeafThreatIDs returns the distinct threat ids referenced by the tree's
// leaves, in deterministic depth-first order. The simulator draws exactly one
// Bernoulli outcome per id per trial, so a threat referenced from several
// places is never resampled inconsistently.
func LeafThreatIDs(root Node) []string {
	var ids []string
	seen := make(map[string]bool)

	var walk func(n Node)
	walk = func(n Node) {
		switch node := n.(type) {
		case *Leaf:
			if !seen[node.ThreatID] {
				seen[node.ThreatID] = true
				ids = append(ids, node.ThreatID)
			}
		case *AndNode:
			for _, child := range node.Children {
				walk(child)
			}
		case *OrNode:
			for _, child := range node.Children {
				walk(child)
			}
		}
	}
	walk(root)

	return ids
}
