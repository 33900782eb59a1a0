package domain

// EvaluationResult holds the analytically computed compromise probability of
// every node in a validated attack tree. Root is the probability of the
// designated "system compromised" node.
type EvaluationResult struct {
	Root   float64
	byNode map[Node]float64
}

// Probability returns the computed probability for a specific node of the
// evaluated tree.
func (r EvaluationResult) Probability(n Node) (float64, bool) {
	p, ok := r.byNode[n]
	return p, ok
}

// Nodes returns the number of evaluated nodes.
func (r EvaluationResult) Nodes() int {
	return len(r.byNode)
}

// EvaluateTree computes the exact compromise probability of every node in a
// single post-order traversal, assuming leaf events are statistically
// independent:
//
//	P(leaf)       = catalog probability of the referenced threat
//	P(AND n1..nk) = Π P(ni)
//	P(OR  n1..nk) = 1 − Π (1 − P(ni))
//
// Results are memoized by node identity, so evaluation stays linear even if a
// node instance were referenced from more than one parent. The tree must have
// been validated with ValidateTree first; an unresolved leaf still fails with
// DanglingReferenceError rather than defaulting. A computed probability
// escaping [0,1] surfaces as InternalConsistencyError, never a silent clamp.
func EvaluateTree(root Node, catalog *Catalog) (EvaluationResult, error) {
	result := EvaluationResult{byNode: make(map[Node]float64)}

	p, err := evalNode(root, catalog, result.byNode)
	if err != nil {
		return EvaluationResult{}, err
	}

	result.Root = p
	return result, nil
}

func evalNode(n Node, catalog *Catalog, memo map[Node]float64) (float64, error) {
	if p, ok := memo[n]; ok {
		return p, nil
	}

	var p float64
	switch node := n.(type) {
	case *Leaf:
		rec, ok := catalog.Get(node.ThreatID)
		if !ok {
			return 0, &DanglingReferenceError{ThreatID: node.ThreatID}
		}
		p = rec.Probability
	case *AndNode:
		if len(node.Children) == 0 {
			return 0, &EmptyNodeError{Gate: "and"}
		}
		p = 1.0
		for _, child := range node.Children {
			cp, err := evalNode(child, catalog, memo)
			if err != nil {
				return 0, err
			}
			p *= cp
		}
	case *OrNode:
		if len(node.Children) == 0 {
			return 0, &EmptyNodeError{Gate: "or"}
		}
		miss := 1.0
		for _, child := range node.Children {
			cp, err := evalNode(child, catalog, memo)
			if err != nil {
				return 0, err
			}
			miss *= (1.0 - cp)
		}
		p = 1.0 - miss
	default:
		return 0, &ValidationError{Field: "type", Reason: "unknown attack tree node type"}
	}

	if p < 0 || p > 1 {
		return 0, &InternalConsistencyError{Node: n.kind(), Value: p}
	}

	memo[n] = p
	return p, nil
}
