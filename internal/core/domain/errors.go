package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports a malformed record or a field outside its declared
// range. It is raised at load time, before any probability computation runs.
type ValidationError struct {
	ThreatID string // Offending record id, empty when the error is not record-scoped
	Field    string // Offending field, e.g. "dread.damage"
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.ThreatID == "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation failed for threat %q: %s: %s", e.ThreatID, e.Field, e.Reason)
}

// DanglingReferenceError reports an attack tree leaf that references a threat
// id absent from the catalog.
type DanglingReferenceError struct {
	ThreatID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("attack tree leaf references unknown threat %q", e.ThreatID)
}

// EmptyNodeError reports an AND/OR node with zero children.
type EmptyNodeError struct {
	Gate string // "and" or "or"
}

func (e *EmptyNodeError) Error() string {
	return fmt.Sprintf("attack tree %s node has no children", e.Gate)
}

// CycleError reports a structural cycle in the attack tree. The path lists the
// gates walked from the root down to the repeated node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("attack tree contains a cycle at %s", strings.Join(e.Path, " -> "))
}

// InternalConsistencyError signals a computed probability escaping [0,1].
// This indicates a defect in the evaluator, not bad input, and is never
// silently clamped.
type InternalConsistencyError struct {
	Node  string
	Value float64
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("computed probability %v for %s node is outside [0,1]", e.Value, e.Node)
}
