package loader

import (
	"errors"
	"math"
	"testing"

	"github.com/solhaga/threatlens/internal/core/domain"
)

func loaderCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	catalog, err := ParseCatalog([]byte(catalogJSON)) // T1=0.3, T2=0.5
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return catalog
}

func TestParseTree_JSON(t *testing.T) {
	catalog := loaderCatalog(t)

	doc := `{
	  "type": "or",
	  "children": [
	    {"type": "threat", "id": "T1"},
	    {"type": "and", "children": [
	      {"type": "threat", "id": "T1"},
	      {"type": "threat", "id": "T2"}
	    ]}
	  ]
	}`

	root, err := ParseTree([]byte(doc), catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	or, ok := root.(*domain.OrNode)
	if !ok {
		t.Fatalf("expected OR root, got %T", root)
	}
	if len(or.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(or.Children))
	}

	result, err := domain.EvaluateTree(root, catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1 - (1-0.3)(1-0.15) = 0.405
	if math.Abs(result.Root-0.405) > 1e-12 {
		t.Errorf("expected 0.405, got %v", result.Root)
	}
}

func TestParseTree_YAMLFallback(t *testing.T) {
	catalog := loaderCatalog(t)

	doc := `
type: and
children:
  - type: threat
    id: T1
  - type: threat
    id: T2
`

	root, err := ParseTree([]byte(doc), catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := root.(*domain.AndNode); !ok {
		t.Fatalf("expected AND root, got %T", root)
	}
}

func TestParseTree_DanglingReference(t *testing.T) {
	catalog := loaderCatalog(t)

	doc := `{"type": "or", "children": [{"type": "threat", "id": "T404"}]}`

	_, err := ParseTree([]byte(doc), catalog)
	var de *domain.DanglingReferenceError
	if !errors.As(err, &de) {
		t.Fatalf("expected DanglingReferenceError, got %v", err)
	}
	if de.ThreatID != "T404" {
		t.Errorf("expected offending id T404, got %q", de.ThreatID)
	}
}

func TestParseTree_EmptyGate(t *testing.T) {
	catalog := loaderCatalog(t)

	doc := `{"type": "or", "children": [{"type": "threat", "id": "T1"}, {"type": "and"}]}`

	_, err := ParseTree([]byte(doc), catalog)
	var ee *domain.EmptyNodeError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EmptyNodeError, got %v", err)
	}
	if ee.Gate != "and" {
		t.Errorf("expected gate and, got %q", ee.Gate)
	}
}

func TestParseTree_UnknownNodeType(t *testing.T) {
	catalog := loaderCatalog(t)

	doc := `{"type": "xor", "children": [{"type": "threat", "id": "T1"}]}`

	_, err := ParseTree([]byte(doc), catalog)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "type" {
		t.Errorf("expected type field, got %q", ve.Field)
	}
}

func TestParseTree_ThreatNodeWithoutID(t *testing.T) {
	catalog := loaderCatalog(t)

	doc := `{"type": "or", "children": [{"type": "threat"}]}`

	_, err := ParseTree([]byte(doc), catalog)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "id" {
		t.Errorf("expected id field, got %q", ve.Field)
	}
}

func TestParseTree_RejectsGarbage(t *testing.T) {
	catalog := loaderCatalog(t)

	if _, err := ParseTree([]byte(":: not a tree ::"), catalog); err == nil {
		t.Error("expected error for malformed input")
	}
}
