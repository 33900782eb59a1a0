package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/solhaga/threatlens/internal/core/domain"
)

const catalogJSON = `[
  {
    "id": "T1",
    "location": "Wi-Fi interface",
    "description": "Attacker spoofs the firmware update server",
    "stride": ["Spoofing", "Tampering"],
    "dread": {"damage": 9, "reproducibility": 7, "exploitability": 6, "affected_users": 8, "discoverability": 5},
    "probability": 0.3,
    "mitigations": ["Pin the update server certificate", "Sign firmware images"]
  },
  {
    "id": "T2",
    "location": "Local network",
    "description": "Unencrypted telemetry is captured",
    "stride": ["InformationDisclosure"],
    "dread": {"damage": 5, "reproducibility": 8, "exploitability": 7, "affected_users": 6, "discoverability": 9},
    "probability": 0.5,
    "mitigations": ["Enable TLS for telemetry"]
  }
]`

const catalogYAML = `
- id: T1
  location: Wi-Fi interface
  description: Attacker spoofs the firmware update server
  stride: [Spoofing, Tampering]
  dread:
    damage: 9
    reproducibility: 7
    exploitability: 6
    affected_users: 8
    discoverability: 5
  probability: 0.3
  mitigations:
    - Pin the update server certificate
- id: T2
  location: Local network
  description: Unencrypted telemetry is captured
  stride: [InformationDisclosure]
  dread:
    damage: 5
    reproducibility: 8
    exploitability: 7
    affected_users: 6
    discoverability: 9
  probability: 0.5
`

func TestParseCatalog_JSON(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if catalog.Len() != 2 {
		t.Fatalf("expected 2 threats, got %d", catalog.Len())
	}

	rec, ok := catalog.Get("T1")
	if !ok {
		t.Fatal("expected T1 to be present")
	}
	if rec.Probability != 0.3 {
		t.Errorf("expected probability 0.3, got %v", rec.Probability)
	}
	if rec.Dread.Damage != 9 {
		t.Errorf("expected damage 9, got %d", rec.Dread.Damage)
	}
	if len(rec.Stride) != 2 || rec.Stride[0] != domain.Spoofing {
		t.Errorf("unexpected stride set: %v", rec.Stride)
	}
	if len(rec.Mitigations) != 2 {
		t.Errorf("expected 2 mitigations, got %d", len(rec.Mitigations))
	}
}

func TestParseCatalog_YAMLFallback(t *testing.T) {
	catalog, err := ParseCatalog([]byte(catalogYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if catalog.Len() != 2 {
		t.Fatalf("expected 2 threats, got %d", catalog.Len())
	}
	rec, ok := catalog.Get("T2")
	if !ok {
		t.Fatal("expected T2 to be present")
	}
	if rec.Stride[0] != domain.InformationDisclosure {
		t.Errorf("unexpected stride: %v", rec.Stride)
	}
}

func TestParseCatalog_RejectsGarbage(t *testing.T) {
	if _, err := ParseCatalog([]byte("{{{ not a document")); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestParseCatalog_RejectsOutOfRangeDread(t *testing.T) {
	doc := `[{"id":"T1","stride":["Tampering"],"dread":{"damage":11,"reproducibility":5,"exploitability":5,"affected_users":5,"discoverability":5},"probability":0.5}]`

	_, err := ParseCatalog([]byte(doc))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.ThreatID != "T1" {
		t.Errorf("expected offending id T1, got %q", ve.ThreatID)
	}
}

func TestParseCatalog_RejectsMissingDread(t *testing.T) {
	doc := `[{"id":"T1","stride":["Tampering"],"probability":0.5}]`

	_, err := ParseCatalog([]byte(doc))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseCatalog_RejectsUnknownStride(t *testing.T) {
	doc := `[{"id":"T1","stride":["Phishing"],"dread":{"damage":5,"reproducibility":5,"exploitability":5,"affected_users":5,"discoverability":5},"probability":0.5}]`

	_, err := ParseCatalog([]byte(doc))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "stride" {
		t.Errorf("expected stride field, got %q", ve.Field)
	}
}

func TestParseCatalog_RejectsProbabilityOutOfRange(t *testing.T) {
	doc := `[{"id":"T1","stride":["Tampering"],"dread":{"damage":5,"reproducibility":5,"exploitability":5,"affected_users":5,"discoverability":5},"probability":1.2}]`

	_, err := ParseCatalog([]byte(doc))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseCatalog_RejectsDuplicateIDs(t *testing.T) {
	doc := `[
	  {"id":"T1","stride":["Tampering"],"dread":{"damage":5,"reproducibility":5,"exploitability":5,"affected_users":5,"discoverability":5},"probability":0.5},
	  {"id":"T1","stride":["Spoofing"],"dread":{"damage":5,"reproducibility":5,"exploitability":5,"affected_users":5,"discoverability":5},"probability":0.4}
	]`

	_, err := ParseCatalog([]byte(doc))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoadCatalog_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.json")
	if err := os.WriteFile(path, []byte(catalogJSON), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Len() != 2 {
		t.Errorf("expected 2 threats, got %d", catalog.Len())
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
