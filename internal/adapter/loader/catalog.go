// Package loader parses catalog and attack tree documents from JSON or YAML
// into the strongly typed domain model, rejecting malformed shapes at the
// boundary instead of propagating maybe-present fields into the evaluators.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/solhaga/threatlens/internal/core/domain"
)

var validate = validator.New()

// threatEntry is the wire shape of one catalog record. Range checks live in
// the validate tags so a bad document fails before the domain model exists.
type threatEntry struct {
	ID          string     `json:"id" yaml:"id" validate:"required"`
	Location    string     `json:"location" yaml:"location"`
	Description string     `json:"description" yaml:"description"`
	Stride      []string   `json:"stride" yaml:"stride" validate:"required,min=1"`
	Dread       dreadEntry `json:"dread" yaml:"dread" validate:"required"`
	Probability float64    `json:"probability" yaml:"probability" validate:"gte=0,lte=1"`
	Mitigations []string   `json:"mitigations" yaml:"mitigations"`
}

type dreadEntry struct {
	Damage          int `json:"damage" yaml:"damage" validate:"gte=1,lte=10"`
	Reproducibility int `json:"reproducibility" yaml:"reproducibility" validate:"gte=1,lte=10"`
	Exploitability  int `json:"exploitability" yaml:"exploitability" validate:"gte=1,lte=10"`
	AffectedUsers   int `json:"affected_users" yaml:"affected_users" validate:"gte=1,lte=10"`
	Discoverability int `json:"discoverability" yaml:"discoverability" validate:"gte=1,lte=10"`
}

// LoadCatalog reads and parses a catalog file. See ParseCatalog.
func LoadCatalog(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a catalog document, trying JSON first and falling back
// to YAML, then validates every record and builds the indexed catalog. Any
// structural or range violation fails with a ValidationError before any
// scoring or evaluation can run.
func ParseCatalog(data []byte) (*domain.Catalog, error) {
	var entries []threatEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		if yamlErr := yaml.Unmarshal(data, &entries); yamlErr != nil {
			return nil, fmt.Errorf("catalog is neither valid JSON nor valid YAML: %w", yamlErr)
		}
	}
	if len(entries) == 0 {
		return nil, &domain.ValidationError{Field: "catalog", Reason: "document contains no threats"}
	}

	records := make([]domain.ThreatRecord, 0, len(entries))
	for _, entry := range entries {
		rec, err := entry.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return domain.NewCatalog(records)
}

func (e threatEntry) toDomain() (domain.ThreatRecord, error) {
	if err := validate.Struct(e); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return domain.ThreatRecord{}, &domain.ValidationError{
				ThreatID: e.ID,
				Field:    f.Namespace(),
				Reason:   fmt.Sprintf("failed %q constraint", f.Tag()),
			}
		}
		return domain.ThreatRecord{}, fmt.Errorf("failed to validate threat entry: %w", err)
	}

	stride := make([]domain.StrideCategory, 0, len(e.Stride))
	for _, tag := range e.Stride {
		cat, ok := domain.ParseStrideCategory(tag)
		if !ok {
			return domain.ThreatRecord{}, &domain.ValidationError{
				ThreatID: e.ID,
				Field:    "stride",
				Reason:   fmt.Sprintf("unknown STRIDE category %q", tag),
			}
		}
		stride = append(stride, cat)
	}

	return domain.ThreatRecord{
		ID:          e.ID,
		Location:    e.Location,
		Description: e.Description,
		Stride:      stride,
		Dread: domain.DreadVector{
			Damage:          e.Dread.Damage,
			Reproducibility: e.Dread.Reproducibility,
			Exploitability:  e.Dread.Exploitability,
			AffectedUsers:   e.Dread.AffectedUsers,
			Discoverability: e.Dread.Discoverability,
		},
		Probability: e.Probability,
		Mitigations: e.Mitigations,
	}, nil
}
