package domain

// StrideCategory classifies a threat under the STRIDE taxonomy.
type StrideCategory string

const (
	Spoofing              StrideCategory = "Spoofing"
	Tampering             StrideCategory = "Tampering"
	Repudiation           StrideCategory = "Repudiation"
	InformationDisclosure StrideCategory = "InformationDisclosure"
	DenialOfService       StrideCategory = "DenialOfService"
	ElevationOfPrivilege  StrideCategory = "ElevationOfPrivilege"
)

// ParseStrideCategory maps a raw tag from a catalog file to a StrideCategory.
// Unknown tags are rejected at the boundary, never carried into the model.
func ParseStrideCategory(tag string) (StrideCategory, bool) {
	switch StrideCategory(tag) {
	case Spoofing, Tampering, Repudiation, InformationDisclosure, DenialOfService, ElevationOfPrivilege:
		return StrideCategory(tag), true
	}
	return "", false
}

// DreadVector holds the five DREAD sub-scores, each in [1,10].
type DreadVector struct {
	Damage          int
	Reproducibility int
	Exploitability  int
	AffectedUsers   int
	Discoverability int
}

// ThreatRecord is a single modeled threat against the device.
// Records are built once by a loader and are read-only afterwards.
type ThreatRecord struct {
	ID          string           // Stable identifier, shared with attack tree leaves
	Location    string           // Affected system component (free text)
	Description string           // Free text
	Stride      []StrideCategory // Non-empty set of STRIDE tags
	Dread       DreadVector      // Sub-scores, each in [1,10]
	Probability float64          // Standalone occurrence likelihood in [0,1]
	Mitigations []string         // Ordered suggestions
}

// Validate checks the record invariants: non-empty id, at least one STRIDE
// tag, every DREAD sub-score in [1,10] and probability in [0,1].
func (t ThreatRecord) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Reason: "threat id must not be empty"}
	}
	if len(t.Stride) == 0 {
		return &ValidationError{ThreatID: t.ID, Field: "stride", Reason: "at least one STRIDE category is required"}
	}
	for field, v := range map[string]int{
		"damage":          t.Dread.Damage,
		"reproducibility": t.Dread.Reproducibility,
		"exploitability":  t.Dread.Exploitability,
		"affected_users":  t.Dread.AffectedUsers,
		"discoverability": t.Dread.Discoverability,
	} {
		if v < 1 || v > 10 {
			return &ValidationError{ThreatID: t.ID, Field: "dread." + field, Reason: "sub-score must be in [1,10]"}
		}
	}
	if t.Probability < 0 || t.Probability > 1 {
		return &ValidationError{ThreatID: t.ID, Field: "probability", Reason: "probability must be in [0,1]"}
	}
	return nil
}
