package domain

// Catalog is the immutable, indexed collection of threat records. It preserves
// the input order for reporting while giving the evaluators O(1) lookup by id.
type Catalog struct {
	records []ThreatRecord
	byID    map[string]ThreatRecord
}

// NewCatalog validates every record and builds the id index. Duplicate ids and
// out-of-range fields fail with a ValidationError before the catalog exists.
func NewCatalog(records []ThreatRecord) (*Catalog, error) {
	byID := make(map[string]ThreatRecord, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[rec.ID]; dup {
			return nil, &ValidationError{ThreatID: rec.ID, Field: "id", Reason: "duplicate threat id"}
		}
		byID[rec.ID] = rec
	}

	c := &Catalog{
		records: make([]ThreatRecord, len(records)),
		byID:    byID,
	}
	copy(c.records, records)
	return c, nil
}

// Get returns the record for the given id.
func (c *Catalog) Get(id string) (ThreatRecord, bool) {
	rec, ok := c.byID[id]
	return rec, ok
}

// Records returns the records in their original file order. The returned slice
// is a copy; the catalog itself never mutates.
func (c *Catalog) Records() []ThreatRecord {
	out := make([]ThreatRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records in the catalog.
func (c *Catalog) Len() int {
	return len(c.records)
}
