package domain

import (
	"sort"
)

// RiskTier is the banded severity derived from a threat's DREAD score.
type RiskTier string

const (
	TierLow      RiskTier = "Low"
	TierMedium   RiskTier = "Medium"
	TierHigh     RiskTier = "High"
	TierCritical RiskTier = "Critical"
)

// Tier band boundaries are a fixed policy, not configuration. The bands are
// monotone in the score and cover the whole [1,10] range.
const (
	criticalFloor = 9.0
	highFloor     = 7.0
	mediumFloor   = 4.0
)

// ScoredThreat pairs a catalog record with its derived DREAD aggregate and
// tier. Derived on demand; the source record is never mutated.
type ScoredThreat struct {
	ThreatRecord
	DreadScore float64
	Tier       RiskTier
}

// ScoreThreat computes the aggregate DREAD score as the arithmetic mean of the
// five sub-scores and derives the risk tier. This is a pure domain function
// with no I/O dependencies. Out-of-range sub-scores fail with ValidationError.
func ScoreThreat(rec ThreatRecord) (ScoredThreat, error) {
	if err := rec.Validate(); err != nil {
		return ScoredThreat{}, err
	}

	d := rec.Dread
	score := float64(d.Damage+d.Reproducibility+d.Exploitability+d.AffectedUsers+d.Discoverability) / 5.0

	return ScoredThreat{
		ThreatRecord: rec,
		DreadScore:   score,
		Tier:         TierForScore(score),
	}, nil
}

// TierForScore maps a DREAD score to its band. Monotone: a higher score never
// yields a lower tier.
func TierForScore(score float64) RiskTier {
	switch {
	case score >= criticalFloor:
		return TierCritical
	case score >= highFloor:
		return TierHigh
	case score >= mediumFloor:
		return TierMedium
	default:
		return TierLow
	}
}

// ScoreAndRank scores every record in the catalog and returns the result in
// ranked order: DREAD score descending, then probability descending, then id
// ascending. The ordering is total, so repeated runs on the same catalog (in
// any input order) always produce the same sequence. Either the full ranked
// sequence is produced or an error is returned before any output.
func ScoreAndRank(c *Catalog) ([]ScoredThreat, error) {
	scored := make([]ScoredThreat, 0, c.Len())
	for _, rec := range c.Records() {
		s, err := ScoreThreat(rec)
		if err != nil {
			return nil, err
		}
		scored = append(scored, s)
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.DreadScore != b.DreadScore {
			return a.DreadScore > b.DreadScore
		}
		if a.Probability != b.Probability {
			return a.Probability > b.Probability
		}
		return a.ID < b.ID
	})

	return scored, nil
}
