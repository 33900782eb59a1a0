package domain

import "time"

// AssessmentKind distinguishes how a root compromise probability was obtained.
type AssessmentKind string

const (
	AssessmentAnalytic   AssessmentKind = "analytic"
	AssessmentSimulation AssessmentKind = "simulation"
)

// Assessment is one persisted evaluation run: a point-in-time record of the
// root compromise probability, kept so risk posture can be tracked over time.
type Assessment struct {
	ID              string         // UUID assigned by the caller
	Kind            AssessmentKind // analytic or simulation
	RootProbability float64
	Trials          int     // 0 for analytic runs
	Seed            int64   // 0 for analytic runs
	IntervalLow     float64 // 95% confidence bounds, equal to RootProbability for analytic runs
	IntervalHigh    float64
	CreatedAt       time.Time
}
