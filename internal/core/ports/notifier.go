package ports

// Notifier defines the interface for pushing assessment outcomes to external
// systems.
type Notifier interface {
	// NotifyCompromiseRisk sends a notification when an assessment's root
	// compromise probability crosses the configured alert threshold.
	NotifyCompromiseRisk(alert CompromiseAlert) error
}

// CompromiseAlert carries everything a notification channel needs to render an
// actionable message.
type CompromiseAlert struct {
	RootProbability float64
	Threshold       float64
	Kind            string // "analytic" or "simulation"
	Trials          int    // 0 for analytic assessments
	IntervalLow     float64
	IntervalHigh    float64
	TopThreats      []TopThreat // Highest-ranked catalog threats for context
}

// TopThreat is a compact ranked-threat summary embedded in notifications.
type TopThreat struct {
	ID          string
	DreadScore  float64
	Tier        string
	Description string
}
