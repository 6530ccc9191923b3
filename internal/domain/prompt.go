package domain

// AxisScores holds the per-axis quality scores of a candidate, each in
// the 0..10 range, plus the weighted combination.
type AxisScores struct {
	Technical     float64
	Compositional float64
	Style         float64
	Emotional     float64
	Weighted      float64
}

// PromptCandidate is one model backend's entry in a competition round.
// Candidates are ephemeral; only the winner is retained on the Asset.
type PromptCandidate struct {
	Source string
	Text   string
	Cost   float64
	Scores AxisScores
}

// BackendFailure records a model backend that errored or timed out
// during a competition round. Partial degradation, not failure.
type BackendFailure struct {
	Backend string
	Reason  string
}

// CompetitionResult is the outcome of one competition round.
type CompetitionResult struct {
	Winner   PromptCandidate
	Ranked   []PromptCandidate
	Failures []BackendFailure
}
