package domain

import "time"

// JobOutcome enumerates how a generation attempt ended.
type JobOutcome string

const (
	JobOutcomeSucceeded  JobOutcome = "succeeded"
	JobOutcomeBelowFloor JobOutcome = "below_floor"
	JobOutcomeRetryable  JobOutcome = "retryable_error"
	JobOutcomeFatal      JobOutcome = "fatal_error"
)

// GenerationJob is one attempt to render an Asset. An asset has at most
// one in-flight job at any time; finished jobs form the attempt log.
type GenerationJob struct {
	ID          string
	AssetID     string
	Backend     string
	Attempt     int
	Prompt      string
	Outcome     JobOutcome
	ErrorReason string
	// Cost is the amount actually charged to the session ledger for
	// this attempt; zero for uncharged timeouts.
	Cost        float64
	ArtifactKey string
	StartedAt   time.Time
	FinishedAt  time.Time
}
