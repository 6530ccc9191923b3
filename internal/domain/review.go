package domain

import "time"

// DecisionKind enumerates reviewer decisions.
type DecisionKind string

const (
	DecisionApprove    DecisionKind = "approve"
	DecisionReject     DecisionKind = "reject"
	DecisionRegenerate DecisionKind = "regenerate"
)

// ReviewDecision closes exactly one PendingReview transition. Decisions
// are append-only history on the asset.
type ReviewDecision struct {
	ID            string
	AssetID       string
	ReviewerID    string
	Decision      DecisionKind
	Reasoning     string
	Modifications string
	CreatedAt     time.Time
}
