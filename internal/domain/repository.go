package domain

import "context"

// AssetArchive persists terminal assets for audit. The in-memory store
// stays authoritative; archive writes are never on the hot path.
type AssetArchive interface {
	Save(ctx context.Context, asset *Asset) error
}

// JobLog persists the full attempt history of an asset.
type JobLog interface {
	SaveAll(ctx context.Context, assetID string, jobs []GenerationJob) error
}

// DecisionRepository persists reviewer decisions.
type DecisionRepository interface {
	Save(ctx context.Context, decision *ReviewDecision) error
	ListByAsset(ctx context.Context, assetID string) ([]ReviewDecision, error)
}
