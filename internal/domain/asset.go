package domain

import "time"

// AssetKind enumerates the visual asset types the pipeline produces.
type AssetKind string

const (
	AssetKindIcon    AssetKind = "icon"
	AssetKindCover   AssetKind = "cover"
	AssetKindTexture AssetKind = "texture"
)

// AssetStatus enumerates asset lifecycle states.
type AssetStatus string

const (
	AssetStatusQueued        AssetStatus = "queued"
	AssetStatusGenerating    AssetStatus = "generating"
	AssetStatusScoring       AssetStatus = "scoring"
	AssetStatusPendingReview AssetStatus = "pending_review"
	AssetStatusApproved      AssetStatus = "approved"
	AssetStatusRejected      AssetStatus = "rejected"
	AssetStatusRegenerating  AssetStatus = "regenerating"
	AssetStatusFailed        AssetStatus = "failed"
)

// Terminal reports whether no further automatic transition can occur.
func (s AssetStatus) Terminal() bool {
	return s == AssetStatusApproved || s == AssetStatusRejected || s == AssetStatusFailed
}

// Asset is one unit of generation work. All mutation goes through the
// pipeline store's transition discipline; copies handed out elsewhere
// are snapshots.
type Asset struct {
	ID          string
	Title       string
	Description string
	Kind        AssetKind
	Category    string
	ParentID    string
	Priority    int

	Profile EmotionalProfile

	Status        AssetStatus
	Attempts      int
	CostAccrued   float64
	FailureReason string

	// Winning prompt retained from the latest competition round.
	Prompt       string
	PromptSource string

	// ArtifactKey is the transient location while under review;
	// PermanentKey is set on approval, after which ArtifactKey is empty.
	ArtifactKey  string
	PermanentKey string

	// Overrides are reviewer modification notes appended to the next
	// competition round's meta-prompt.
	Overrides []string

	Jobs      []GenerationJob
	Decisions []ReviewDecision

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentJob returns the most recent generation job, if any.
func (a *Asset) CurrentJob() *GenerationJob {
	if len(a.Jobs) == 0 {
		return nil
	}
	return &a.Jobs[len(a.Jobs)-1]
}
