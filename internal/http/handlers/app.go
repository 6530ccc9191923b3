package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"assetforge/internal/domain"
	"assetforge/internal/events"
	"assetforge/internal/pipeline"
	"assetforge/internal/review"
)

// Scheduler is the pipeline surface the handlers need.
type Scheduler interface {
	Enqueue(ctx context.Context, req pipeline.EnqueueRequest) (domain.Asset, error)
	Reset(ctx context.Context, id string) error
	Budget() domain.SessionBudget
}

// Reviewer applies review decisions.
type Reviewer interface {
	Decide(ctx context.Context, req review.DecisionRequest) (domain.Asset, error)
	Pending() []domain.Asset
}

// AssetReader reads asset snapshots from the authoritative store.
type AssetReader interface {
	Get(id string) (domain.Asset, error)
	List(status domain.AssetStatus) []domain.Asset
}

// ArtifactReader serves stored artifact bytes.
type ArtifactReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// DecisionArchive reads persisted review decisions. Optional; history
// endpoints fall back to the in-memory asset record without it.
type DecisionArchive interface {
	ListByAsset(ctx context.Context, assetID string) ([]domain.ReviewDecision, error)
}

// JobArchive reads the persisted attempt log. Optional, same fallback.
type JobArchive interface {
	ListByAsset(ctx context.Context, assetID string) ([]domain.GenerationJob, error)
}

type App struct {
	Scheduler Scheduler
	Assets    AssetReader
	Review    Reviewer
	Events    *events.Broadcaster
	Artifacts ArtifactReader
	Decisions DecisionArchive
	Jobs      JobArchive
	Logger    zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, detail string) {
	a.json(w, code, map[string]string{"error": slug, "detail": detail})
}
