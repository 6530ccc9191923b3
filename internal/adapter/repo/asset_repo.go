package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetforge/internal/domain"
)

// AssetArchivePG implements domain.AssetArchive using PostgreSQL. The
// in-memory store stays authoritative; rows here are a write-behind
// audit trail of terminal assets.
type AssetArchivePG struct {
	pool *pgxpool.Pool
}

// NewAssetArchive constructs a new asset archive instance.
func NewAssetArchive(pool *pgxpool.Pool) *AssetArchivePG {
	return &AssetArchivePG{pool: pool}
}

// Save upserts one asset snapshot.
func (r *AssetArchivePG) Save(ctx context.Context, a *domain.Asset) error {
	profile, err := json.Marshal(a.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	query := `
INSERT INTO assets (id, title, description, kind, category, parent_id, priority, status,
                    attempts, cost_accrued, failure_reason, prompt, prompt_source,
                    artifact_key, permanent_key, profile, overrides, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    attempts = EXCLUDED.attempts,
    cost_accrued = EXCLUDED.cost_accrued,
    failure_reason = EXCLUDED.failure_reason,
    prompt = EXCLUDED.prompt,
    prompt_source = EXCLUDED.prompt_source,
    artifact_key = EXCLUDED.artifact_key,
    permanent_key = EXCLUDED.permanent_key,
    overrides = EXCLUDED.overrides,
    updated_at = EXCLUDED.updated_at;
`
	_, err = r.pool.Exec(ctx, query,
		a.ID, a.Title, a.Description, a.Kind, a.Category, a.ParentID, a.Priority, a.Status,
		a.Attempts, a.CostAccrued, a.FailureReason, a.Prompt, a.PromptSource,
		a.ArtifactKey, a.PermanentKey, profile, a.Overrides, a.CreatedAt, a.UpdatedAt)
	return err
}
