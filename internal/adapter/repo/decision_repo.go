package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetforge/internal/domain"
)

// DecisionRepositoryPG implements domain.DecisionRepository using
// PostgreSQL.
type DecisionRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewDecisionRepository creates a new decision repository backed by
// PostgreSQL.
func NewDecisionRepository(pool *pgxpool.Pool) *DecisionRepositoryPG {
	return &DecisionRepositoryPG{pool: pool}
}

// Save inserts one reviewer decision.
func (r *DecisionRepositoryPG) Save(ctx context.Context, d *domain.ReviewDecision) error {
	query := `
INSERT INTO review_decisions (id, asset_id, reviewer_id, decision, reasoning, modifications, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query, d.ID, d.AssetID, d.ReviewerID, d.Decision, d.Reasoning, d.Modifications, d.CreatedAt)
	return err
}

// ListByAsset returns all decisions recorded for an asset, oldest
// first.
func (r *DecisionRepositoryPG) ListByAsset(ctx context.Context, assetID string) ([]domain.ReviewDecision, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, asset_id, reviewer_id, decision, reasoning, modifications, created_at
FROM review_decisions
WHERE asset_id = $1
ORDER BY created_at ASC;
`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.ReviewDecision
	for rows.Next() {
		var d domain.ReviewDecision
		if err := rows.Scan(&d.ID, &d.AssetID, &d.ReviewerID, &d.Decision, &d.Reasoning, &d.Modifications, &d.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}
