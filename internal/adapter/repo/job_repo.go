package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"assetforge/internal/domain"
)

// JobLogPG implements domain.JobLog using PostgreSQL.
type JobLogPG struct {
	pool *pgxpool.Pool
}

// NewJobLog creates a new job log backed by PostgreSQL.
func NewJobLog(pool *pgxpool.Pool) *JobLogPG {
	return &JobLogPG{pool: pool}
}

// SaveAll persists the attempt history of one asset. Attempts already
// recorded are left untouched.
func (r *JobLogPG) SaveAll(ctx context.Context, assetID string, jobs []domain.GenerationJob) error {
	if len(jobs) == 0 {
		return nil
	}

	query := `
INSERT INTO generation_jobs (id, asset_id, backend, attempt, prompt, outcome,
                             error_reason, cost, artifact_key, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING;
`
	for _, job := range jobs {
		j := job
		if _, err := r.pool.Exec(ctx, query, j.ID, assetID, j.Backend, j.Attempt, j.Prompt,
			j.Outcome, j.ErrorReason, j.Cost, j.ArtifactKey, j.StartedAt, j.FinishedAt); err != nil {
			return err
		}
	}
	return nil
}

// ListByAsset returns the recorded attempts for an asset, oldest first.
func (r *JobLogPG) ListByAsset(ctx context.Context, assetID string) ([]domain.GenerationJob, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, asset_id, backend, attempt, prompt, outcome, error_reason, cost, artifact_key, started_at, finished_at
FROM generation_jobs
WHERE asset_id = $1
ORDER BY attempt ASC;
`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		var j domain.GenerationJob
		if err := rows.Scan(&j.ID, &j.AssetID, &j.Backend, &j.Attempt, &j.Prompt, &j.Outcome,
			&j.ErrorReason, &j.Cost, &j.ArtifactKey, &j.StartedAt, &j.FinishedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
