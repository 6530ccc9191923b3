package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListAssetDecisions returns the decision history of one asset, read
// from the archive when one is configured so it survives restarts.
func (a *App) ListAssetDecisions(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}

	decisions := asset.Decisions
	if a.Decisions != nil {
		archived, aerr := a.Decisions.ListByAsset(r.Context(), asset.ID)
		if aerr != nil {
			a.Logger.Error().Err(aerr).Str("asset_id", asset.ID).Msg("http: read decision archive")
		} else {
			decisions = archived
		}
	}

	items := make([]decisionView, 0, len(decisions))
	for _, d := range decisions {
		items = append(items, decisionView{
			ID:            d.ID,
			ReviewerID:    d.ReviewerID,
			Decision:      string(d.Decision),
			Reasoning:     d.Reasoning,
			Modifications: d.Modifications,
			CreatedAt:     d.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ListAssetJobs returns the attempt log of one asset, archive first.
func (a *App) ListAssetJobs(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}

	jobs := asset.Jobs
	if a.Jobs != nil {
		archived, aerr := a.Jobs.ListByAsset(r.Context(), asset.ID)
		if aerr != nil {
			a.Logger.Error().Err(aerr).Str("asset_id", asset.ID).Msg("http: read job archive")
		} else {
			jobs = archived
		}
	}

	items := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, jobView{
			ID:          j.ID,
			Backend:     j.Backend,
			Attempt:     j.Attempt,
			Outcome:     string(j.Outcome),
			ErrorReason: j.ErrorReason,
			Cost:        j.Cost,
			StartedAt:   j.StartedAt,
			FinishedAt:  j.FinishedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
