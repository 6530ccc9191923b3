package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetforge/internal/domain"
	"assetforge/internal/review"
)

type decisionRequest struct {
	Decision      string `json:"decision"`
	ReviewerID    string `json:"reviewer_id"`
	Reasoning     string `json:"reasoning"`
	Modifications string `json:"modifications"`
}

// DecideAsset applies a reviewer verdict to a pending asset.
func (a *App) DecideAsset(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	asset, err := a.Review.Decide(r.Context(), review.DecisionRequest{
		AssetID:       chi.URLParam(r, "id"),
		Decision:      domain.DecisionKind(req.Decision),
		ReviewerID:    req.ReviewerID,
		Reasoning:     req.Reasoning,
		Modifications: req.Modifications,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			a.error(w, http.StatusConflict, "invalid_transition", "asset is not awaiting review")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		}
		return
	}
	a.json(w, http.StatusOK, toAssetResponse(asset))
}

// ListPending returns the review queue.
func (a *App) ListPending(w http.ResponseWriter, r *http.Request) {
	pending := a.Review.Pending()
	items := make([]assetResponse, 0, len(pending))
	for _, asset := range pending {
		items = append(items, toAssetResponse(asset))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
