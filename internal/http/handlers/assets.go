package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"assetforge/internal/domain"
	"assetforge/internal/pipeline"
)

type enqueueAssetRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
	ParentID    string `json:"parent_id"`
	Priority    int    `json:"priority"`
}

type assetResponse struct {
	ID            string                  `json:"id"`
	Title         string                  `json:"title"`
	Description   string                  `json:"description,omitempty"`
	Kind          string                  `json:"kind"`
	Category      string                  `json:"category,omitempty"`
	ParentID      string                  `json:"parent_id,omitempty"`
	Priority      int                     `json:"priority,omitempty"`
	Status        string                  `json:"status"`
	Attempts      int                     `json:"attempts"`
	CostAccrued   float64                 `json:"cost_accrued"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	Prompt        string                  `json:"prompt,omitempty"`
	PromptSource  string                  `json:"prompt_source,omitempty"`
	ArtifactKey   string                  `json:"artifact_key,omitempty"`
	PermanentKey  string                  `json:"permanent_key,omitempty"`
	Overrides     []string                `json:"overrides,omitempty"`
	Profile       domain.EmotionalProfile `json:"profile"`
	Jobs          []jobView               `json:"jobs,omitempty"`
	Decisions     []decisionView          `json:"decisions,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

type jobView struct {
	ID          string    `json:"id"`
	Backend     string    `json:"backend"`
	Attempt     int       `json:"attempt"`
	Outcome     string    `json:"outcome"`
	ErrorReason string    `json:"error_reason,omitempty"`
	Cost        float64   `json:"cost"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

type decisionView struct {
	ID            string    `json:"id"`
	ReviewerID    string    `json:"reviewer_id,omitempty"`
	Decision      string    `json:"decision"`
	Reasoning     string    `json:"reasoning,omitempty"`
	Modifications string    `json:"modifications,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAssetResponse(a domain.Asset) assetResponse {
	resp := assetResponse{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		Kind:          string(a.Kind),
		Category:      a.Category,
		ParentID:      a.ParentID,
		Priority:      a.Priority,
		Status:        string(a.Status),
		Attempts:      a.Attempts,
		CostAccrued:   a.CostAccrued,
		FailureReason: a.FailureReason,
		Prompt:        a.Prompt,
		PromptSource:  a.PromptSource,
		ArtifactKey:   a.ArtifactKey,
		PermanentKey:  a.PermanentKey,
		Overrides:     a.Overrides,
		Profile:       a.Profile,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	for _, j := range a.Jobs {
		resp.Jobs = append(resp.Jobs, jobView{
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
	for _, d := range a.Decisions {
		resp.Decisions = append(resp.Decisions, decisionView{
			ID:            d.ID,
			ReviewerID:    d.ReviewerID,
			Decision:      string(d.Decision),
			Reasoning:     d.Reasoning,
			Modifications: d.Modifications,
			CreatedAt:     d.CreatedAt,
		})
	}
	return resp
}

// EnqueueAsset accepts new content for generation.
func (a *App) EnqueueAsset(w http.ResponseWriter, r *http.Request) {
	var req enqueueAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title is required")
		return
	}
	kind := domain.AssetKind(req.Kind)
	switch kind {
	case "", domain.AssetKindIcon, domain.AssetKindCover, domain.AssetKindTexture:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported asset kind")
		return
	}

	asset, err := a.Scheduler.Enqueue(r.Context(), pipeline.EnqueueRequest{
		Title:       req.Title,
		Description: req.Description,
		Kind:        kind,
		Category:    req.Category,
		ParentID:    req.ParentID,
		Priority:    req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEnqueueRefused):
			a.error(w, http.StatusConflict, "budget_exhausted", "pipeline is paused on budget; new assets are refused")
		case errors.Is(err, domain.ErrPipelineAborted):
			a.error(w, http.StatusConflict, "aborted", "pipeline run was aborted")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		}
		return
	}
	a.json(w, http.StatusAccepted, toAssetResponse(asset))
}

// ListAssets returns all assets, optionally filtered by status.
func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	status := domain.AssetStatus(r.URL.Query().Get("status"))
	assets := a.Assets.List(status)
	items := make([]assetResponse, 0, len(assets))
	for _, asset := range assets {
		items = append(items, toAssetResponse(asset))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GetAsset returns one asset by id.
func (a *App) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	a.json(w, http.StatusOK, toAssetResponse(asset))
}

// ResetAsset is the manual operator reset of a failed asset.
func (a *App) ResetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Scheduler.Reset(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			a.error(w, http.StatusConflict, "invalid_transition", "only failed assets can be reset")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "reset failed")
		}
		return
	}
	asset, err := a.Assets.Get(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	a.json(w, http.StatusOK, toAssetResponse(asset))
}

// GetArtifact serves the stored artifact bytes for an asset, preferring
// the permanent copy.
func (a *App) GetArtifact(w http.ResponseWriter, r *http.Request) {
	asset, err := a.Assets.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	key := asset.PermanentKey
	if key == "" {
		key = asset.ArtifactKey
	}
	if key == "" {
		a.error(w, http.StatusNotFound, "not_found", "asset has no artifact")
		return
	}
	data, err := a.Artifacts.Read(r.Context(), key)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "artifact unavailable")
		return
	}
	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeForKey(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
