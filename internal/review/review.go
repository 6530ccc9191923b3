package review

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assetforge/internal/domain"
	"assetforge/internal/events"
)

// Assets is the slice of the authoritative store the workflow needs.
// Satisfied by *pipeline.Store.
type Assets interface {
	Get(id string) (domain.Asset, error)
	Update(id string, fn func(a *domain.Asset) error) (domain.Asset, error)
	List(status domain.AssetStatus) []domain.Asset
}

// Regenerator requeues an asset for another generation round.
// Satisfied by *pipeline.Pipeline.
type Regenerator interface {
	Regenerate(ctx context.Context, id, modifications string) error
}

// ArtifactPromoter moves an approved artifact from transient to
// permanent storage, or removes a rejected one. Satisfied by
// *storage.FileStore.
type ArtifactPromoter interface {
	Promote(ctx context.Context, transientKey, permanentKey string) (string, error)
	Delete(ctx context.Context, key string) error
}

// DecisionRequest is one reviewer verdict on a PendingReview asset.
type DecisionRequest struct {
	AssetID       string
	Decision      domain.DecisionKind
	ReviewerID    string
	Reasoning     string
	Modifications string
}

// Workflow applies review decisions: exactly one decision closes each
// PendingReview state, artifacts move to the library on approval, and
// every verdict feeds the preference learner.
type Workflow struct {
	assets    Assets
	regen     Regenerator
	storage   ArtifactPromoter
	learner   *Learner
	decisions domain.DecisionRepository
	events    *events.Broadcaster
	logger    zerolog.Logger
}

func NewWorkflow(assets Assets, regen Regenerator, storage ArtifactPromoter, learner *Learner, decisions domain.DecisionRepository, bc *events.Broadcaster, logger zerolog.Logger) *Workflow {
	return &Workflow{
		assets:    assets,
		regen:     regen,
		storage:   storage,
		learner:   learner,
		decisions: decisions,
		events:    bc,
		logger:    logger,
	}
}

// Decide applies one verdict. Only PendingReview assets accept a
// decision; a second decision on the same asset fails with an invalid
// transition, so concurrent reviewers cannot double-close it.
func (w *Workflow) Decide(ctx context.Context, req DecisionRequest) (domain.Asset, error) {
	var target domain.AssetStatus
	switch req.Decision {
	case domain.DecisionApprove:
		target = domain.AssetStatusApproved
	case domain.DecisionReject:
		target = domain.AssetStatusRejected
	case domain.DecisionRegenerate:
		target = domain.AssetStatusRegenerating
	default:
		return domain.Asset{}, fmt.Errorf("unknown decision %q", req.Decision)
	}

	decision := domain.ReviewDecision{
		ID:            uuid.NewString(),
		AssetID:       req.AssetID,
		ReviewerID:    req.ReviewerID,
		Decision:      req.Decision,
		Reasoning:     req.Reasoning,
		Modifications: req.Modifications,
		CreatedAt:     time.Now().UTC(),
	}

	snap, err := w.assets.Update(req.AssetID, func(a *domain.Asset) error {
		if a.Status != domain.AssetStatusPendingReview {
			return fmt.Errorf("%w: decide from %s", domain.ErrInvalidTransition, a.Status)
		}
		a.Status = target
		a.Decisions = append(a.Decisions, decision)
		return nil
	})
	if err != nil {
		return domain.Asset{}, err
	}

	log := w.logger.With().Str("asset_id", snap.ID).Str("decision", string(req.Decision)).Logger()

	switch req.Decision {
	case domain.DecisionApprove:
		snap = w.promote(ctx, snap, log)
		w.learner.Observe(descriptorsOf(snap), true)
	case domain.DecisionReject:
		snap = w.discard(ctx, snap, log)
		w.learner.Observe(descriptorsOf(snap), false)
	case domain.DecisionRegenerate:
		if err := w.regen.Regenerate(ctx, snap.ID, req.Modifications); err != nil {
			return snap, fmt.Errorf("requeue for regeneration: %w", err)
		}
		// Asking for another round means this rendition missed the mark.
		w.learner.Observe(descriptorsOf(snap), false)
	}

	if w.decisions != nil {
		if err := w.decisions.Save(ctx, &decision); err != nil {
			log.Error().Err(err).Msg("review: persist decision")
		}
	}
	w.events.Publish(domain.EventReviewDecided, snap.ID, map[string]any{
		"decision": string(req.Decision),
		"reviewer": req.ReviewerID,
	})
	log.Info().Msg("review: decision applied")
	return snap, nil
}

// Pending lists assets awaiting review, oldest first.
func (w *Workflow) Pending() []domain.Asset {
	return w.assets.List(domain.AssetStatusPendingReview)
}

func (w *Workflow) promote(ctx context.Context, a domain.Asset, log zerolog.Logger) domain.Asset {
	if a.ArtifactKey == "" {
		log.Warn().Msg("review: approved asset has no artifact")
		return a
	}
	permanent := fmt.Sprintf("library/%s/%s%s", a.Kind, a.ID, path.Ext(a.ArtifactKey))
	storedKey, err := w.storage.Promote(ctx, a.ArtifactKey, permanent)
	if err != nil {
		// The asset stays approved; the artifact is still readable at its
		// transient key until promotion is retried out of band.
		log.Error().Err(err).Msg("review: promote artifact")
		return a
	}
	updated, uerr := w.assets.Update(a.ID, func(cur *domain.Asset) error {
		cur.PermanentKey = storedKey
		cur.ArtifactKey = ""
		return nil
	})
	if uerr != nil {
		log.Error().Err(uerr).Msg("review: record permanent key")
		return a
	}
	return updated
}

func (w *Workflow) discard(ctx context.Context, a domain.Asset, log zerolog.Logger) domain.Asset {
	if a.ArtifactKey == "" {
		return a
	}
	if err := w.storage.Delete(ctx, a.ArtifactKey); err != nil {
		log.Warn().Err(err).Msg("review: delete rejected artifact")
	}
	updated, err := w.assets.Update(a.ID, func(cur *domain.Asset) error {
		cur.ArtifactKey = ""
		return nil
	})
	if err != nil {
		return a
	}
	return updated
}

// descriptorsOf mirrors the descriptor set the scorer feeds to the
// style bias, so learning and scoring speak about the same vocabulary.
func descriptorsOf(a domain.Asset) []string {
	out := append(append([]string(nil), a.Profile.Palette...), a.Profile.Symbols...)
	if a.Profile.PrimaryEmotion != "" {
		out = append(out, a.Profile.PrimaryEmotion)
	}
	return out
}
