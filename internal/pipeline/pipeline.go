package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"assetforge/internal/competition"
	"assetforge/internal/domain"
	"assetforge/internal/events"
	"assetforge/internal/scoring"
)

// RenderParams carries the normalized request passed to any generation
// backend.
type RenderParams struct {
	Kind        domain.AssetKind
	AspectRatio string
	Palette     []string
}

// Artifact is a rendered result prior to persistence.
type Artifact struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// RenderBackend is the generation backend capability. Concrete
// providers live in internal/providers/render and are never referenced
// by name in the core.
type RenderBackend interface {
	Name() string
	Render(ctx context.Context, prompt string, params RenderParams) (Artifact, error)
	CostPerCall() float64
}

// ArtifactStore is the transient artifact sink used while an asset
// awaits review.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ArtifactScorer validates rendered artifacts against the acceptance
// floor. Satisfied by scoring.Scorer.
type ArtifactScorer interface {
	ScoreArtifact(info scoring.ArtifactInfo, profile domain.EmotionalProfile) domain.AxisScores
}

// ProfileAnalyzer derives the emotional profile at enqueue time.
type ProfileAnalyzer interface {
	Analyze(title, description, category string) domain.EmotionalProfile
}

// Config tunes the pipeline scheduler.
type Config struct {
	Workers         int
	AcceptanceFloor float64
	RenderTimeout   time.Duration
	// ChargeRetryableFailures charges completed-but-retryable failures
	// to the ledger. Timeouts before any response never charge.
	ChargeRetryableFailures bool
}

// Options wires the pipeline's collaborators.
type Options struct {
	Store         *Store
	Budget        *Ledger
	Limiter       *Limiter
	Retry         RetryPolicy
	Analyzer      ProfileAnalyzer
	Orchestrator  *competition.Orchestrator
	ModelBackends []competition.Backend
	Renderer      RenderBackend
	Scorer        ArtifactScorer
	Artifacts     ArtifactStore
	Events        *events.Broadcaster
	Archive       domain.AssetArchive
	JobLog        domain.JobLog
	Config        Config
	Logger        zerolog.Logger
}

const (
	pauseReasonManual = "operator"
	pauseReasonBudget = "budget"
)

// Pipeline is the core scheduler: it owns dispatch over the
// authoritative store, the budget ledger, rate limiting, retries, and
// the asset state machine. One dispatcher goroutine assigns work to a
// bounded worker pool; control commands are only applied between job
// starts.
type Pipeline struct {
	cfg       Config
	store     *Store
	budget    *Ledger
	limiter   *Limiter
	retry     RetryPolicy
	analyzer  ProfileAnalyzer
	orch      *competition.Orchestrator
	models    []competition.Backend
	renderer  RenderBackend
	scorer    ArtifactScorer
	artifacts ArtifactStore
	events    *events.Broadcaster
	archive   domain.AssetArchive
	jobLog    domain.JobLog
	logger    zerolog.Logger

	wake chan struct{}
	wg   sync.WaitGroup

	mu          sync.Mutex
	paused      bool
	pauseReason string
	aborted     bool
}

func New(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 60 * time.Second
	}
	return &Pipeline{
		cfg:       cfg,
		store:     opts.Store,
		budget:    opts.Budget,
		limiter:   opts.Limiter,
		retry:     opts.Retry,
		analyzer:  opts.Analyzer,
		orch:      opts.Orchestrator,
		models:    opts.ModelBackends,
		renderer:  opts.Renderer,
		scorer:    opts.Scorer,
		artifacts: opts.Artifacts,
		events:    opts.Events,
		archive:   opts.Archive,
		jobLog:    opts.JobLog,
		logger:    opts.Logger,
		wake:      make(chan struct{}, 1),
	}
}

// EnqueueRequest describes content submitted for generation.
type EnqueueRequest struct {
	Title       string
	Description string
	Kind        domain.AssetKind
	Category    string
	ParentID    string
	Priority    int
}

// Enqueue analyzes the content and adds a new Queued asset. New assets
// are refused while the pipeline is paused for budget exhaustion;
// in-flight assets are unaffected.
func (p *Pipeline) Enqueue(ctx context.Context, req EnqueueRequest) (domain.Asset, error) {
	if req.Title == "" {
		return domain.Asset{}, fmt.Errorf("title is required")
	}
	p.mu.Lock()
	if p.aborted {
		p.mu.Unlock()
		return domain.Asset{}, domain.ErrPipelineAborted
	}
	if p.paused && p.pauseReason == pauseReasonBudget {
		p.mu.Unlock()
		return domain.Asset{}, domain.ErrEnqueueRefused
	}
	p.mu.Unlock()

	now := time.Now().UTC()
	a := domain.Asset{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Kind:        req.Kind,
		Category:    req.Category,
		ParentID:    req.ParentID,
		Priority:    req.Priority,
		Profile:     p.analyzer.Analyze(req.Title, req.Description, req.Category),
		Status:      domain.AssetStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if a.Kind == "" {
		a.Kind = domain.AssetKindIcon
	}
	if err := p.store.Put(a); err != nil {
		return domain.Asset{}, err
	}
	p.store.Enqueue(a.ID, a.Priority, now)
	p.events.Publish(domain.EventAssetEnqueued, a.ID, map[string]any{
		"title":             a.Title,
		"kind":              string(a.Kind),
		"life_stage":        a.Profile.LifeStage,
		"profile_defaulted": a.Profile.Defaulted,
	})
	p.notify()
	return a, nil
}

// Run drives dispatch until the context ends or the run is aborted.
// In-flight jobs always complete; their outcomes are recorded either
// way.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info().Int("workers", p.cfg.Workers).Msg("pipeline: started")
	sem := make(chan struct{}, p.cfg.Workers)

	for {
		// Control commands are applied here, between job starts, never
		// mid-call.
		select {
		case cmd := <-p.events.Control():
			p.applyControl(cmd)
			continue
		case <-ctx.Done():
			p.wg.Wait()
			return ctx.Err()
		default:
		}

		if p.isAborted() {
			break
		}
		if p.isPaused() {
			if err := p.waitSignal(ctx, time.Hour); err != nil {
				p.wg.Wait()
				return err
			}
			continue
		}

		id, wait, ok := p.store.NextReady(time.Now())
		if !ok {
			if wait <= 0 || wait > time.Second {
				wait = time.Second
			}
			if err := p.waitSignal(ctx, wait); err != nil {
				p.wg.Wait()
				return err
			}
			continue
		}

		select {
		case sem <- struct{}{}:
		case cmd := <-p.events.Control():
			p.requeueFront(id)
			p.applyControl(cmd)
			continue
		case <-ctx.Done():
			p.requeueFront(id)
			p.wg.Wait()
			return ctx.Err()
		}

		cost := p.renderer.CostPerCall()
		if err := p.budget.Reserve(cost); err != nil {
			<-sem
			p.requeueFront(id)
			p.pauseForBudget()
			continue
		}

		snap, err := p.store.Update(id, func(a *domain.Asset) error {
			a.Status = domain.AssetStatusGenerating
			return nil
		})
		if err != nil {
			// The asset left Queued between pop and dispatch (skip or
			// abort won the race); nothing was charged.
			p.budget.Release(cost)
			<-sem
			continue
		}
		p.publishStage(snap.ID, domain.AssetStatusQueued, domain.AssetStatusGenerating, nil)

		p.wg.Add(1)
		go func() {
			defer func() {
				<-sem
				p.wg.Done()
				p.notify()
			}()
			p.process(ctx, snap, cost)
		}()
	}

	p.wg.Wait()
	p.logger.Info().Msg("pipeline: stopped")
	return nil
}

// process runs one generation attempt end to end: competition, rate
// limit, render, scoring, and the resulting transition.
func (p *Pipeline) process(ctx context.Context, a domain.Asset, reserved float64) {
	attempt := a.Attempts + 1
	log := p.logger.With().Str("asset_id", a.ID).Int("attempt", attempt).Logger()

	meta := competition.ComposeMetaPrompt(&a)
	result, err := p.orch.Compete(ctx, meta, a.Profile, p.models)
	if err != nil {
		p.budget.Release(reserved)
		p.concludeAttempt(a.ID, domain.GenerationJob{
			ID:          uuid.NewString(),
			AssetID:     a.ID,
			Backend:     "competition",
			Attempt:     attempt,
			Outcome:     domain.JobOutcomeRetryable,
			ErrorReason: err.Error(),
			StartedAt:   time.Now().UTC(),
			FinishedAt:  time.Now().UTC(),
		}, true)
		return
	}
	if _, err := p.store.Update(a.ID, func(cur *domain.Asset) error {
		cur.Prompt = result.Winner.Text
		cur.PromptSource = result.Winner.Source
		return nil
	}); err != nil {
		p.budget.Release(reserved)
		log.Error().Err(err).Msg("pipeline: store winning prompt")
		return
	}
	p.events.Publish(domain.EventCompetitionCompleted, a.ID, map[string]any{
		"winner":     result.Winner.Source,
		"score":      result.Winner.Scores.Weighted,
		"candidates": len(result.Ranked),
		"failures":   len(result.Failures),
	})

	if err := p.limiter.Acquire(ctx); err != nil {
		// Shutdown while waiting for a token: nothing was called,
		// nothing is charged, the asset goes back to the queue.
		p.budget.Release(reserved)
		if _, uerr := p.store.Update(a.ID, func(cur *domain.Asset) error {
			cur.Status = domain.AssetStatusQueued
			return nil
		}); uerr == nil {
			p.requeueFront(a.ID)
		}
		return
	}

	job := domain.GenerationJob{
		ID:        uuid.NewString(),
		AssetID:   a.ID,
		Backend:   p.renderer.Name(),
		Attempt:   attempt,
		Prompt:    result.Winner.Text,
		StartedAt: time.Now().UTC(),
	}
	p.events.Publish(domain.EventJobStarted, a.ID, map[string]any{
		"backend": job.Backend,
		"attempt": attempt,
	})

	renderCtx, cancel := context.WithTimeout(ctx, p.cfg.RenderTimeout)
	artifact, err := p.renderer.Render(renderCtx, result.Winner.Text, RenderParams{
		Kind:        a.Kind,
		AspectRatio: aspectFor(a.Kind),
		Palette:     a.Profile.Palette,
	})
	cancel()
	job.FinishedAt = time.Now().UTC()

	if err != nil {
		retryable := domain.IsRetryable(err)
		charge := !retryable || (p.cfg.ChargeRetryableFailures && domain.CallCompleted(err))
		if charge {
			p.budget.Commit(a.ID, reserved)
			job.Cost = reserved
			p.publishBudget()
		} else {
			p.budget.Release(reserved)
		}
		job.ErrorReason = err.Error()
		job.Outcome = domain.JobOutcomeFatal
		if retryable {
			job.Outcome = domain.JobOutcomeRetryable
		}
		log.Warn().Err(err).Bool("retryable", retryable).Msg("pipeline: render failed")
		p.concludeAttempt(a.ID, job, retryable)
		return
	}

	// The call completed; the reservation becomes spend regardless of
	// how scoring goes.
	p.budget.Commit(a.ID, reserved)
	job.Cost = reserved
	p.publishBudget()

	key := transientKey(a, attempt, artifact.Format)
	savedKey, werr := p.artifacts.Write(ctx, key, artifact.Data)
	if werr != nil {
		job.Outcome = domain.JobOutcomeRetryable
		job.ErrorReason = fmt.Sprintf("persist artifact: %v", werr)
		p.concludeAttempt(a.ID, job, true)
		return
	}
	job.ArtifactKey = savedKey

	if _, err := p.store.Update(a.ID, func(cur *domain.Asset) error {
		cur.Status = domain.AssetStatusScoring
		return nil
	}); err != nil {
		log.Error().Err(err).Msg("pipeline: transition to scoring")
		return
	}
	p.publishStage(a.ID, domain.AssetStatusGenerating, domain.AssetStatusScoring, nil)

	scores := p.scorer.ScoreArtifact(scoring.ArtifactInfo{
		Width:  artifact.Width,
		Height: artifact.Height,
		Bytes:  int64(len(artifact.Data)),
		Format: artifact.Format,
	}, a.Profile)

	if scores.Weighted < p.cfg.AcceptanceFloor {
		if derr := p.artifacts.Delete(ctx, savedKey); derr != nil {
			log.Warn().Err(derr).Msg("pipeline: delete below-floor artifact")
		}
		job.ArtifactKey = ""
		job.Outcome = domain.JobOutcomeBelowFloor
		job.ErrorReason = fmt.Sprintf("artifact score %.2f below floor %.2f", scores.Weighted, p.cfg.AcceptanceFloor)
		p.concludeAttempt(a.ID, job, true)
		return
	}

	job.Outcome = domain.JobOutcomeSucceeded
	p.publishJobFinished(a.ID, job)
	snap, err := p.store.Update(a.ID, func(cur *domain.Asset) error {
		cur.Status = domain.AssetStatusPendingReview
		cur.ArtifactKey = savedKey
		cur.Attempts = attempt
		cur.CostAccrued += job.Cost
		cur.Jobs = append(cur.Jobs, job)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("pipeline: transition to pending review")
		return
	}
	p.publishStage(a.ID, domain.AssetStatusScoring, domain.AssetStatusPendingReview, nil)
	p.events.Publish(domain.EventAssetReadyForReview, a.ID, map[string]any{
		"score":        scores.Weighted,
		"artifact_key": savedKey,
		"attempt":      attempt,
	})
	log.Info().Float64("score", scores.Weighted).Float64("cost", snap.CostAccrued).Msg("pipeline: ready for review")
}

// concludeAttempt records a failed attempt and routes the asset to a
// backoff retry or to Failed once the retry budget is exhausted.
// Non-retryable failures go to Failed immediately.
func (p *Pipeline) concludeAttempt(id string, job domain.GenerationJob, retryable bool) {
	p.publishJobFinished(id, job)
	if retryable && !p.retry.Exhausted(job.Attempt) {
		delay := p.retry.Delay(job.Attempt + 1)
		snap, err := p.store.Update(id, func(cur *domain.Asset) error {
			cur.Status = domain.AssetStatusQueued
			cur.Attempts = job.Attempt
			cur.CostAccrued += job.Cost
			cur.Jobs = append(cur.Jobs, job)
			return nil
		})
		if err != nil {
			p.logger.Error().Err(err).Str("asset_id", id).Msg("pipeline: requeue after failure")
			return
		}
		p.store.Enqueue(id, snap.Priority, time.Now().Add(delay))
		p.publishStage(id, domain.AssetStatusGenerating, domain.AssetStatusQueued, map[string]any{
			"retry_in_ms": delay.Milliseconds(),
			"reason":      job.ErrorReason,
		})
		p.notify()
		return
	}

	reason := job.ErrorReason
	if retryable {
		reason = fmt.Sprintf("retries exhausted after %d attempts: %s", job.Attempt, job.ErrorReason)
	}
	snap, err := p.store.Update(id, func(cur *domain.Asset) error {
		cur.Status = domain.AssetStatusFailed
		cur.Attempts = job.Attempt
		cur.CostAccrued += job.Cost
		cur.Jobs = append(cur.Jobs, job)
		cur.FailureReason = reason
		return nil
	})
	if err != nil {
		p.logger.Error().Err(err).Str("asset_id", id).Msg("pipeline: mark failed")
		return
	}
	p.events.Publish(domain.EventAssetFailed, id, map[string]any{
		"reason":   reason,
		"attempts": job.Attempt,
	})
	p.archiveTerminal(snap)
}

// Regenerate returns a Regenerating asset to the queue for another
// round, with the reviewer's modification notes appended to the next
// meta-prompt. The attempt counter is untouched here; the requeued job
// advances it by one when it runs, keeping attempt numbers contiguous
// in the job log.
func (p *Pipeline) Regenerate(ctx context.Context, id, modifications string) error {
	snap, err := p.store.Update(id, func(cur *domain.Asset) error {
		if cur.Status != domain.AssetStatusRegenerating {
			return fmt.Errorf("%w: regenerate from %s", domain.ErrInvalidTransition, cur.Status)
		}
		cur.Status = domain.AssetStatusQueued
		cur.ArtifactKey = ""
		if m := strings.TrimSpace(modifications); m != "" {
			cur.Overrides = append(cur.Overrides, m)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.store.Enqueue(id, snap.Priority, time.Now())
	p.publishStage(id, domain.AssetStatusRegenerating, domain.AssetStatusQueued, nil)
	p.notify()
	return nil
}

// Reset is the manual operator reset of a Failed asset.
func (p *Pipeline) Reset(ctx context.Context, id string) error {
	snap, err := p.store.Update(id, func(cur *domain.Asset) error {
		if cur.Status != domain.AssetStatusFailed {
			return fmt.Errorf("%w: reset from %s", domain.ErrInvalidTransition, cur.Status)
		}
		cur.Status = domain.AssetStatusQueued
		cur.Attempts = 0
		cur.FailureReason = ""
		return nil
	})
	if err != nil {
		return err
	}
	p.store.Enqueue(id, snap.Priority, time.Now())
	p.publishStage(id, domain.AssetStatusFailed, domain.AssetStatusQueued, map[string]any{"reset": true})
	p.notify()
	return nil
}

// Budget returns the current ledger snapshot.
func (p *Pipeline) Budget() domain.SessionBudget {
	return p.budget.Snapshot()
}

func (p *Pipeline) applyControl(cmd events.Command) {
	switch cmd.Kind {
	case events.CommandPause:
		p.mu.Lock()
		already := p.paused
		if !already {
			p.paused = true
			p.pauseReason = pauseReasonManual
		}
		p.mu.Unlock()
		if !already {
			p.events.Publish(domain.EventPipelinePaused, "", map[string]any{"reason": pauseReasonManual})
			p.logger.Info().Msg("pipeline: paused")
		}
	case events.CommandResume:
		p.mu.Lock()
		wasPaused := p.paused
		p.paused = false
		p.pauseReason = ""
		p.mu.Unlock()
		if wasPaused {
			p.events.Publish(domain.EventPipelineResumed, "", nil)
			p.logger.Info().Msg("pipeline: resumed")
			p.notify()
		}
	case events.CommandAbort:
		p.mu.Lock()
		already := p.aborted
		p.aborted = true
		p.mu.Unlock()
		if already {
			return
		}
		for _, id := range p.store.DrainQueue() {
			snap, err := p.store.Update(id, func(cur *domain.Asset) error {
				if cur.Status != domain.AssetStatusQueued {
					return fmt.Errorf("%w: abort from %s", domain.ErrInvalidTransition, cur.Status)
				}
				cur.Status = domain.AssetStatusFailed
				cur.FailureReason = "aborted"
				return nil
			})
			if err != nil {
				continue
			}
			p.events.Publish(domain.EventAssetFailed, id, map[string]any{"reason": "aborted"})
			p.archiveTerminal(snap)
		}
		p.events.Publish(domain.EventPipelineAborted, "", nil)
		p.logger.Warn().Msg("pipeline: aborted")
	case events.CommandSkip:
		if cmd.AssetID == "" || !p.store.RemoveQueued(cmd.AssetID) {
			return
		}
		snap, err := p.store.Update(cmd.AssetID, func(cur *domain.Asset) error {
			if cur.Status != domain.AssetStatusQueued {
				return fmt.Errorf("%w: skip from %s", domain.ErrInvalidTransition, cur.Status)
			}
			cur.Status = domain.AssetStatusFailed
			cur.FailureReason = "skipped"
			return nil
		})
		if err != nil {
			return
		}
		p.events.Publish(domain.EventAssetFailed, cmd.AssetID, map[string]any{"reason": "skipped"})
		p.archiveTerminal(snap)
	}
}

func (p *Pipeline) pauseForBudget() {
	p.mu.Lock()
	already := p.paused && p.pauseReason == pauseReasonBudget
	if !already {
		p.paused = true
		p.pauseReason = pauseReasonBudget
	}
	p.mu.Unlock()
	if already {
		return
	}
	b := p.budget.Snapshot()
	p.events.Publish(domain.EventBudgetExceeded, "", map[string]any{
		"ceiling": b.Ceiling,
		"spent":   b.Spent,
	})
	p.events.Publish(domain.EventPipelinePaused, "", map[string]any{"reason": pauseReasonBudget})
	p.logger.Warn().Float64("spent", b.Spent).Float64("ceiling", b.Ceiling).Msg("pipeline: budget exceeded, paused")
}

func (p *Pipeline) archiveTerminal(a domain.Asset) {
	if p.archive == nil && p.jobLog == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if p.archive != nil {
			if err := p.archive.Save(ctx, &a); err != nil {
				p.logger.Error().Err(err).Str("asset_id", a.ID).Msg("pipeline: archive asset")
			}
		}
		if p.jobLog != nil && len(a.Jobs) > 0 {
			if err := p.jobLog.SaveAll(ctx, a.ID, a.Jobs); err != nil {
				p.logger.Error().Err(err).Str("asset_id", a.ID).Msg("pipeline: archive job log")
			}
		}
	}()
}

func (p *Pipeline) waitSignal(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case cmd := <-p.events.Control():
		p.applyControl(cmd)
	case <-p.wake:
	case <-timer.C:
	}
	return nil
}

func (p *Pipeline) requeueFront(id string) {
	priority := 0
	if a, err := p.store.Get(id); err == nil {
		priority = a.Priority
	}
	p.store.Requeue(id, priority)
}

func (p *Pipeline) publishStage(id string, from, to domain.AssetStatus, extra map[string]any) {
	payload := map[string]any{"from": string(from), "to": string(to)}
	for k, v := range extra {
		payload[k] = v
	}
	p.events.Publish(domain.EventStageChanged, id, payload)
}

func (p *Pipeline) publishJobFinished(id string, job domain.GenerationJob) {
	p.events.Publish(domain.EventJobFinished, id, map[string]any{
		"backend": job.Backend,
		"attempt": job.Attempt,
		"outcome": string(job.Outcome),
		"cost":    job.Cost,
	})
}

func (p *Pipeline) publishBudget() {
	b := p.budget.Snapshot()
	p.events.Publish(domain.EventBudgetUpdated, "", map[string]any{
		"spent":     b.Spent,
		"remaining": b.Remaining,
	})
}

func (p *Pipeline) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pipeline) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Pipeline) isAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

func aspectFor(kind domain.AssetKind) string {
	switch kind {
	case domain.AssetKindCover:
		return "3:4"
	case domain.AssetKindTexture:
		return "1:1"
	default:
		return "1:1"
	}
}

func transientKey(a domain.Asset, attempt int, format string) string {
	return fmt.Sprintf("transient/%s/%s/attempt-%02d%s", a.Kind, a.ID, attempt, extensionForFormat(format))
}

func extensionForFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
