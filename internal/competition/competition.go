package competition

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"assetforge/internal/domain"
)

// Backend is the model backend capability: it turns a meta-prompt into
// an image-generation prompt and declares its per-call cost for
// deterministic tie-breaking. Concrete providers live in
// internal/providers/model and are never referenced by name here.
type Backend interface {
	Name() string
	GeneratePrompt(ctx context.Context, metaPrompt string) (string, error)
	DeclaredCost() float64
}

// CandidateScorer ranks prompt candidates. Satisfied by
// scoring.Scorer.
type CandidateScorer interface {
	ScoreCandidate(c domain.PromptCandidate, profile domain.EmotionalProfile) domain.AxisScores
}

// RateLimiter gates outbound model calls. Satisfied by
// *pipeline.Limiter; the render path carries its own instance so prompt
// traffic never starves renders.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// Orchestrator fans a meta-prompt out to every configured model backend
// concurrently, scores the returned candidates, and picks a winner.
type Orchestrator struct {
	scorer  CandidateScorer
	timeout time.Duration
	limiter RateLimiter
	logger  zerolog.Logger
}

// NewOrchestrator configures a competition round runner. A nil limiter
// leaves backend calls ungated.
func NewOrchestrator(scorer CandidateScorer, perBackendTimeout time.Duration, limiter RateLimiter, logger zerolog.Logger) *Orchestrator {
	if perBackendTimeout <= 0 {
		perBackendTimeout = 20 * time.Second
	}
	return &Orchestrator{scorer: scorer, timeout: perBackendTimeout, limiter: limiter, logger: logger}
}

// Compete runs one competition round. Backends that error or time out
// are excluded from ranking but recorded; the round fails only when all
// backends fail, in which case the caller retries under the pipeline's
// normal retry policy.
func (o *Orchestrator) Compete(ctx context.Context, metaPrompt string, profile domain.EmotionalProfile, backends []Backend) (domain.CompetitionResult, error) {
	var result domain.CompetitionResult
	if len(backends) == 0 {
		return result, domain.ErrAllBackendsFailed
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range backends {
		b := b
		g.Go(func() error {
			if o.limiter != nil {
				if err := o.limiter.Acquire(gctx); err != nil {
					mu.Lock()
					defer mu.Unlock()
					result.Failures = append(result.Failures, domain.BackendFailure{Backend: b.Name(), Reason: err.Error()})
					return nil
				}
			}

			callCtx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			text, err := b.GeneratePrompt(callCtx, metaPrompt)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.logger.Warn().Err(err).Str("backend", b.Name()).Msg("competition: backend excluded")
				result.Failures = append(result.Failures, domain.BackendFailure{Backend: b.Name(), Reason: err.Error()})
				// Partial degradation only; never cancel siblings.
				return nil
			}
			c := domain.PromptCandidate{Source: b.Name(), Text: text, Cost: b.DeclaredCost()}
			c.Scores = o.scorer.ScoreCandidate(c, profile)
			result.Ranked = append(result.Ranked, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	if len(result.Ranked) == 0 {
		return result, domain.ErrAllBackendsFailed
	}

	rankCandidates(result.Ranked)
	result.Winner = result.Ranked[0]
	o.logger.Debug().
		Str("winner", result.Winner.Source).
		Float64("score", result.Winner.Scores.Weighted).
		Int("candidates", len(result.Ranked)).
		Int("failures", len(result.Failures)).
		Msg("competition: round complete")
	return result, nil
}

// rankCandidates orders by weighted score descending; equal scores
// break by lower declared cost, then lexicographic backend name, for
// reproducible rounds.
func rankCandidates(cs []domain.PromptCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Scores.Weighted != b.Scores.Weighted {
			return a.Scores.Weighted > b.Scores.Weighted
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.Source < b.Source
	})
}
