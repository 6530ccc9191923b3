package scoring

import (
	"fmt"
	"math"
	"strings"

	"assetforge/internal/domain"
)

const (
	axisMin = 0.0
	axisMax = 10.0

	// biasClamp bounds the additive preference bias per axis so learned
	// preferences can never dominate the fixed weighting scheme.
	biasClamp = 1.5
)

// Weights is the fixed linear combination over the four scoring axes.
// Configuration, not logic: values come from the environment and must
// sum to 1.0.
type Weights struct {
	Technical     float64
	Compositional float64
	Style         float64
	Emotional     float64
}

// Validate checks the weights at startup.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"technical":     w.Technical,
		"compositional": w.Compositional,
		"style":         w.Style,
		"emotional":     w.Emotional,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("scoring: weight %s out of range: %v", name, v)
		}
	}
	sum := w.Technical + w.Compositional + w.Style + w.Emotional
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring: weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// StyleBias supplies the bounded soft bias learned from review
// decisions. Implementations return a signed adjustment for the given
// descriptors; the scorer clamps it regardless.
type StyleBias interface {
	Bias(descriptors []string) float64
}

// ArtifactInfo carries the measurable properties of a rendered artifact
// used for post-generation acceptance checks.
type ArtifactInfo struct {
	Width  int
	Height int
	Bytes  int64
	Format string
}

// Scorer produces deterministic per-axis quality scores. It ranks
// prompt candidates before generation and validates rendered artifacts
// against the acceptance floor afterwards.
type Scorer struct {
	weights Weights
	bias    StyleBias
}

func NewScorer(weights Weights, bias StyleBias) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights, bias: bias}, nil
}

// ScoreCandidate scores a prompt candidate against the asset's profile.
func (s *Scorer) ScoreCandidate(c domain.PromptCandidate, profile domain.EmotionalProfile) domain.AxisScores {
	text := strings.ToLower(c.Text)

	scores := domain.AxisScores{
		Technical:     scoreTechnical(text),
		Compositional: scoreCompositional(text, profile),
		Style:         scoreStyle(text, profile),
		Emotional:     scoreEmotional(text, profile),
	}
	scores.Style = clampAxis(scores.Style + s.styleBias(profile))
	scores.Weighted = s.weigh(scores)
	return scores
}

// ScoreArtifact runs the same axes over a rendered artifact. Scores
// below the pipeline's acceptance floor send the attempt to the retry
// path instead of the reviewer.
func (s *Scorer) ScoreArtifact(info ArtifactInfo, profile domain.EmotionalProfile) domain.AxisScores {
	scores := domain.AxisScores{
		Technical:     scoreArtifactTechnical(info),
		Compositional: 6,
		Style:         clampAxis(6 + s.styleBias(profile)),
		Emotional:     6,
	}
	scores.Weighted = s.weigh(scores)
	return scores
}

func (s *Scorer) weigh(a domain.AxisScores) float64 {
	return a.Technical*s.weights.Technical +
		a.Compositional*s.weights.Compositional +
		a.Style*s.weights.Style +
		a.Emotional*s.weights.Emotional
}

func (s *Scorer) styleBias(profile domain.EmotionalProfile) float64 {
	if s.bias == nil {
		return 0
	}
	descriptors := append(append([]string(nil), profile.Palette...), profile.Symbols...)
	descriptors = append(descriptors, profile.PrimaryEmotion)
	b := s.bias.Bias(descriptors)
	if b > biasClamp {
		return biasClamp
	}
	if b < -biasClamp {
		return -biasClamp
	}
	return b
}

var technicalTerms = []string{
	"detailed", "sharp", "high resolution", "crisp", "clean lines",
	"lighting", "texture", "render",
}

var compositionTerms = []string{
	"composition", "framing", "centered", "rule of thirds", "depth",
	"perspective", "foreground", "background", "negative space",
}

var styleTerms = []string{
	"style", "palette", "minimal", "watercolor", "flat design",
	"illustration", "geometric", "organic", "vintage", "modern",
}

func scoreTechnical(text string) float64 {
	words := len(strings.Fields(text))
	score := 4.0
	if words >= 12 && words <= 90 {
		score += 2
	}
	score += float64(countContains(text, technicalTerms))
	return clampAxis(score)
}

func scoreCompositional(text string, profile domain.EmotionalProfile) float64 {
	score := 3.0 + 1.5*float64(countContains(text, compositionTerms))
	if profile.CompositionHint != "" && strings.Contains(text, strings.ToLower(profile.CompositionHint)) {
		score += 2
	}
	return clampAxis(score)
}

func scoreStyle(text string, profile domain.EmotionalProfile) float64 {
	score := 3.0 + float64(countContains(text, styleTerms))
	score += 1.5 * float64(countContains(text, lower(profile.Palette)))
	return clampAxis(score)
}

func scoreEmotional(text string, profile domain.EmotionalProfile) float64 {
	score := 2.0
	if profile.PrimaryEmotion != "" && strings.Contains(text, profile.PrimaryEmotion) {
		score += 3
	}
	score += 1.5 * float64(countContains(text, lower(profile.SecondaryEmotions)))
	score += float64(countContains(text, lower(profile.Symbols)))
	return clampAxis(score)
}

func scoreArtifactTechnical(info ArtifactInfo) float64 {
	score := 4.0
	if info.Width >= 256 && info.Height >= 256 {
		score += 2
	}
	if info.Bytes >= 16*1024 {
		score += 2
	}
	if info.Format == "image/png" || info.Format == "image/jpeg" {
		score += 1
	}
	return clampAxis(score)
}

func countContains(text string, terms []string) int {
	count := 0
	for _, t := range terms {
		if t != "" && strings.Contains(text, t) {
			count++
		}
	}
	return count
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func clampAxis(v float64) float64 {
	if v < axisMin {
		return axisMin
	}
	if v > axisMax {
		return axisMax
	}
	return v
}
