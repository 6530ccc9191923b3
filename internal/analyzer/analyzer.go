package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"assetforge/internal/domain"
)

const (
	intensityBase = 5
	intensityMin  = 0
	intensityMax  = 10
)

// Analyzer derives an EmotionalProfile from free-text content. Analysis
// is deterministic, so results are cached by content hash. It never
// fails: malformed content falls back to the neutral default profile
// with Defaulted set, which keeps the pipeline moving and stays
// auditable.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[string]domain.EmotionalProfile
}

func New() *Analyzer {
	return &Analyzer{cache: make(map[string]domain.EmotionalProfile)}
}

// Analyze classifies the given content. Same input always yields the
// same output.
func (a *Analyzer) Analyze(title, description, category string) domain.EmotionalProfile {
	key := contentHash(title, description, category)

	a.mu.RLock()
	if p, ok := a.cache[key]; ok {
		a.mu.RUnlock()
		return p
	}
	a.mu.RUnlock()

	p := analyze(title, description, category)

	a.mu.Lock()
	a.cache[key] = p
	a.mu.Unlock()
	return p
}

func contentHash(title, description, category string) string {
	sum := sha256.Sum256([]byte(title + "\x00" + description + "\x00" + category))
	return hex.EncodeToString(sum[:])
}

func analyze(title, description, category string) (profile domain.EmotionalProfile) {
	defer func() {
		if r := recover(); r != nil {
			profile = defaultProfile()
		}
	}()

	tokens := tokenize(title + " " + description)
	if len(tokens) == 0 {
		return defaultProfile()
	}

	stage, matched := bestStage(tokens)
	if !matched {
		p := defaultProfile()
		p.CompositionHint = composeHint(category, p.Intensity)
		return p
	}

	emotions := stageEmotions[stage]
	intensity := clampIntensity(intensityBase + countMatches(tokens, amplifiers) - countMatches(tokens, diminishers))

	lookup := stage + "/" + emotions.primary
	return domain.EmotionalProfile{
		LifeStage:         stage,
		PrimaryEmotion:    emotions.primary,
		SecondaryEmotions: append([]string(nil), emotions.secondary...),
		Intensity:         intensity,
		Palette:           append([]string(nil), palettes[lookup]...),
		Symbols:           append([]string(nil), symbols[lookup]...),
		CompositionHint:   composeHint(category, intensity),
	}
}

func defaultProfile() domain.EmotionalProfile {
	s := neutralProfile
	return domain.EmotionalProfile{
		LifeStage:         s.stage,
		PrimaryEmotion:    s.primary,
		SecondaryEmotions: append([]string(nil), s.secondary...),
		Intensity:         s.intensity,
		Palette:           append([]string(nil), s.palette...),
		Symbols:           append([]string(nil), s.symbols...),
		Defaulted:         true,
	}
}

// bestStage picks the life stage with the highest keyword-match count.
// Ties resolve by the fixed stagePriority ordering.
func bestStage(tokens []string) (string, bool) {
	bestCount := 0
	best := ""
	for _, stage := range stagePriority {
		count := countMatches(tokens, stageKeywords[stage])
		if count > bestCount {
			bestCount = count
			best = stage
		}
	}
	if bestCount == 0 {
		return defaultStage, false
	}
	return best, true
}

func countMatches(tokens, words []string) int {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	count := 0
	for _, tok := range tokens {
		if _, ok := set[tok]; ok {
			count++
		}
	}
	return count
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func clampIntensity(v int) int {
	if v < intensityMin {
		return intensityMin
	}
	if v > intensityMax {
		return intensityMax
	}
	return v
}

func composeHint(category string, intensity int) string {
	framing := "balanced centered composition"
	switch {
	case intensity >= 8:
		framing = "dynamic diagonal composition with strong contrast"
	case intensity <= 3:
		framing = "spacious minimal composition with soft negative space"
	}
	if category == "" {
		return framing
	}
	c := cases.Title(language.English)
	return fmt.Sprintf("%s themed around %s", framing, c.String(category))
}
