package review

import (
	"strings"
	"sync"
)

const (
	learnStep = 0.15
	learnMin  = -2.0
	learnMax  = 2.0
)

// Learner accumulates a soft per-descriptor preference signal from
// review decisions: approvals reinforce the descriptors of the approved
// asset's profile, rejections penalize them. It satisfies the scorer's
// StyleBias so the learned preference nudges the style axis of future
// competitions without ever overriding the fixed weighting scheme.
type Learner struct {
	mu      sync.RWMutex
	weights map[string]float64
}

func NewLearner() *Learner {
	return &Learner{weights: make(map[string]float64)}
}

// Observe folds one decision into the per-descriptor weights.
func (l *Learner) Observe(descriptors []string, approved bool) {
	delta := learnStep
	if !approved {
		delta = -learnStep
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range descriptors {
		d = normalizeDescriptor(d)
		if d == "" {
			continue
		}
		w := l.weights[d] + delta
		if w > learnMax {
			w = learnMax
		}
		if w < learnMin {
			w = learnMin
		}
		l.weights[d] = w
	}
}

// Bias returns the mean learned weight over the given descriptors.
// Unknown descriptors contribute zero, so a cold learner is neutral.
func (l *Learner) Bias(descriptors []string) float64 {
	if len(descriptors) == 0 {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum float64
	for _, d := range descriptors {
		sum += l.weights[normalizeDescriptor(d)]
	}
	return sum / float64(len(descriptors))
}

// Weight exposes one descriptor's current weight, mostly for display.
func (l *Learner) Weight(descriptor string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.weights[normalizeDescriptor(descriptor)]
}

func normalizeDescriptor(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}
