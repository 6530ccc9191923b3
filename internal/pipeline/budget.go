package pipeline

import (
	"fmt"
	"sync"

	"assetforge/internal/domain"
)

// Ledger is the session budget. Cost is reserved atomically before any
// backend call and either committed (the call completed and is charged)
// or released (no response, nothing charged), so spent plus reserved
// can never exceed the ceiling and no partially charged job exists.
type Ledger struct {
	mu       sync.Mutex
	ceiling  float64
	spent    float64
	reserved float64
	costed   map[string]struct{}
}

func NewLedger(ceiling float64) *Ledger {
	return &Ledger{ceiling: ceiling, costed: make(map[string]struct{})}
}

// Reserve holds cost against the ceiling ahead of a backend call.
func (l *Ledger) Reserve(cost float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.spent+l.reserved+cost > l.ceiling {
		return fmt.Errorf("%w: spent %.4f + reserved %.4f + %.4f > ceiling %.4f",
			domain.ErrBudgetExceeded, l.spent, l.reserved, cost, l.ceiling)
	}
	l.reserved += cost
	return nil
}

// Commit converts a reservation into spend for the given asset.
func (l *Ledger) Commit(assetID string, cost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved -= cost
	l.spent += cost
	if l.reserved < 0 {
		l.reserved = 0
	}
	l.costed[assetID] = struct{}{}
}

// Release returns a reservation untouched; the call never completed.
func (l *Ledger) Release(cost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserved -= cost
	if l.reserved < 0 {
		l.reserved = 0
	}
}

// Snapshot returns the budget for display.
func (l *Ledger) Snapshot() domain.SessionBudget {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := domain.SessionBudget{
		Ceiling:      l.ceiling,
		Spent:        l.spent,
		Reserved:     l.reserved,
		Remaining:    l.ceiling - l.spent - l.reserved,
		AssetsCosted: len(l.costed),
	}
	if b.AssetsCosted > 0 {
		b.AvgPerAsset = b.Spent / float64(b.AssetsCosted)
	}
	return b
}
