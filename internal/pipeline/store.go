package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"assetforge/internal/domain"
)

// Store is the authoritative asset store. Every mutation goes through
// Update, which holds the per-asset lock and enforces the state
// machine, so workers and reviewers can never apply lost updates on a
// stale view. The queue of dispatchable asset ids lives here too, next
// to the state it must agree with.
type Store struct {
	mu    sync.RWMutex
	items map[string]*entry

	qmu    sync.Mutex
	queue  []queued
	qorder int
}

type entry struct {
	mu sync.Mutex
	a  domain.Asset
}

type queued struct {
	id       string
	priority int
	seq      int
	readyAt  time.Time
}

func NewStore() *Store {
	return &Store{items: make(map[string]*entry)}
}

// Put registers a new asset.
func (s *Store) Put(a domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[a.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAsset, a.ID)
	}
	s.items[a.ID] = &entry{a: a}
	return nil
}

// Get returns a snapshot of the asset.
func (s *Store) Get(id string) (domain.Asset, error) {
	e, err := s.entry(id)
	if err != nil {
		return domain.Asset{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(&e.a), nil
}

// Update applies fn under the asset's lock. A status change made by fn
// is validated against the transition table; an illegal transition
// rolls the whole mutation back. Returns the post-update snapshot.
func (s *Store) Update(id string, fn func(a *domain.Asset) error) (domain.Asset, error) {
	e, err := s.entry(id)
	if err != nil {
		return domain.Asset{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	before := snapshot(&e.a)
	if err := fn(&e.a); err != nil {
		e.a = before
		return domain.Asset{}, err
	}
	if e.a.Status != before.Status {
		if err := ensureTransition(before.Status, e.a.Status); err != nil {
			e.a = before
			return domain.Asset{}, err
		}
	}
	e.a.UpdatedAt = time.Now().UTC()
	return snapshot(&e.a), nil
}

// List returns snapshots of all assets, oldest first. An empty status
// filter matches everything.
func (s *Store) List(status domain.AssetStatus) []domain.Asset {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.items))
	for _, e := range s.items {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []domain.Asset
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.a.Status == status {
			out = append(out, snapshot(&e.a))
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: asset %s", domain.ErrNotFound, id)
	}
	return e, nil
}

// ensureTransition is the asset state machine. "failed -> queued" is
// the explicit manual operator reset; everything else is driven by the
// pipeline and review workflow.
func ensureTransition(from, to domain.AssetStatus) error {
	allowed := map[domain.AssetStatus][]domain.AssetStatus{
		domain.AssetStatusQueued:        {domain.AssetStatusGenerating, domain.AssetStatusFailed},
		domain.AssetStatusGenerating:    {domain.AssetStatusScoring, domain.AssetStatusQueued, domain.AssetStatusFailed},
		domain.AssetStatusScoring:       {domain.AssetStatusPendingReview, domain.AssetStatusQueued, domain.AssetStatusFailed},
		domain.AssetStatusPendingReview: {domain.AssetStatusApproved, domain.AssetStatusRejected, domain.AssetStatusRegenerating},
		domain.AssetStatusRegenerating:  {domain.AssetStatusQueued},
		domain.AssetStatusFailed:        {domain.AssetStatusQueued},
	}
	for _, t := range allowed[from] {
		if t == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
}

// Enqueue adds an asset id to the dispatch queue. readyAt defers
// dispatch for backoff without blocking other assets.
func (s *Store) Enqueue(id string, priority int, readyAt time.Time) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	s.qorder++
	s.queue = append(s.queue, queued{id: id, priority: priority, seq: s.qorder, readyAt: readyAt})
}

// NextReady pops the next dispatchable asset id: highest priority
// first, FIFO within a priority, skipping entries still in backoff.
// When nothing is ready it reports how long until the earliest entry
// becomes ready (zero duration means the queue is empty).
func (s *Store) NextReady(now time.Time) (string, time.Duration, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()

	best := -1
	for i, q := range s.queue {
		if q.readyAt.After(now) {
			continue
		}
		if best == -1 || s.queue[i].priority > s.queue[best].priority ||
			(s.queue[i].priority == s.queue[best].priority && s.queue[i].seq < s.queue[best].seq) {
			best = i
		}
	}
	if best >= 0 {
		id := s.queue[best].id
		s.queue = append(s.queue[:best], s.queue[best+1:]...)
		return id, 0, true
	}

	var wait time.Duration
	for _, q := range s.queue {
		d := q.readyAt.Sub(now)
		if wait == 0 || d < wait {
			wait = d
		}
	}
	return "", wait, false
}

// Requeue returns an id to the head of its priority class, used when a
// dispatch was refused before any work happened.
func (s *Store) Requeue(id string, priority int) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	s.queue = append([]queued{{id: id, priority: priority, seq: -s.qorder}}, s.queue...)
}

// DrainQueue removes and returns every queued id, ignoring readiness.
func (s *Store) DrainQueue() []string {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	ids := make([]string, len(s.queue))
	for i, q := range s.queue {
		ids[i] = q.id
	}
	s.queue = nil
	return ids
}

// RemoveQueued removes one id from the queue, reporting whether it was
// present.
func (s *Store) RemoveQueued(id string) bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	for i, q := range s.queue {
		if q.id == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

func snapshot(a *domain.Asset) domain.Asset {
	out := *a
	out.Profile.SecondaryEmotions = append([]string(nil), a.Profile.SecondaryEmotions...)
	out.Profile.Palette = append([]string(nil), a.Profile.Palette...)
	out.Profile.Symbols = append([]string(nil), a.Profile.Symbols...)
	out.Overrides = append([]string(nil), a.Overrides...)
	out.Jobs = append([]domain.GenerationJob(nil), a.Jobs...)
	out.Decisions = append([]domain.ReviewDecision(nil), a.Decisions...)
	return out
}
