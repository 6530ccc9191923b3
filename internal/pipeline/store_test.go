package pipeline

import (
	"errors"
	"testing"
	"time"

	"assetforge/internal/domain"
)

func putAsset(t *testing.T, s *Store, id string, status domain.AssetStatus) {
	t.Helper()
	now := time.Now().UTC()
	err := s.Put(domain.Asset{ID: id, Title: id, Kind: domain.AssetKindIcon, Status: status, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("Put(%s): %v", id, err)
	}
}

func TestStoreRejectsIllegalTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.AssetStatus
		to   domain.AssetStatus
		ok   bool
	}{
		{"queued to generating", domain.AssetStatusQueued, domain.AssetStatusGenerating, true},
		{"generating to scoring", domain.AssetStatusGenerating, domain.AssetStatusScoring, true},
		{"scoring to pending review", domain.AssetStatusScoring, domain.AssetStatusPendingReview, true},
		{"pending review to approved", domain.AssetStatusPendingReview, domain.AssetStatusApproved, true},
		{"pending review to regenerating", domain.AssetStatusPendingReview, domain.AssetStatusRegenerating, true},
		{"failed to queued is the manual reset", domain.AssetStatusFailed, domain.AssetStatusQueued, true},
		{"queued to approved", domain.AssetStatusQueued, domain.AssetStatusApproved, false},
		{"approved is terminal", domain.AssetStatusApproved, domain.AssetStatusQueued, false},
		{"rejected is terminal", domain.AssetStatusRejected, domain.AssetStatusQueued, false},
		{"generating to approved", domain.AssetStatusGenerating, domain.AssetStatusApproved, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			putAsset(t, s, "a", tt.from)
			_, err := s.Update("a", func(a *domain.Asset) error {
				a.Status = tt.to
				return nil
			})
			if tt.ok && err != nil {
				t.Fatalf("Update: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, domain.ErrInvalidTransition) {
					t.Fatalf("err = %v, want ErrInvalidTransition", err)
				}
				got, _ := s.Get("a")
				if got.Status != tt.from {
					t.Errorf("status = %s after rollback, want %s", got.Status, tt.from)
				}
			}
		})
	}
}

func TestStoreUpdateRollsBackOnError(t *testing.T) {
	s := NewStore()
	putAsset(t, s, "a", domain.AssetStatusQueued)

	boom := errors.New("boom")
	_, err := s.Update("a", func(a *domain.Asset) error {
		a.Title = "changed"
		a.Attempts = 9
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	got, _ := s.Get("a")
	if got.Title != "a" || got.Attempts != 0 {
		t.Errorf("mutation leaked after error: %+v", got)
	}
}

func TestQueuePriorityAndFIFO(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Enqueue("low-1", 0, now)
	s.Enqueue("high", 5, now)
	s.Enqueue("low-2", 0, now)

	want := []string{"high", "low-1", "low-2"}
	for _, w := range want {
		id, _, ok := s.NextReady(now)
		if !ok || id != w {
			t.Fatalf("NextReady = %q ok=%v, want %q", id, ok, w)
		}
	}
	if _, _, ok := s.NextReady(now); ok {
		t.Error("queue should be empty")
	}
}

func TestQueueBackoffDefersDispatch(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Enqueue("later", 9, now.Add(time.Minute))
	s.Enqueue("ready", 0, now)

	id, _, ok := s.NextReady(now)
	if !ok || id != "ready" {
		t.Fatalf("NextReady = %q, want ready despite lower priority", id)
	}
	_, wait, ok := s.NextReady(now)
	if ok {
		t.Fatal("backoff entry dispatched early")
	}
	if wait <= 0 || wait > time.Minute {
		t.Errorf("wait = %v, want (0, 1m]", wait)
	}
	if id, _, ok := s.NextReady(now.Add(2 * time.Minute)); !ok || id != "later" {
		t.Errorf("NextReady after backoff = %q ok=%v", id, ok)
	}
}

func TestRequeuePutsIDAtFront(t *testing.T) {
	s := NewStore()
	now := time.Now()
	s.Enqueue("first", 0, now)
	s.Enqueue("second", 0, now)

	id, _, _ := s.NextReady(now)
	if id != "first" {
		t.Fatalf("NextReady = %q", id)
	}
	s.Requeue("first", 0)
	if id, _, _ := s.NextReady(now); id != "first" {
		t.Errorf("after Requeue, NextReady = %q, want first", id)
	}
}
