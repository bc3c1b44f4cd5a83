package alerts

import (
	"context"
	"sync"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Alert
	ordered []*Alert // creation order
}

// NewMemoryStore creates an in-memory alert store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Alert)}
}

func (s *MemoryStore) Create(ctx context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := copyAlert(a)
	s.byID[a.ID] = cp
	s.ordered = append(s.ordered, cp)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAlert(a), nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter, limit int) ([]*Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Alert
	for i := len(s.ordered) - 1; i >= 0 && len(result) < limit; i-- {
		if filter.Matches(s.ordered[i]) {
			result = append(result, copyAlert(s.ordered[i]))
		}
	}
	return result, nil
}

func (s *MemoryStore) Update(ctx context.Context, a *Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[a.ID]
	if !ok {
		return ErrNotFound
	}
	*existing = *copyAlert(a)
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	var sum float64
	for _, a := range s.ordered {
		stats.Total++
		sum += a.Score
		switch a.Status {
		case StatusPending:
			stats.Pending++
		case StatusApproved:
			stats.Approved++
		case StatusBlocked:
			stats.Blocked++
			stats.BlockedAmount += a.Amount
		case StatusEscalated:
			stats.Escalated++
		}
		switch a.RiskLevel {
		case fraud.RiskCritical:
			stats.Critical++
		case fraud.RiskHigh:
			stats.High++
		}
	}
	if stats.Total > 0 {
		stats.AvgScore = roundScore(sum / float64(stats.Total))
	}
	return stats, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Alert)
	s.ordered = nil
	return nil
}

func copyAlert(a *Alert) *Alert {
	cp := *a
	if a.Reasons != nil {
		cp.Reasons = append(cp.Reasons[:0:0], a.Reasons...)
	}
	if a.ReviewedAt != nil {
		t := *a.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}
