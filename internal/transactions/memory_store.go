package transactions

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rchauhan/fraudlens/internal/fraud"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Record
	ordered []*Record // insertion order
}

// NewMemoryStore creates an in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Record)}
}

func (s *MemoryStore) Insert(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[rec.Transaction.ID]; ok {
		return ErrDuplicate
	}
	cp := copyRecord(rec)
	s.byID[rec.Transaction.ID] = cp
	s.ordered = append(s.ordered, cp)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) RecentByAccount(ctx context.Context, accountID string, before time.Time, window time.Duration) ([]*fraud.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := before.Add(-window)
	var result []*fraud.Transaction
	for _, rec := range s.ordered {
		txn := rec.Transaction
		if txn.AccountID != accountID {
			continue
		}
		if txn.Timestamp.After(before) || !txn.Timestamp.After(cutoff) {
			continue
		}
		t := txn
		result = append(result, &t)
	}
	return result, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.ordered) - limit
	if start < 0 {
		start = 0
	}
	result := make([]*Record, 0, len(s.ordered)-start)
	for i := len(s.ordered) - 1; i >= start; i-- {
		result = append(result, copyRecord(s.ordered[i]))
	}
	return result, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{ByLevel: make(map[fraud.RiskLevel]int)}
	var sum float64
	for _, rec := range s.ordered {
		stats.Total++
		sum += rec.Score
		stats.ByLevel[rec.RiskLevel]++
	}
	if stats.Total > 0 {
		stats.AvgScore = math.Round(sum/float64(stats.Total)*1000) / 1000
	}
	return stats, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*Record)
	s.ordered = nil
	return nil
}

func copyRecord(rec *Record) *Record {
	cp := *rec
	if rec.Contributions != nil {
		contributions := make(map[string]float64, len(rec.Contributions))
		for k, v := range rec.Contributions {
			contributions[k] = v
		}
		cp.Contributions = contributions
	}
	return &cp
}
