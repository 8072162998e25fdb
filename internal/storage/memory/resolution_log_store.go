package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// ResolutionLogStore is an in-memory implementation of storage.ResolutionLogStore.
type ResolutionLogStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Resolution // keyed by resolution_id
}

// NewResolutionLogStore creates a new in-memory resolution log store.
func NewResolutionLogStore() *ResolutionLogStore {
	return &ResolutionLogStore{
		data: make(map[string]*domain.Resolution),
	}
}

// InsertBulk adds multiple resolutions. Entries whose resolution_id is
// already stored are skipped rather than failing the batch.
func (s *ResolutionLogStore) InsertBulk(_ context.Context, resolutions []*domain.Resolution) error {
	if len(resolutions) == 0 {
		return nil
	}

	for _, r := range resolutions {
		if r == nil || r.ResolutionID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range resolutions {
		if _, exists := s.data[r.ResolutionID]; exists {
			continue
		}
		resCopy := *r
		s.data[r.ResolutionID] = &resCopy
	}

	return nil
}

// GetByMint retrieves up to limit resolutions for a mint, newest first.
func (s *ResolutionLogStore) GetByMint(_ context.Context, mint string, limit int) ([]*domain.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Resolution
	for _, r := range s.data {
		if r.Mint == mint {
			resCopy := *r
			result = append(result, &resCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ResolvedAt > result[j].ResolvedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// GetByTimeRange retrieves resolutions resolved within [start, end] (inclusive).
func (s *ResolutionLogStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Resolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Resolution
	for _, r := range s.data {
		if r.ResolvedAt >= start && r.ResolvedAt <= end {
			resCopy := *r
			result = append(result, &resCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ResolvedAt < result[j].ResolvedAt
	})

	return result, nil
}

// CountByStatus returns resolution counts grouped by status.
func (s *ResolutionLogStore) CountByStatus(_ context.Context) (map[domain.ResolutionStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.ResolutionStatus]int64)
	for _, r := range s.data {
		counts[r.Status]++
	}

	return counts, nil
}

var _ storage.ResolutionLogStore = (*ResolutionLogStore)(nil)
