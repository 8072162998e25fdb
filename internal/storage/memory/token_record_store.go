package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// TokenRecordStore is an in-memory implementation of storage.TokenRecordStore.
type TokenRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenRecord // keyed by mint
}

// NewTokenRecordStore creates a new in-memory token record store.
func NewTokenRecordStore() *TokenRecordStore {
	return &TokenRecordStore{
		data: make(map[string]*domain.TokenRecord),
	}
}

// copyRecord clones a record including its creator list, so callers can
// never alias stored state.
func copyRecord(r *domain.TokenRecord) *domain.TokenRecord {
	rc := *r
	if r.Creators != nil {
		rc.Creators = make([]domain.Creator, len(r.Creators))
		copy(rc.Creators, r.Creators)
	}
	return &rc
}

// Upsert inserts the record or replaces the existing row for its mint.
func (s *TokenRecordStore) Upsert(_ context.Context, r *domain.TokenRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[r.Mint] = copyRecord(r)
	return nil
}

// GetByMint retrieves the record for a mint. Returns ErrNotFound if not exists.
func (s *TokenRecordStore) GetByMint(_ context.Context, mint string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyRecord(r), nil
}

// ListStale retrieves up to limit records fetched strictly before cutoff,
// oldest first.
func (s *TokenRecordStore) ListStale(_ context.Context, cutoff int64, limit int) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenRecord
	for _, r := range s.data {
		if r.FetchedAt < cutoff {
			result = append(result, copyRecord(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FetchedAt < result[j].FetchedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// CountAll returns the number of stored records.
func (s *TokenRecordStore) CountAll(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

var _ storage.TokenRecordStore = (*TokenRecordStore)(nil)
