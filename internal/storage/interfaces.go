package storage

import (
	"context"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
)

// TokenRecordStore provides access to token_records storage.
type TokenRecordStore interface {
	// Upsert inserts the record or replaces the existing row for its mint.
	Upsert(ctx context.Context, r *domain.TokenRecord) error

	// GetByMint retrieves the record for a mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.TokenRecord, error)

	// ListStale retrieves up to limit records fetched strictly before cutoff,
	// oldest first.
	ListStale(ctx context.Context, cutoff int64, limit int) ([]*domain.TokenRecord, error)

	// CountAll returns the number of stored records.
	CountAll(ctx context.Context) (int64, error)
}

// ResolutionLogStore provides access to resolution_log storage.
type ResolutionLogStore interface {
	// InsertBulk adds multiple resolutions. Entries whose resolution_id is
	// already stored are skipped rather than failing the batch.
	InsertBulk(ctx context.Context, resolutions []*domain.Resolution) error

	// GetByMint retrieves up to limit resolutions for a mint, newest first.
	GetByMint(ctx context.Context, mint string, limit int) ([]*domain.Resolution, error)

	// GetByTimeRange retrieves resolutions resolved within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Resolution, error)

	// CountByStatus returns resolution counts grouped by status.
	CountByStatus(ctx context.Context) (map[domain.ResolutionStatus]int64, error)
}
