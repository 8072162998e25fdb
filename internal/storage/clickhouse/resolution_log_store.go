package clickhouse

import (
	"context"
	"fmt"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// ResolutionLogStore implements storage.ResolutionLogStore using ClickHouse.
type ResolutionLogStore struct {
	conn *Conn
}

// NewResolutionLogStore creates a new ResolutionLogStore.
func NewResolutionLogStore(conn *Conn) *ResolutionLogStore {
	return &ResolutionLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ResolutionLogStore = (*ResolutionLogStore)(nil)

// InsertBulk adds multiple resolutions. Entries whose resolution_id is
// already stored are skipped rather than failing the batch, since MergeTree
// does not enforce uniqueness at insert time.
func (s *ResolutionLogStore) InsertBulk(ctx context.Context, resolutions []*domain.Resolution) error {
	if len(resolutions) == 0 {
		return nil
	}

	for _, r := range resolutions {
		if r == nil || r.ResolutionID == "" {
			return storage.ErrInvalidInput
		}
	}

	// Drop intra-batch duplicates and rows already stored
	seen := make(map[string]struct{}, len(resolutions))
	var toInsert []*domain.Resolution
	for _, r := range resolutions {
		if _, dup := seen[r.ResolutionID]; dup {
			continue
		}
		seen[r.ResolutionID] = struct{}{}

		exists, err := s.exists(ctx, r.ResolutionID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			continue
		}
		toInsert = append(toInsert, r)
	}

	if len(toInsert) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO resolution_log (
			resolution_id, mint, metadata_address, status, source,
			slot, duration_ms, error, resolved_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range toInsert {
		err = batch.Append(
			r.ResolutionID, r.Mint, r.MetadataAddress,
			string(r.Status), string(r.Source),
			uint64(r.Slot), uint64(r.DurationMs), r.Err, uint64(r.ResolvedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves up to limit resolutions for a mint, newest first.
func (s *ResolutionLogStore) GetByMint(ctx context.Context, mint string, limit int) ([]*domain.Resolution, error) {
	query := `
		SELECT resolution_id, mint, metadata_address, status, source,
		       slot, duration_ms, error, resolved_at
		FROM resolution_log
		WHERE mint = ?
		ORDER BY resolved_at DESC
	`

	args := []interface{}{mint}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanResolutions(rows)
}

// GetByTimeRange retrieves resolutions resolved within [start, end] (inclusive).
func (s *ResolutionLogStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Resolution, error) {
	query := `
		SELECT resolution_id, mint, metadata_address, status, source,
		       slot, duration_ms, error, resolved_at
		FROM resolution_log
		WHERE resolved_at >= ? AND resolved_at <= ?
		ORDER BY resolved_at ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanResolutions(rows)
}

// CountByStatus returns resolution counts grouped by status.
func (s *ResolutionLogStore) CountByStatus(ctx context.Context) (map[domain.ResolutionStatus]int64, error) {
	query := `
		SELECT status, count(*)
		FROM resolution_log
		GROUP BY status
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ResolutionStatus]int64)
	for rows.Next() {
		var status string
		var count uint64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count row: %w", err)
		}
		counts[domain.ResolutionStatus(status)] = int64(count)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status count rows: %w", err)
	}

	return counts, nil
}

// exists checks if a resolution with the given ID exists.
func (s *ResolutionLogStore) exists(ctx context.Context, resolutionID string) (bool, error) {
	query := `
		SELECT count(*) FROM resolution_log
		WHERE resolution_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, resolutionID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanResolutions scans multiple rows into a slice.
func scanResolutions(rows chRows) ([]*domain.Resolution, error) {
	var resolutions []*domain.Resolution

	for rows.Next() {
		var r domain.Resolution
		var status, source string
		var slot, durationMs, resolvedAt uint64

		err := rows.Scan(
			&r.ResolutionID, &r.Mint, &r.MetadataAddress,
			&status, &source,
			&slot, &durationMs, &r.Err, &resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan resolution row: %w", err)
		}

		r.Status = domain.ResolutionStatus(status)
		r.Source = domain.Source(source)
		r.Slot = int64(slot)
		r.DurationMs = int64(durationMs)
		r.ResolvedAt = int64(resolvedAt)
		resolutions = append(resolutions, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution rows: %w", err)
	}

	return resolutions, nil
}
