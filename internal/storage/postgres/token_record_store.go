package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// TokenRecordStore implements storage.TokenRecordStore using PostgreSQL.
type TokenRecordStore struct {
	pool *Pool
}

// NewTokenRecordStore creates a new TokenRecordStore.
func NewTokenRecordStore(pool *Pool) *TokenRecordStore {
	return &TokenRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenRecordStore = (*TokenRecordStore)(nil)

// Upsert inserts the record or replaces the existing row for its mint.
func (s *TokenRecordStore) Upsert(ctx context.Context, r *domain.TokenRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	creators, err := marshalCreators(r.Creators)
	if err != nil {
		return fmt.Errorf("marshal creators: %w", err)
	}

	query := `
		INSERT INTO token_records (
			mint, metadata_address, bump, version, update_authority,
			name, symbol, uri, seller_fee_basis_points, creators,
			primary_sale_happened, is_mutable, slot, fetched_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (mint) DO UPDATE SET
			metadata_address = EXCLUDED.metadata_address,
			bump = EXCLUDED.bump,
			version = EXCLUDED.version,
			update_authority = EXCLUDED.update_authority,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			uri = EXCLUDED.uri,
			seller_fee_basis_points = EXCLUDED.seller_fee_basis_points,
			creators = EXCLUDED.creators,
			primary_sale_happened = EXCLUDED.primary_sale_happened,
			is_mutable = EXCLUDED.is_mutable,
			slot = EXCLUDED.slot,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		r.Mint,
		r.MetadataAddress,
		int16(r.Bump),
		int16(r.Version),
		r.UpdateAuthority,
		r.Name,
		r.Symbol,
		r.URI,
		r.SellerFeeBasisPoints,
		creators,
		r.PrimarySaleHappened,
		r.IsMutable,
		r.Slot,
		r.FetchedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert token record: %w", err)
	}
	return nil
}

// GetByMint retrieves the record for a mint. Returns ErrNotFound if not exists.
func (s *TokenRecordStore) GetByMint(ctx context.Context, mint string) (*domain.TokenRecord, error) {
	query := `
		SELECT mint, metadata_address, bump, version, update_authority,
		       name, symbol, uri, seller_fee_basis_points, creators,
		       primary_sale_happened, is_mutable, slot, fetched_at, updated_at
		FROM token_records
		WHERE mint = $1
	`

	row := s.pool.QueryRow(ctx, query, mint)
	r, err := scanTokenRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token record by mint: %w", err)
	}
	return r, nil
}

// ListStale retrieves up to limit records fetched strictly before cutoff,
// oldest first.
func (s *TokenRecordStore) ListStale(ctx context.Context, cutoff int64, limit int) ([]*domain.TokenRecord, error) {
	query := `
		SELECT mint, metadata_address, bump, version, update_authority,
		       name, symbol, uri, seller_fee_basis_points, creators,
		       primary_sale_happened, is_mutable, slot, fetched_at, updated_at
		FROM token_records
		WHERE fetched_at < $1
		ORDER BY fetched_at ASC
	`

	args := []interface{}{cutoff}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stale token records: %w", err)
	}
	defer rows.Close()

	return scanTokenRecords(rows)
}

// CountAll returns the number of stored records.
func (s *TokenRecordStore) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM token_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count token records: %w", err)
	}
	return count, nil
}

// marshalCreators serializes the creator list for the JSONB column.
// A nil list maps to SQL NULL rather than an empty array.
func marshalCreators(creators []domain.Creator) ([]byte, error) {
	if creators == nil {
		return nil, nil
	}
	return json.Marshal(creators)
}

// scanTokenRecord scans a single row into a TokenRecord.
func scanTokenRecord(row pgx.Row) (*domain.TokenRecord, error) {
	var r domain.TokenRecord
	var bump, version int16
	var creatorsJSON []byte

	err := row.Scan(
		&r.Mint,
		&r.MetadataAddress,
		&bump,
		&version,
		&r.UpdateAuthority,
		&r.Name,
		&r.Symbol,
		&r.URI,
		&r.SellerFeeBasisPoints,
		&creatorsJSON,
		&r.PrimarySaleHappened,
		&r.IsMutable,
		&r.Slot,
		&r.FetchedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Bump = uint8(bump)
	r.Version = uint8(version)
	if len(creatorsJSON) > 0 {
		if err := json.Unmarshal(creatorsJSON, &r.Creators); err != nil {
			return nil, fmt.Errorf("unmarshal creators: %w", err)
		}
	}
	return &r, nil
}

// scanTokenRecords scans multiple rows into a slice of TokenRecord.
func scanTokenRecords(rows pgx.Rows) ([]*domain.TokenRecord, error) {
	var records []*domain.TokenRecord

	for rows.Next() {
		r, err := scanTokenRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token record rows: %w", err)
	}

	return records, nil
}
