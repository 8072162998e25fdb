package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

func TestTokenRecordStore_UpsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	record := &domain.TokenRecord{
		Mint:                 "EPjFWdd5AufqSsqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		MetadataAddress:      "2yzCTz2Ka91LBykPxPYAm5c1kc1KpZNspa4YMcCrgFrS",
		Bump:                 255,
		Version:              4,
		UpdateAuthority:      "2wmVCSfPxGPjrnMMn7rchp4uaeoTqN39mXFC2zhPdri9",
		Name:                 "USD Coin",
		Symbol:               "USDC",
		URI:                  "",
		SellerFeeBasisPoints: 0,
		Creators: []domain.Creator{
			{Address: "creator-one", Verified: true, Share: 60},
			{Address: "creator-two", Verified: false, Share: 40},
		},
		PrimarySaleHappened: true,
		IsMutable:           true,
		Slot:                250000000,
		FetchedAt:           1700000000000,
		UpdatedAt:           1700000000000,
	}

	err := store.Upsert(ctx, record)
	require.NoError(t, err)

	retrieved, err := store.GetByMint(ctx, record.Mint)
	require.NoError(t, err)

	assert.Equal(t, record.Mint, retrieved.Mint)
	assert.Equal(t, record.MetadataAddress, retrieved.MetadataAddress)
	assert.Equal(t, uint8(255), retrieved.Bump)
	assert.Equal(t, uint8(4), retrieved.Version)
	assert.Equal(t, record.UpdateAuthority, retrieved.UpdateAuthority)
	assert.Equal(t, "USD Coin", retrieved.Name)
	assert.Equal(t, "USDC", retrieved.Symbol)
	assert.Equal(t, int16(0), retrieved.SellerFeeBasisPoints)
	require.Len(t, retrieved.Creators, 2)
	assert.Equal(t, "creator-one", retrieved.Creators[0].Address)
	assert.True(t, retrieved.Creators[0].Verified)
	assert.Equal(t, uint8(60), retrieved.Creators[0].Share)
	assert.Equal(t, "creator-two", retrieved.Creators[1].Address)
	assert.False(t, retrieved.Creators[1].Verified)
	assert.True(t, retrieved.PrimarySaleHappened)
	assert.True(t, retrieved.IsMutable)
	assert.Equal(t, int64(250000000), retrieved.Slot)
	assert.Equal(t, int64(1700000000000), retrieved.FetchedAt)
}

func TestTokenRecordStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	first := &domain.TokenRecord{
		Mint:            "ReplaceMint",
		MetadataAddress: "meta-addr",
		Name:            "Before",
		Creators: []domain.Creator{
			{Address: "creator-one", Verified: true, Share: 100},
		},
		FetchedAt: 1700000000000,
		UpdatedAt: 1700000000000,
	}

	err := store.Upsert(ctx, first)
	require.NoError(t, err)

	second := &domain.TokenRecord{
		Mint:            "ReplaceMint",
		MetadataAddress: "meta-addr",
		Name:            "After",
		Creators:        nil,
		FetchedAt:       1700000001000,
		UpdatedAt:       1700000001000,
	}

	err = store.Upsert(ctx, second)
	require.NoError(t, err)

	retrieved, err := store.GetByMint(ctx, "ReplaceMint")
	require.NoError(t, err)

	assert.Equal(t, "After", retrieved.Name)
	assert.Nil(t, retrieved.Creators, "creators should be replaced with NULL")
	assert.Equal(t, int64(1700000001000), retrieved.FetchedAt)

	count, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTokenRecordStore_GetByMintNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	_, err := store.GetByMint(ctx, "nonexistent-mint")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenRecordStore_NilCreators(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	record := &domain.TokenRecord{
		Mint:            "NoCreatorsMint",
		MetadataAddress: "meta-addr",
		Name:            "Bare Token",
		Creators:        nil,
		FetchedAt:       1700000000000,
		UpdatedAt:       1700000000000,
	}

	err := store.Upsert(ctx, record)
	require.NoError(t, err)

	retrieved, err := store.GetByMint(ctx, "NoCreatorsMint")
	require.NoError(t, err)

	assert.Nil(t, retrieved.Creators)
}

func TestTokenRecordStore_ListStale(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	records := []*domain.TokenRecord{
		{Mint: "mint-old", MetadataAddress: "m1", FetchedAt: 1000, UpdatedAt: 1000},
		{Mint: "mint-mid", MetadataAddress: "m2", FetchedAt: 2000, UpdatedAt: 2000},
		{Mint: "mint-new", MetadataAddress: "m3", FetchedAt: 3000, UpdatedAt: 3000},
	}

	for _, r := range records {
		require.NoError(t, store.Upsert(ctx, r))
	}

	stale, err := store.ListStale(ctx, 2500, 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	// Oldest first
	assert.Equal(t, "mint-old", stale[0].Mint)
	assert.Equal(t, "mint-mid", stale[1].Mint)

	// Strict cutoff: fetched_at == cutoff is not stale
	exact, err := store.ListStale(ctx, 1000, 10)
	require.NoError(t, err)
	assert.Empty(t, exact)

	// Limit keeps the oldest
	limited, err := store.ListStale(ctx, 5000, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "mint-old", limited[0].Mint)
}

func TestTokenRecordStore_CountAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	count, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	for _, mint := range []string{"mint-a", "mint-b", "mint-c"} {
		require.NoError(t, store.Upsert(ctx, &domain.TokenRecord{
			Mint:            mint,
			MetadataAddress: "meta-" + mint,
			FetchedAt:       1700000000000,
			UpdatedAt:       1700000000000,
		}))
	}

	count, err = store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestTokenRecordStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	err := store.Upsert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Upsert(ctx, &domain.TokenRecord{Mint: ""})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTokenRecordStore_NegativeFee(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenRecordStore(pool)

	record := &domain.TokenRecord{
		Mint:                 "NegativeFeeMint",
		MetadataAddress:      "meta-addr",
		SellerFeeBasisPoints: -1,
		FetchedAt:            1700000000000,
		UpdatedAt:            1700000000000,
	}

	require.NoError(t, store.Upsert(ctx, record))

	retrieved, err := store.GetByMint(ctx, "NegativeFeeMint")
	require.NoError(t, err)

	assert.Equal(t, int16(-1), retrieved.SellerFeeBasisPoints)
}
