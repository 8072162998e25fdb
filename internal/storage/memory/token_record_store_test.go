package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

func TestTokenRecordStore_UpsertAndGetByMint(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	rec := &domain.TokenRecord{
		Mint:                 "mint1",
		MetadataAddress:      "meta1",
		Bump:                 255,
		Version:              4,
		UpdateAuthority:      "auth1",
		Name:                 "Test Token",
		Symbol:               "TT",
		URI:                  "https://example.com/tt.json",
		SellerFeeBasisPoints: 500,
		Creators: []domain.Creator{
			{Address: "creator1", Verified: true, Share: 100},
		},
		PrimarySaleHappened: true,
		IsMutable:           false,
		Slot:                250000000,
		FetchedAt:           1704067200000,
		UpdatedAt:           1704067200000,
	}

	err := store.Upsert(ctx, rec)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	if result.Name != "Test Token" {
		t.Errorf("Name mismatch: got %s, want Test Token", result.Name)
	}

	if result.SellerFeeBasisPoints != 500 {
		t.Errorf("SellerFeeBasisPoints mismatch: got %d, want 500", result.SellerFeeBasisPoints)
	}

	if len(result.Creators) != 1 || result.Creators[0].Address != "creator1" {
		t.Errorf("Creators mismatch: got %+v", result.Creators)
	}
}

func TestTokenRecordStore_UpsertReplaces(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	first := &domain.TokenRecord{Mint: "mint1", Name: "Before", FetchedAt: 1000}
	second := &domain.TokenRecord{Mint: "mint1", Name: "After", FetchedAt: 2000}

	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	if result.Name != "After" {
		t.Errorf("Expected replaced record, got name %s", result.Name)
	}

	count, err := store.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 record after replace, got %d", count)
	}
}

func TestTokenRecordStore_NotFound(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	_, err := store.GetByMint(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTokenRecordStore_InvalidInput(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	err := store.Upsert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.Upsert(ctx, &domain.TokenRecord{Mint: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty mint, got %v", err)
	}
}

func TestTokenRecordStore_ListStale(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	records := []*domain.TokenRecord{
		{Mint: "mint1", FetchedAt: 1000},
		{Mint: "mint2", FetchedAt: 2000},
		{Mint: "mint3", FetchedAt: 3000},
	}

	for _, r := range records {
		if err := store.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	stale, err := store.ListStale(ctx, 2500, 10)
	if err != nil {
		t.Fatalf("ListStale failed: %v", err)
	}

	if len(stale) != 2 {
		t.Fatalf("Expected 2 stale records, got %d", len(stale))
	}

	// Oldest first
	if stale[0].Mint != "mint1" || stale[1].Mint != "mint2" {
		t.Errorf("Wrong order: got %s, %s", stale[0].Mint, stale[1].Mint)
	}

	// Cutoff is strict: a record fetched exactly at cutoff is not stale
	exact, err := store.ListStale(ctx, 1000, 10)
	if err != nil {
		t.Fatalf("ListStale failed: %v", err)
	}
	if len(exact) != 0 {
		t.Errorf("Expected 0 records before cutoff 1000, got %d", len(exact))
	}
}

func TestTokenRecordStore_ListStale_Limit(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	records := []*domain.TokenRecord{
		{Mint: "mint1", FetchedAt: 1000},
		{Mint: "mint2", FetchedAt: 2000},
		{Mint: "mint3", FetchedAt: 3000},
	}

	for _, r := range records {
		if err := store.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	stale, err := store.ListStale(ctx, 5000, 2)
	if err != nil {
		t.Fatalf("ListStale failed: %v", err)
	}

	if len(stale) != 2 {
		t.Fatalf("Expected 2 records with limit 2, got %d", len(stale))
	}

	if stale[0].Mint != "mint1" || stale[1].Mint != "mint2" {
		t.Errorf("Limit should keep oldest records: got %s, %s", stale[0].Mint, stale[1].Mint)
	}
}

func TestTokenRecordStore_CountAll(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	count, err := store.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 for empty store, got %d", count)
	}

	for _, mint := range []string{"mint1", "mint2", "mint3"} {
		if err := store.Upsert(ctx, &domain.TokenRecord{Mint: mint}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	count, err = store.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3, got %d", count)
	}
}

func TestTokenRecordStore_ReturnsCopy(t *testing.T) {
	store := NewTokenRecordStore()
	ctx := context.Background()

	rec := &domain.TokenRecord{
		Mint: "mint1",
		Name: "Original",
		Creators: []domain.Creator{
			{Address: "creator1", Verified: true, Share: 100},
		},
	}

	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Modify original, including the creator slice
	rec.Name = "Mutated"
	rec.Creators[0].Address = "mutated"

	result, _ := store.GetByMint(ctx, "mint1")
	if result.Name != "Original" {
		t.Error("Store should return copy, not reference")
	}
	if result.Creators[0].Address != "creator1" {
		t.Error("Store should deep-copy the creator list")
	}

	// Mutating a returned record must not leak into the store either
	result.Creators[0].Share = 1
	again, _ := store.GetByMint(ctx, "mint1")
	if again.Creators[0].Share != 100 {
		t.Error("Returned record should not alias stored state")
	}
}
