package resolver

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
)

// wrapped SOL, a second well-known mint for multi-record tests
const testMint2 = "So11111111111111111111111111111111111111112"

func newTestRefresher(t *testing.T, env *testEnv) *Refresher {
	t.Helper()
	return NewRefresher(RefresherOptions{
		Resolver: env.resolver,
		Records:  env.records,
		RPS:      100,
		Logger:   log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
}

func TestRefresher_SweepRefreshesStale(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, env.records.Upsert(ctx, &domain.TokenRecord{
		Mint:            testMint,
		MetadataAddress: env.metaAddr,
		Name:            "Old Name",
		FetchedAt:       time.Now().Add(-2 * time.Hour).UnixMilli(),
		UpdatedAt:       time.Now().Add(-2 * time.Hour).UnixMilli(),
	}))

	env.rpc.SetAccount(env.metaAddr, &solana.AccountInfo{
		Data: accountData(t, "Fresh Name", "FRS", ""),
		Slot: 300,
	})

	refresher := newTestRefresher(t, env)
	refresher.sweep(ctx)

	record, err := env.records.GetByMint(ctx, testMint)
	require.NoError(t, err)
	assert.Equal(t, "Fresh Name", record.Name)
	assert.Equal(t, 1, env.rpc.Calls(env.metaAddr))

	// The sweep resolution is attributed to the refresh source
	logged, err := env.resolutions.GetByMint(ctx, testMint, 0)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, domain.SourceRefresh, logged[0].Source)
	assert.Equal(t, domain.ResolutionOK, logged[0].Status)
}

func TestRefresher_SweepSkipsFresh(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, env.records.Upsert(ctx, &domain.TokenRecord{
		Mint:            testMint,
		MetadataAddress: env.metaAddr,
		Name:            "Fresh Enough",
		FetchedAt:       time.Now().UnixMilli(),
		UpdatedAt:       time.Now().UnixMilli(),
	}))

	refresher := newTestRefresher(t, env)
	refresher.sweep(ctx)

	assert.Equal(t, 0, env.rpc.Calls(env.metaAddr), "fresh records should not be refetched")
}

func TestRefresher_SweepContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t, time.Hour)
	ctx := context.Background()

	mint2Key, err := solana.PublicKeyFromBase58(testMint2)
	require.NoError(t, err)
	metaAddr2, _, err := solana.MetadataAddress(mint2Key)
	require.NoError(t, err)

	staleAt := time.Now().Add(-2 * time.Hour).UnixMilli()
	require.NoError(t, env.records.Upsert(ctx, &domain.TokenRecord{
		Mint: testMint, MetadataAddress: env.metaAddr, Name: "A", FetchedAt: staleAt, UpdatedAt: staleAt,
	}))
	require.NoError(t, env.records.Upsert(ctx, &domain.TokenRecord{
		Mint: testMint2, MetadataAddress: metaAddr2.String(), Name: "B", FetchedAt: staleAt + 1, UpdatedAt: staleAt + 1,
	}))

	// First mint fails, second succeeds
	env.rpc.SetError(env.metaAddr, fmt.Errorf("connection refused"))
	env.rpc.SetAccount(metaAddr2.String(), &solana.AccountInfo{
		Data: accountData(t, "B Updated", "B", ""),
		Slot: 400,
	})

	refresher := newTestRefresher(t, env)
	refresher.sweep(ctx)

	// The failed mint served its stale record; the second was refreshed.
	record2, err := env.records.GetByMint(ctx, testMint2)
	require.NoError(t, err)
	assert.Equal(t, "B Updated", record2.Name)
	assert.Equal(t, 1, env.rpc.Calls(metaAddr2.String()))
}

func TestRefresher_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t, time.Hour)

	refresher := NewRefresher(RefresherOptions{
		Resolver: env.resolver,
		Records:  env.records,
		Interval: 10 * time.Millisecond,
		RPS:      100,
		Logger:   log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := refresher.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefresher_DefaultValues(t *testing.T) {
	refresher := NewRefresher(RefresherOptions{})

	assert.Equal(t, 1*time.Minute, refresher.interval)
	assert.Equal(t, 100, refresher.batchLimit)
	assert.NotNil(t, refresher.limiter)
	assert.NotNil(t, refresher.logger)
}
