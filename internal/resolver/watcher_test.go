package resolver

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana/stub"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage/memory"
)

type watcherEnv struct {
	watcher     *Watcher
	ws          *stub.WSClient
	records     *memory.TokenRecordStore
	resolutions *memory.ResolutionLogStore
}

func newWatcherEnv(t *testing.T, maxWatched int) *watcherEnv {
	t.Helper()

	ws := stub.NewWSClient()
	records := memory.NewTokenRecordStore()
	resolutions := memory.NewResolutionLogStore()

	watcher := NewWatcher(WatcherOptions{
		WS:          ws,
		Records:     records,
		Resolutions: resolutions,
		MaxWatched:  maxWatched,
		Logger:      log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	return &watcherEnv{
		watcher:     watcher,
		ws:          ws,
		records:     records,
		resolutions: resolutions,
	}
}

func seedRecord(t *testing.T, records *memory.TokenRecordStore, mint, metaAddr, name string) {
	t.Helper()
	now := time.Now().UnixMilli()
	require.NoError(t, records.Upsert(context.Background(), &domain.TokenRecord{
		Mint:            mint,
		MetadataAddress: metaAddr,
		Name:            name,
		Bump:            255,
		FetchedAt:       now,
		UpdatedAt:       now,
	}))
}

func waitForRecordName(t *testing.T, records *memory.TokenRecordStore, mint, want string) *domain.TokenRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, err := records.GetByMint(context.Background(), mint)
		if err == nil && record.Name == want {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("record for %s never reached name %q", mint, want)
	return nil
}

func TestWatcher_SyncSubscribesStoredRecords(t *testing.T) {
	env := newWatcherEnv(t, 0)
	defer env.watcher.unwatchAll()

	seedRecord(t, env.records, testMint, "meta-addr-1", "Watched Token")

	env.watcher.sync(context.Background())

	assert.True(t, env.ws.Subscribed("meta-addr-1"))
	assert.Equal(t, 1, env.watcher.WatchedCount())
}

func TestWatcher_SyncIsIdempotent(t *testing.T) {
	env := newWatcherEnv(t, 0)
	defer env.watcher.unwatchAll()

	seedRecord(t, env.records, testMint, "meta-addr-1", "Watched Token")

	env.watcher.sync(context.Background())
	env.watcher.sync(context.Background())

	assert.Equal(t, 1, env.watcher.WatchedCount())
}

func TestWatcher_NotificationUpdatesRecord(t *testing.T) {
	env := newWatcherEnv(t, 0)
	defer env.watcher.unwatchAll()

	mintKey, err := solana.PublicKeyFromBase58(testMint)
	require.NoError(t, err)
	metaAddr, _, err := solana.MetadataAddress(mintKey)
	require.NoError(t, err)

	seedRecord(t, env.records, testMint, metaAddr.String(), "Before Push")
	env.watcher.sync(context.Background())

	delivered := env.ws.Notify(solana.AccountNotification{
		Pubkey: metaAddr.String(),
		Slot:   500,
		Data:   accountData(t, "After Push", "PUSH", "https://example.com/push.json"),
	})
	require.True(t, delivered, "notification should reach the subscription")

	record := waitForRecordName(t, env.records, testMint, "After Push")
	assert.Equal(t, "PUSH", record.Symbol)
	assert.Equal(t, int64(500), record.Slot)

	logged, err := env.resolutions.GetByMint(context.Background(), testMint, 0)
	require.NoError(t, err)
	require.NotEmpty(t, logged)
	assert.Equal(t, domain.ResolutionOK, logged[0].Status)
	assert.Equal(t, domain.SourceWS, logged[0].Source)
	assert.Equal(t, int64(500), logged[0].Slot)
}

func TestWatcher_UndecodableNotification(t *testing.T) {
	env := newWatcherEnv(t, 0)
	defer env.watcher.unwatchAll()

	seedRecord(t, env.records, testMint, "meta-addr-1", "Unchanged")
	env.watcher.sync(context.Background())

	delivered := env.ws.Notify(solana.AccountNotification{
		Pubkey: "meta-addr-1",
		Slot:   600,
		Data:   base64.StdEncoding.EncodeToString([]byte{9, 9, 9}),
	})
	require.True(t, delivered)

	// Wait for the decode failure to reach the resolution log
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := env.resolutions.GetByMint(context.Background(), testMint, 0)
		require.NoError(t, err)
		if len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	logged, err := env.resolutions.GetByMint(context.Background(), testMint, 0)
	require.NoError(t, err)
	require.NotEmpty(t, logged, "decode failure should be logged")
	assert.Equal(t, domain.ResolutionDecodeError, logged[0].Status)
	assert.Equal(t, domain.SourceWS, logged[0].Source)
	assert.NotEmpty(t, logged[0].Err)

	// The stored record is left untouched
	record, err := env.records.GetByMint(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, "Unchanged", record.Name)
}

func TestWatcher_MaxWatchedCapsSubscriptions(t *testing.T) {
	env := newWatcherEnv(t, 2)
	defer env.watcher.unwatchAll()

	seedRecord(t, env.records, "mint-a", "meta-a", "A")
	seedRecord(t, env.records, "mint-b", "meta-b", "B")
	seedRecord(t, env.records, "mint-c", "meta-c", "C")

	env.watcher.sync(context.Background())

	assert.Equal(t, 2, env.watcher.WatchedCount())
}

func TestWatcher_UnwatchAllClearsSubscriptions(t *testing.T) {
	env := newWatcherEnv(t, 0)

	seedRecord(t, env.records, testMint, "meta-addr-1", "Watched Token")
	env.watcher.sync(context.Background())
	require.Equal(t, 1, env.watcher.WatchedCount())

	env.watcher.unwatchAll()

	assert.Equal(t, 0, env.watcher.WatchedCount())
	assert.False(t, env.ws.Subscribed("meta-addr-1"))
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	env := newWatcherEnv(t, 0)

	watcher := NewWatcher(WatcherOptions{
		WS:           env.ws,
		Records:      env.records,
		SyncInterval: 10 * time.Millisecond,
		Logger:       log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := watcher.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatcher_DefaultValues(t *testing.T) {
	watcher := NewWatcher(WatcherOptions{})

	assert.Equal(t, 30*time.Second, watcher.syncInterval)
	assert.Equal(t, 1000, watcher.maxWatched)
	assert.NotNil(t, watcher.logger)
}
