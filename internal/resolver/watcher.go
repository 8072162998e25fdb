package resolver

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"time"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/metaplex"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/observability"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
)

// Watcher keeps stored records current by subscribing to account-change
// notifications for their metadata addresses. A notification carries the
// account's complete new data, so the update is decoded and stored without
// an RPC round trip.
type Watcher struct {
	ws           solana.WSClient
	records      storage.TokenRecordStore
	resolutions  storage.ResolutionLogStore
	syncInterval time.Duration
	maxWatched   int
	logger       *log.Logger

	mu      sync.Mutex
	watched map[string]*watchedSub // keyed by metadata address
}

// watchedSub is one active account subscription.
type watchedSub struct {
	mint   string
	bump   uint8
	cancel context.CancelFunc
}

// droppedCounter is implemented by WS clients that count notifications
// dropped on slow consumers.
type droppedCounter interface {
	DroppedNotifications() uint64
}

// WatcherOptions contains configuration for creating a Watcher.
type WatcherOptions struct {
	WS           solana.WSClient
	Records      storage.TokenRecordStore
	Resolutions  storage.ResolutionLogStore // optional analytics log
	SyncInterval time.Duration              // subscription reconcile interval, default 30s
	MaxWatched   int                        // subscription cap, default 1000
	Logger       *log.Logger
}

// NewWatcher creates a new Watcher.
func NewWatcher(opts WatcherOptions) *Watcher {
	syncInterval := opts.SyncInterval
	if syncInterval == 0 {
		syncInterval = 30 * time.Second
	}

	maxWatched := opts.MaxWatched
	if maxWatched == 0 {
		maxWatched = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Watcher{
		ws:           opts.WS,
		records:      opts.Records,
		resolutions:  opts.Resolutions,
		syncInterval: syncInterval,
		maxWatched:   maxWatched,
		logger:       logger,
		watched:      make(map[string]*watchedSub),
	}
}

// Run reconciles the subscription set against the record store on the
// configured interval. It blocks until context is cancelled, then
// unsubscribes everything.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Printf("Watcher started, sync interval: %v, max watched: %d", w.syncInterval, w.maxWatched)

	// Initial sync so a restart resubscribes existing records immediately.
	w.sync(ctx)

	ticker := time.NewTicker(w.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Println("Watcher stopping...")
			w.unwatchAll()
			return ctx.Err()
		case <-ticker.C:
			w.sync(ctx)
		}
	}
}

// WatchedCount returns the number of active subscriptions.
func (w *Watcher) WatchedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// sync aligns the subscription set with the stored records: new records are
// subscribed, records no longer listed are unsubscribed.
func (w *Watcher) sync(ctx context.Context) {
	// Every stored record was fetched before now, so a now cutoff on the
	// staleness listing enumerates the full set.
	records, err := w.records.ListStale(ctx, time.Now().UnixMilli()+1, w.maxWatched)
	if err != nil {
		w.logger.Printf("Error listing records to watch: %v", err)
		return
	}

	desired := make(map[string]*domain.TokenRecord, len(records))
	for _, rec := range records {
		if rec.MetadataAddress == "" {
			continue
		}
		desired[rec.MetadataAddress] = rec
	}

	w.mu.Lock()
	current := make([]string, 0, len(w.watched))
	for addr := range w.watched {
		current = append(current, addr)
	}
	w.mu.Unlock()

	for _, addr := range current {
		if _, ok := desired[addr]; !ok {
			w.unwatch(addr)
		}
	}

	added := 0
	for addr, rec := range desired {
		if w.isWatched(addr) {
			continue
		}
		if err := w.watch(ctx, addr, rec.Mint, rec.Bump); err != nil {
			w.logger.Printf("Error subscribing to %s: %v", addr, err)
			continue
		}
		added++
	}
	if added > 0 {
		w.logger.Printf("Watching %d new accounts, %d total", added, w.WatchedCount())
	}

	observability.UpdateWatchedAccounts(w.WatchedCount())
	if dc, ok := w.ws.(droppedCounter); ok {
		observability.UpdateWSDropped(dc.DroppedNotifications())
	}
}

func (w *Watcher) isWatched(addr string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[addr]
	return ok
}

// watch subscribes to one metadata account and starts a consumer for its
// notifications.
func (w *Watcher) watch(ctx context.Context, metaAddr, mint string, bump uint8) error {
	ch, err := w.ws.SubscribeAccount(ctx, metaAddr)
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watched[metaAddr] = &watchedSub{mint: mint, bump: bump, cancel: cancel}
	w.mu.Unlock()

	go w.consume(subCtx, mint, metaAddr, bump, ch)
	return nil
}

// unwatch cancels the consumer and drops the server-side subscription.
func (w *Watcher) unwatch(metaAddr string) {
	w.mu.Lock()
	sub, ok := w.watched[metaAddr]
	if ok {
		delete(w.watched, metaAddr)
	}
	w.mu.Unlock()
	if !ok {
		return
	}

	sub.cancel()
	// The run context may already be cancelled during shutdown; the
	// unsubscribe still has to go out.
	if err := w.ws.UnsubscribeAccount(context.Background(), metaAddr); err != nil {
		w.logger.Printf("Error unsubscribing from %s: %v", metaAddr, err)
	}
}

// unwatchAll drops every subscription on shutdown.
func (w *Watcher) unwatchAll() {
	w.mu.Lock()
	addrs := make([]string, 0, len(w.watched))
	for addr := range w.watched {
		addrs = append(addrs, addr)
	}
	w.mu.Unlock()

	for _, addr := range addrs {
		w.unwatch(addr)
	}
	observability.UpdateWatchedAccounts(0)
}

// consume processes notifications for one subscription until its context
// is cancelled.
func (w *Watcher) consume(ctx context.Context, mint, metaAddr string, bump uint8, ch <-chan solana.AccountNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			w.handleNotification(ctx, mint, metaAddr, bump, n)
		}
	}
}

// handleNotification decodes the delivered account data and upserts the
// updated record.
func (w *Watcher) handleNotification(ctx context.Context, mint, metaAddr string, bump uint8, n solana.AccountNotification) {
	start := time.Now()
	observability.RecordWSNotification()

	raw, err := base64.StdEncoding.DecodeString(n.Data)
	if err != nil {
		observability.RecordDecode("error")
		w.logger.Printf("Error decoding notification data for %s: %v", metaAddr, err)
		writeResolution(ctx, w.resolutions, w.logger, mint, metaAddr, domain.ResolutionDecodeError, domain.SourceWS, int64(n.Slot), start, err)
		return
	}

	meta, err := metaplex.Decode(raw)
	if err != nil {
		observability.RecordDecode("error")
		w.logger.Printf("Error decoding metadata account %s: %v", metaAddr, err)
		writeResolution(ctx, w.resolutions, w.logger, mint, metaAddr, domain.ResolutionDecodeError, domain.SourceWS, int64(n.Slot), start, err)
		return
	}
	observability.RecordDecode("ok")

	record := buildRecord(meta, mint, metaAddr, bump, int64(n.Slot))
	if err := w.records.Upsert(ctx, record); err != nil {
		w.logger.Printf("Error storing record for %s: %v", mint, err)
		return
	}

	writeResolution(ctx, w.resolutions, w.logger, mint, metaAddr, domain.ResolutionOK, domain.SourceWS, record.Slot, start, nil)
	observability.RecordSuccessfulResolution(time.Now().Unix())
}
